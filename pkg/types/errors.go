package types

import (
	"context"
	"errors"
)

// Sentinel errors. Failures are wrapped around these with fmt.Errorf("...: %w")
// so callers can classify them with errors.Is.
var (
	ErrOpen       = errors.New("open failed")
	ErrDecompress = errors.New("decompression failed")
	ErrCompile    = errors.New("pattern compilation failed")
	ErrScratch    = errors.New("scratch allocation failed")
	ErrScan       = errors.New("scan failed")
	ErrCanceled   = errors.New("scan canceled")
)

// StatusOf maps an error to the status it represents. A nil error is StatusOK.
// Unclassified errors are reported as StatusScanError.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrOpen):
		return StatusOpenError
	case errors.Is(err, ErrDecompress):
		return StatusDecompressError
	case errors.Is(err, ErrCompile):
		return StatusCompileError
	case errors.Is(err, ErrScratch):
		return StatusScratchError
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	default:
		return StatusScanError
	}
}
