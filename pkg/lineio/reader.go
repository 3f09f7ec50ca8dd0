// Package lineio streams lines out of plain, gzip or zstd files.
//
// Compression is detected from magic bytes, never from the file name. Lines
// are delivered with 1-based line numbers; lines longer than the configured
// buffer are split rather than truncated.
package lineio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// minReadBuffer is the smallest read-ahead buffer used for the decoded stream.
const minReadBuffer = 64 * 1024

// Line is a single delivered line.
type Line struct {
	Number uint64 // 1-based
	Bytes  []byte // valid until the next call to Next
}

// Reader yields lines from a possibly compressed stream.
type Reader struct {
	name    string
	format  Format
	limit   int // content bytes per line before a forced split
	src     io.Reader
	closers []func() error
	br      *bufio.Reader
	buf     []byte
	lineNo  uint64
	closed  bool
	err     error
}

// Open opens path and prepares it for line reading. lineBufferSize is the
// maximum line length plus one.
func Open(path string, lineBufferSize int) (*Reader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrOpen, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s: is a directory", types.ErrOpen, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrOpen, err)
	}

	r, err := NewReader(f, path, lineBufferSize)
	if err != nil {
		// NewReader already closed f.
		return nil, err
	}
	return r, nil
}

// NewReader wraps an already open stream. If src implements io.Closer it is
// closed together with the Reader, including when NewReader fails.
func NewReader(src io.Reader, name string, lineBufferSize int) (*Reader, error) {
	r := &Reader{name: name}
	if c, ok := src.(io.Closer); ok {
		r.closers = append(r.closers, c.Close)
	}

	if lineBufferSize < 2 {
		r.Close()
		return nil, fmt.Errorf("%w: %s: line buffer size must be at least 2, got %d", types.ErrOpen, name, lineBufferSize)
	}
	r.limit = lineBufferSize - 1

	raw := bufio.NewReaderSize(src, minReadBuffer)
	prefix, err := raw.Peek(magicLen)
	if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
		r.Close()
		return nil, fmt.Errorf("%w: %s: %w", types.ErrOpen, name, err)
	}
	r.format = DetectFormat(prefix)

	switch r.format {
	case FormatGzip:
		gz, err := gzip.NewReader(raw)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("%w: %s: gzip header: %w", types.ErrDecompress, name, err)
		}
		r.closers = append(r.closers, gz.Close)
		r.src = gz
	case FormatZstd:
		zr, err := zstd.NewReader(raw, zstd.WithDecoderConcurrency(1))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("%w: %s: zstd: %w", types.ErrDecompress, name, err)
		}
		r.closers = append(r.closers, func() error { zr.Close(); return nil })
		r.src = zr
	default:
		r.src = raw
	}

	if r.format == FormatPlain {
		r.br = raw
	} else {
		r.br = bufio.NewReaderSize(r.src, minReadBuffer)
	}
	r.buf = make([]byte, 0, min(lineBufferSize, minReadBuffer))
	return r, nil
}

// Name returns the path or label the reader was created with.
func (r *Reader) Name() string { return r.name }

// Format returns the detected container format.
func (r *Reader) Format() Format { return r.format }

// LinesRead returns the number of lines delivered so far.
func (r *Reader) LinesRead() uint64 { return r.lineNo }

// Next returns the next line. It returns io.EOF once the stream is exhausted
// and an error wrapping types.ErrDecompress when the compressed data is
// corrupt or truncated. The reader closes itself on either condition.
func (r *Reader) Next() (Line, error) {
	if r.err != nil {
		return Line{}, r.err
	}
	if r.closed {
		return Line{}, fmt.Errorf("%w: %s: reader is closed", types.ErrOpen, r.name)
	}

	line, err := r.readLine()
	if len(line) > 0 {
		r.lineNo++
		return Line{Number: r.lineNo, Bytes: trimLeadingNUL(line)}, nil
	}

	if err == nil || err == io.EOF {
		r.fail(io.EOF)
	} else {
		r.fail(fmt.Errorf("%w: %s: %w", types.ErrDecompress, r.name, err))
	}
	return Line{}, r.err
}

// readLine fills r.buf with up to r.limit content bytes ending at the first
// '\n'. A terminator immediately following a full buffer stays on the line.
// A non-nil error is only returned together with an empty line; bytes read
// before an error are delivered first and the error resurfaces on the next
// call.
func (r *Reader) readLine() ([]byte, error) {
	r.buf = r.buf[:0]
	for len(r.buf) < r.limit {
		if r.br.Buffered() == 0 {
			if _, err := r.br.Peek(1); err != nil {
				if len(r.buf) > 0 {
					return r.buf, nil
				}
				return nil, err
			}
		}

		window, _ := r.br.Peek(min(r.br.Buffered(), r.limit-len(r.buf)))
		if i := bytes.IndexByte(window, '\n'); i >= 0 {
			r.buf = append(r.buf, window[:i+1]...)
			r.br.Discard(i + 1)
			return r.buf, nil
		}
		r.buf = append(r.buf, window...)
		r.br.Discard(len(window))
	}

	// Full buffer without a terminator. Keep a directly following '\n' so a
	// line of exactly limit bytes is not split into itself and an empty line.
	if next, err := r.br.Peek(1); err == nil && next[0] == '\n' {
		r.buf = append(r.buf, '\n')
		r.br.Discard(1)
	}
	return r.buf, nil
}

func trimLeadingNUL(line []byte) []byte {
	i := 0
	for i < len(line) && line[i] == 0 {
		i++
	}
	return line[i:]
}

// fail records a terminal condition and releases the underlying stream.
func (r *Reader) fail(err error) {
	r.err = err
	r.Close()
}

// Close releases the decompressor and the underlying file. It is safe to
// call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
