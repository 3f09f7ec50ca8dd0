package types

import (
	"encoding/json"
	"fmt"
)

// Status is the terminal state of a single-file scan.
type Status int

const (
	StatusOK Status = iota
	StatusOpenError
	StatusDecompressError
	StatusCompileError
	StatusScratchError
	StatusScanError
	StatusCanceled
)

var statusNames = map[Status]string{
	StatusOK:              "ok",
	StatusOpenError:       "open_error",
	StatusDecompressError: "decompress_error",
	StatusCompileError:    "compile_error",
	StatusScratchError:    "scratch_error",
	StatusScanError:       "scan_error",
	StatusCanceled:        "canceled",
}

// Numeric codes reported by ExitCode, aligned with the native scanner's
// return codes (compile=2, scratch=3, open=6, scan=7).
var statusCodes = map[Status]int{
	StatusOK:              0,
	StatusCompileError:    2,
	StatusScratchError:    3,
	StatusDecompressError: 4,
	StatusCanceled:        5,
	StatusOpenError:       6,
	StatusScanError:       7,
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ExitCode returns the numeric code for the status (0 for StatusOK).
func (s Status) ExitCode() int {
	if code, ok := statusCodes[s]; ok {
		return code
	}
	return 1
}

// OK reports whether the scan finished without error.
func (s Status) OK() bool {
	return s == StatusOK
}

// ParseStatus is the inverse of String.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
