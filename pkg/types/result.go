package types

import "time"

// ScanResult summarizes the scan of one file.
type ScanResult struct {
	Path         string        `json:"path"`
	Status       Status        `json:"status"`
	MatchesFound uint64        `json:"matches_found"`
	LinesScanned uint64        `json:"lines_scanned"`
	Duration     time.Duration `json:"duration_ns"`
	Err          error         `json:"-"`
}

// Message returns the error message, or "" for a successful scan.
func (r ScanResult) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Failed builds a result for a file that could not be scanned.
func Failed(path string, err error) ScanResult {
	return ScanResult{Path: path, Status: StatusOf(err), Err: err}
}
