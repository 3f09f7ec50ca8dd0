package coordinator

import (
	"errors"
	"fmt"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// Results holds one ScanResult per input path, in input order.
type Results []types.ScanResult

// ByPath indexes the results by path. For duplicate paths the last result wins.
func (r Results) ByPath() map[string]types.ScanResult {
	out := make(map[string]types.ScanResult, len(r))
	for _, res := range r {
		out[res.Path] = res
	}
	return out
}

// Failed returns the results whose status is not OK.
func (r Results) Failed() Results {
	var out Results
	for _, res := range r {
		if !res.Status.OK() {
			out = append(out, res)
		}
	}
	return out
}

// TotalMatches sums MatchesFound over all files.
func (r Results) TotalMatches() uint64 {
	var n uint64
	for _, res := range r {
		n += res.MatchesFound
	}
	return n
}

// TotalLines sums LinesScanned over all files.
func (r Results) TotalLines() uint64 {
	var n uint64
	for _, res := range r {
		n += res.LinesScanned
	}
	return n
}

// Err joins the errors of every failed file, or returns nil.
func (r Results) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		if res.Err != nil {
			errs = append(errs, res.Err)
		} else {
			errs = append(errs, fmt.Errorf("%s: %s", res.Path, res.Status))
		}
	}
	return errors.Join(errs...)
}
