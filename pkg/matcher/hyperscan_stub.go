//go:build !cgo || !hyperscan

package matcher

import "fmt"

// newHyperscan stub for builds without Hyperscan (non-CGO or missing hyperscan tag).
func newHyperscan(options) (Engine, error) {
	return nil, fmt.Errorf("Hyperscan requires CGO (build with CGO_ENABLED=1 and -tags=hyperscan)")
}

// HyperscanVersion returns "" when Hyperscan is not compiled in.
func HyperscanVersion() string {
	return ""
}
