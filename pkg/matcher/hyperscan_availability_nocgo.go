//go:build !cgo || !hyperscan

package matcher

// HyperscanAvailable reports false when Hyperscan is not compiled in
// (non-CGO build or missing hyperscan tag).
func HyperscanAvailable() bool {
	return false
}
