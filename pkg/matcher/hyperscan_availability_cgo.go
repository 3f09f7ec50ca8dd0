//go:build cgo && hyperscan

package matcher

// HyperscanAvailable reports whether the Hyperscan engine is compiled in
// (CGO build with the hyperscan tag).
func HyperscanAvailable() bool {
	return true
}
