package lineio

import "bytes"

// Format is the container format detected from a file's leading bytes.
type Format int

const (
	FormatPlain Format = iota
	FormatGzip
	FormatZstd
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// magicLen is the number of bytes needed to tell every format apart.
const magicLen = 4

func (f Format) String() string {
	switch f {
	case FormatGzip:
		return "gzip"
	case FormatZstd:
		return "zstd"
	default:
		return "plain"
	}
}

// DetectFormat classifies a stream by its first bytes. Short or unknown
// prefixes are treated as plain text.
func DetectFormat(prefix []byte) Format {
	switch {
	case bytes.HasPrefix(prefix, zstdMagic):
		return FormatZstd
	case bytes.HasPrefix(prefix, gzipMagic):
		return FormatGzip
	default:
		return FormatPlain
	}
}
