package pattern

import (
	"fmt"
	"strings"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// Syntax is the regular expression dialect patterns are written in.
type Syntax int

const (
	SyntaxBasic    Syntax = iota // grep -G (default)
	SyntaxExtended               // grep -E
	SyntaxPerl                   // grep -P
)

func (s Syntax) String() string {
	switch s {
	case SyntaxExtended:
		return "extended"
	case SyntaxPerl:
		return "perl"
	default:
		return "basic"
	}
}

// ParseSyntax accepts "basic", "extended" and "perl" (or G, E and P).
func ParseSyntax(name string) (Syntax, error) {
	switch strings.ToLower(name) {
	case "", "basic", "g":
		return SyntaxBasic, nil
	case "extended", "e":
		return SyntaxExtended, nil
	case "perl", "p":
		return SyntaxPerl, nil
	default:
		return SyntaxBasic, fmt.Errorf("unknown syntax %q (want basic, extended or perl)", name)
	}
}

// breSwapped are the characters whose escaping is inverted between BRE and ERE.
const breSwapped = "+?(){}|"

// BasicToExtended rewrites a POSIX basic expression into extended syntax:
// "\(" becomes "(" and a bare "(" becomes "\(", likewise for + ? ) { } |.
// Other escapes are kept as written.
func BasicToExtended(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) + 8)
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			next := pattern[i+1]
			if strings.IndexByte(breSwapped, next) >= 0 {
				b.WriteByte(next)
			} else {
				b.WriteByte('\\')
				b.WriteByte(next)
			}
			i++
		case strings.IndexByte(breSwapped, c) >= 0:
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// GNUToPortable replaces the GNU word-boundary escapes "\<" and "\>" with
// "\b", which every engine understands.
func GNUToPortable(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '\\' && i+1 < len(pattern) {
			next := pattern[i+1]
			if next == '<' || next == '>' {
				b.WriteString(`\b`)
			} else {
				b.WriteByte('\\')
				b.WriteByte(next)
			}
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Options control how raw patterns are turned into engine patterns.
type Options struct {
	Syntax   Syntax
	NoGNU    bool // keep \< and \> as written
	Caseless bool // add types.FlagCaseless to every pattern
}

// Convert applies the syntax conversions to entries. Perl patterns are never
// rewritten.
func Convert(entries []Entry, opts Options) ([]Entry, error) {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		p := e.Spec.Pattern
		if opts.Syntax != SyntaxPerl {
			if !opts.NoGNU {
				p = GNUToPortable(p)
			}
			if opts.Syntax == SyntaxBasic {
				p = BasicToExtended(p)
			}
		}
		if p == "" {
			return nil, fmt.Errorf("pattern %d: empty patterns are not supported", i)
		}
		e.Spec.Pattern = p
		if opts.Caseless {
			e.Spec.Flags |= types.FlagCaseless
		}
		out[i] = e
	}
	return out, nil
}
