package pattern

import (
	"strings"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// Combine merges a set into a single alternation so the engine reports at
// most one match per line regardless of how many patterns hit it. The result
// has id 0 and the given flags. Keywords survive only when every alternative
// has some (explicit, or being a case-sensitive literal itself).
func Combine(set types.PatternSet, flags types.Flags) types.PatternSpec {
	if len(set) == 1 {
		return types.PatternSpec{Pattern: set[0].Pattern, Flags: flags, Keywords: set[0].Keywords}
	}

	var b strings.Builder
	var keywords []string
	allKeyworded := !flags.Has(types.FlagCaseless)
	for i, p := range set {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString("(?:")
		b.WriteString(p.Pattern)
		b.WriteByte(')')

		switch {
		case len(p.Keywords) > 0:
			keywords = append(keywords, p.Keywords...)
		case isLiteral(p.Pattern):
			keywords = append(keywords, p.Pattern)
		default:
			allKeyworded = false
		}
	}
	if !allKeyworded {
		keywords = nil
	}
	return types.PatternSpec{Pattern: b.String(), Flags: flags, Keywords: keywords}
}

func isLiteral(p string) bool {
	return p != "" && !strings.ContainsAny(p, `\.+*?()|[]{}^$#`)
}
