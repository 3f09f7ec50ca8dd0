package output

import (
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"github.com/praetorian-inc/hypergrep/pkg/matcher"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// Span is a half-open byte range within a line.
type Span struct {
	Start, End int
}

// Spanner recomputes the matched parts of a reported line. The engines only
// report that a line matched, so -o and highlighting search the line again
// with the same expression.
type Spanner struct {
	res map[uint]*regexp2.Regexp
}

// NewSpanner compiles every pattern of set.
func NewSpanner(set types.PatternSet) (*Spanner, error) {
	s := &Spanner{res: make(map[uint]*regexp2.Regexp, len(set))}
	for _, spec := range set {
		re, err := matcher.CompileRegexp(spec, matcher.DefaultMatchTimeout)
		if err != nil {
			return nil, err
		}
		s.res[spec.ID] = re
	}
	return s, nil
}

// Spans returns the non-empty, non-overlapping matches of pattern id in line,
// in order. Unknown ids and match timeouts yield no spans.
func (s *Spanner) Spans(id uint, line []byte) []Span {
	re, ok := s.res[id]
	if !ok || len(line) == 0 {
		return nil
	}

	runes := make([]rune, 0, len(line))
	offsets := make([]int, 0, len(line)+1)
	for i := 0; i < len(line); {
		r, size := utf8.DecodeRune(line[i:])
		runes = append(runes, r)
		offsets = append(offsets, i)
		i += size
	}
	offsets = append(offsets, len(line))

	var spans []Span
	m, err := re.FindRunesMatch(runes)
	for m != nil && err == nil {
		if m.Length > 0 {
			spans = append(spans, Span{Start: offsets[m.Index], End: offsets[m.Index+m.Length]})
		}
		m, err = re.FindNextMatch(m)
	}
	return spans
}
