package matcher

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/hypergrep/pkg/prefilter"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// PortableEngine compiles patterns with regexp2. It needs no CGO and is the
// default when Hyperscan is not compiled in.
//
// Differences from Hyperscan worth knowing:
//   - matches are leftmost-first and non-overlapping per pattern, where
//     Hyperscan reports every end offset;
//   - per line, matches are reported in end-offset order, ties broken by
//     pattern id;
//   - bytes that are not valid UTF-8 are matched as U+FFFD.
type PortableEngine struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewPortable creates the regexp2-based engine.
func NewPortable(opts ...Option) *PortableEngine {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &PortableEngine{timeout: cfg.matchTimeout, logger: cfg.logger}
}

func (e *PortableEngine) Name() string { return EnginePortable }

type portablePattern struct {
	id     uint
	single bool
	re     *regexp2.Regexp
}

// PortableMatcher is a compiled set of regexp2 expressions. The expressions
// are safe for concurrent use; per-goroutine buffers live in the scratch.
type PortableMatcher struct {
	patterns []portablePattern
	keywords [][]string // prefilter literals per pattern, nil = always evaluate
}

func regexpOptions(f types.Flags) regexp2.RegexOptions {
	opts := regexp2.None
	if f.Has(types.FlagCaseless) {
		opts |= regexp2.IgnoreCase
	}
	if f.Has(types.FlagDotAll) {
		opts |= regexp2.Singleline
	}
	if f.Has(types.FlagMultiLine) {
		opts |= regexp2.Multiline
	}
	return opts
}

// Compile validates and compiles every pattern. Any failure aborts the whole
// set with an error wrapping types.ErrCompile.
func (e *PortableEngine) Compile(set []PatternSpec) (Matcher, error) {
	if err := types.PatternSet(set).Validate(); err != nil {
		return nil, err
	}

	m := &PortableMatcher{
		patterns: make([]portablePattern, len(set)),
		keywords: make([][]string, len(set)),
	}
	usesKeywords := false

	for i, spec := range set {
		re, backtracking, err := compileRegexp(spec, e.timeout)
		if err != nil {
			return nil, err
		}
		if backtracking {
			e.logger.Debug("pattern needs backtracking mode", "id", spec.ID, "pattern", spec.Pattern)
		}

		if empty, _ := re.MatchString(""); empty {
			return nil, fmt.Errorf("%w: pattern %d (%q) matches the empty string", types.ErrCompile, spec.ID, spec.Pattern)
		}

		m.patterns[i] = portablePattern{
			id:     spec.ID,
			single: spec.Flags.Has(types.FlagSingleMatch),
			re:     re,
		}
		m.keywords[i] = prefilterKeywords(spec)
		usesKeywords = usesKeywords || len(m.keywords[i]) > 0
	}

	if !usesKeywords {
		m.keywords = nil
	}
	e.logger.Debug("compiled portable matcher", "patterns", len(set), "prefilter", usesKeywords)
	return m, nil
}

// CompileRegexp compiles spec exactly as the portable engine does, for
// callers that need match spans (only-matching output, highlighting).
func CompileRegexp(spec PatternSpec, timeout time.Duration) (*regexp2.Regexp, error) {
	re, _, err := compileRegexp(spec, timeout)
	return re, err
}

func compileRegexp(spec PatternSpec, timeout time.Duration) (*regexp2.Regexp, bool, error) {
	opts := regexpOptions(spec.Flags)
	backtracking := false
	// Try RE2 mode first (safer, no backtracking)
	re, err := regexp2.Compile(spec.Pattern, opts|regexp2.RE2)
	if err != nil {
		// Fallback to Perl-compatible mode for lookarounds and friends
		re, err = regexp2.Compile(spec.Pattern, opts)
		if err != nil {
			return nil, false, fmt.Errorf("%w: pattern %d (%q): %w", types.ErrCompile, spec.ID, spec.Pattern, err)
		}
		backtracking = true
	}
	re.MatchTimeout = timeout
	if timeout <= 0 {
		re.MatchTimeout = regexp2.DefaultMatchTimeout
	}
	return re, backtracking, nil
}

// prefilterKeywords returns the literals that must occur for spec to match.
// Explicit keywords win; a case-sensitive pattern without metacharacters is
// its own keyword. Caseless patterns are never prefiltered because the
// automaton is case-sensitive.
func prefilterKeywords(spec PatternSpec) []string {
	if spec.Flags.Has(types.FlagCaseless) {
		return nil
	}
	if len(spec.Keywords) > 0 {
		return spec.Keywords
	}
	if IsLiteral(spec.Pattern) {
		return []string{spec.Pattern}
	}
	return nil
}

// IsLiteral reports whether pattern contains no regex metacharacters.
func IsLiteral(pattern string) bool {
	return pattern != "" && !strings.ContainsAny(pattern, `\.+*?()|[]{}^$#`)
}

func (m *PortableMatcher) Len() int { return len(m.patterns) }

// portableScratch holds the buffers reused across Scan calls by a single
// goroutine.
type portableScratch struct {
	owner   *PortableMatcher
	runes   []rune
	offsets []int // byte offset of each rune, plus len(data) at the end
	cands   []int
	hits    []portableHit
	pf      *prefilter.Prefilter
	freed   bool
}

type portableHit struct {
	id       uint
	from, to uint64
}

// AllocScratch builds the per-goroutine buffers and keyword prefilter.
func (m *PortableMatcher) AllocScratch() (Scratch, error) {
	s := &portableScratch{owner: m}
	if m.keywords != nil {
		s.pf = prefilter.New(m.keywords)
	}
	return s, nil
}

// Scan evaluates the candidate patterns over data and reports matches with
// byte offsets.
func (m *PortableMatcher) Scan(scratch Scratch, data []byte, onMatch MatchHandler) error {
	s, ok := scratch.(*portableScratch)
	if !ok || s.freed || s.owner != m {
		return fmt.Errorf("%w: scratch was not allocated by this matcher", types.ErrScan)
	}
	if len(data) == 0 {
		return nil
	}

	s.cands = s.cands[:0]
	if s.pf != nil {
		s.cands = s.pf.Candidates(data, s.cands)
		if len(s.cands) == 0 {
			return nil
		}
	} else {
		for i := range m.patterns {
			s.cands = append(s.cands, i)
		}
	}

	s.decode(data)
	s.hits = s.hits[:0]

	for _, idx := range s.cands {
		p := &m.patterns[idx]
		match, err := p.re.FindRunesMatch(s.runes)
		for match != nil && err == nil {
			if match.Length > 0 {
				s.hits = append(s.hits, portableHit{
					id:   p.id,
					from: uint64(s.offsets[match.Index]),
					to:   uint64(s.offsets[match.Index+match.Length]),
				})
				// The first non-overlapping match also ends first.
				if p.single {
					break
				}
			}
			match, err = p.re.FindNextMatch(match)
		}
		if err != nil {
			return fmt.Errorf("%w: pattern %d: %w", types.ErrScan, p.id, err)
		}
	}

	slices.SortFunc(s.hits, func(a, b portableHit) int {
		if c := cmp.Compare(a.to, b.to); c != 0 {
			return c
		}
		if c := cmp.Compare(a.id, b.id); c != 0 {
			return c
		}
		return cmp.Compare(a.from, b.from)
	})
	for _, h := range s.hits {
		onMatch(h.id, h.from, h.to)
	}
	return nil
}

// decode converts data to runes, recording where each rune starts.
func (s *portableScratch) decode(data []byte) {
	s.runes = s.runes[:0]
	s.offsets = s.offsets[:0]
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		s.runes = append(s.runes, r)
		s.offsets = append(s.offsets, i)
		i += size
	}
	s.offsets = append(s.offsets, len(data))
}

// Free drops the scratch buffers.
func (s *portableScratch) Free() error {
	s.freed = true
	s.runes, s.offsets, s.cands, s.hits, s.pf = nil, nil, nil, nil, nil
	return nil
}

// Close is a no-op; compiled expressions are garbage collected.
func (m *PortableMatcher) Close() error {
	return nil
}
