//go:build cgo && hyperscan

package matcher

import (
	"fmt"
	"log/slog"

	"github.com/flier/gohs/hyperscan"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// hyperscanEngine compiles pattern sets into Hyperscan block-mode databases.
type hyperscanEngine struct {
	logger *slog.Logger
}

func newHyperscan(cfg options) (Engine, error) {
	return &hyperscanEngine{logger: cfg.logger}, nil
}

// HyperscanVersion returns the version string of the linked Hyperscan library.
func HyperscanVersion() string {
	return hyperscan.Version()
}

func (e *hyperscanEngine) Name() string { return EngineHyperscan }

func hyperscanFlags(f types.Flags) hyperscan.CompileFlag {
	var out hyperscan.CompileFlag
	if f.Has(types.FlagCaseless) {
		out |= hyperscan.Caseless
	}
	if f.Has(types.FlagDotAll) {
		out |= hyperscan.DotAll
	}
	if f.Has(types.FlagMultiLine) {
		out |= hyperscan.MultiLine
	}
	if f.Has(types.FlagSingleMatch) {
		out |= hyperscan.SingleMatch
	}
	return out
}

// Compile builds a single block database holding every pattern. Pattern ids
// are passed through so Hyperscan reports them directly.
func (e *hyperscanEngine) Compile(set []PatternSpec) (Matcher, error) {
	if err := types.PatternSet(set).Validate(); err != nil {
		return nil, err
	}

	patterns := make([]*hyperscan.Pattern, len(set))
	for i, spec := range set {
		p := hyperscan.NewPattern(spec.Pattern, hyperscanFlags(spec.Flags))
		p.Id = int(spec.ID)
		patterns[i] = p
	}

	db, err := hyperscan.NewBlockDatabase(patterns...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrCompile, err)
	}
	e.logger.Debug("compiled hyperscan database", "patterns", len(set))

	return &hyperscanMatcher{db: db, n: len(set)}, nil
}

// hyperscanMatcher wraps an immutable database; safe for concurrent Scan
// calls as long as each goroutine brings its own scratch.
type hyperscanMatcher struct {
	db hyperscan.BlockDatabase
	n  int
}

// hyperscanScratch binds a Hyperscan scratch to a reusable event handler so a
// scan allocates nothing per line.
type hyperscanScratch struct {
	owner   *hyperscanMatcher
	s       *hyperscan.Scratch
	current MatchHandler
	handler hyperscan.MatchHandler
}

func (m *hyperscanMatcher) Len() int { return m.n }

// AllocScratch allocates Hyperscan scratch space for one goroutine.
func (m *hyperscanMatcher) AllocScratch() (Scratch, error) {
	s, err := hyperscan.NewScratch(m.db)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrScratch, err)
	}
	hs := &hyperscanScratch{owner: m, s: s}
	hs.handler = func(id uint, from, to uint64, flags uint, context interface{}) error {
		hs.current(id, from, to)
		return nil
	}
	return hs, nil
}

// Scan runs the database over data. Empty buffers cannot match (Hyperscan
// rejects patterns that match empty input) and are skipped.
func (m *hyperscanMatcher) Scan(scratch Scratch, data []byte, onMatch MatchHandler) error {
	hs, ok := scratch.(*hyperscanScratch)
	if !ok || hs.s == nil || hs.owner != m {
		return fmt.Errorf("%w: scratch was not allocated by this matcher", types.ErrScan)
	}
	if len(data) == 0 {
		return nil
	}

	hs.current = onMatch
	err := m.db.Scan(data, hs.s, hs.handler, nil)
	hs.current = nil
	if err != nil {
		return fmt.Errorf("%w: hyperscan: %w", types.ErrScan, err)
	}
	return nil
}

// Close releases the database.
func (m *hyperscanMatcher) Close() error {
	if m.db == nil {
		return nil
	}
	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	m.db = nil
	return nil
}

// Free releases the scratch space.
func (s *hyperscanScratch) Free() error {
	if s.s == nil {
		return nil
	}
	if err := s.s.Free(); err != nil {
		return fmt.Errorf("failed to free scratch: %w", err)
	}
	s.s = nil
	return nil
}
