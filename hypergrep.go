// Package hypergrep searches large, possibly compressed, text files for lines
// matching a set of regular expressions.
//
// # Basic Usage
//
// Create a scanner and grep a file:
//
//	scanner, err := hypergrep.NewScanner()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scanner.Close()
//
//	lines, res := scanner.Grep(ctx, "/var/log/app.log.gz", `timeout after \d+ms`)
//	if !res.Status.OK() {
//	    log.Fatal(res.Err)
//	}
//	for _, l := range lines {
//	    fmt.Printf("%d: %s\n", l.Number, l.Text)
//	}
//
// # Streaming
//
// ScanFile and ScanFiles deliver matches in batches while the scan runs.
// Batches are only valid during the callback; use CloneRecords to keep them:
//
//	patterns := hypergrep.NewPatternSet("ERROR", "panic:")
//	results, err := scanner.ScanFiles(ctx, paths, patterns, func(f hypergrep.FileRef, batch []hypergrep.MatchRecord) {
//	    for _, r := range batch {
//	        fmt.Printf("%s:%d:%s", f.Path, r.LineNumber, r.Line)
//	    }
//	})
package hypergrep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/praetorian-inc/hypergrep/pkg/coordinator"
	"github.com/praetorian-inc/hypergrep/pkg/matcher"
	"github.com/praetorian-inc/hypergrep/pkg/pattern"
	"github.com/praetorian-inc/hypergrep/pkg/scanner"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// Re-export commonly used types for convenience.
// Users can import just "github.com/praetorian-inc/hypergrep" without subpackages.
type (
	// MatchRecord is one matching line.
	MatchRecord = types.MatchRecord

	// PatternSpec is a pattern with its id, flags and prefilter keywords.
	PatternSpec = types.PatternSpec

	// PatternSet is an ordered list of patterns compiled together.
	PatternSet = types.PatternSet

	// ScanConfig tunes line buffering, batching and match limits.
	ScanConfig = types.ScanConfig

	// ScanResult is the terminal outcome of scanning one file.
	ScanResult = types.ScanResult

	// Status classifies a ScanResult.
	Status = types.Status

	// FileRef identifies a file within a multi-file scan.
	FileRef = types.FileRef

	// Results holds one ScanResult per path, in input order.
	Results = coordinator.Results
)

// Re-export status constants.
const (
	StatusOK              = types.StatusOK
	StatusOpenError       = types.StatusOpenError
	StatusDecompressError = types.StatusDecompressError
	StatusCompileError    = types.StatusCompileError
	StatusScratchError    = types.StatusScratchError
	StatusScanError       = types.StatusScanError
	StatusCanceled        = types.StatusCanceled
)

// ErrClosed is returned by scans on a closed Scanner.
var ErrClosed = errors.New("scanner is closed")

// NewPatternSet builds a set from expressions with default flags and ids
// 0..n-1.
func NewPatternSet(patterns ...string) PatternSet {
	return types.NewPatternSet(patterns...)
}

// CloneRecords deep-copies a delivered batch.
func CloneRecords(batch []MatchRecord) []MatchRecord {
	return types.CloneRecords(batch)
}

// Line is one matching line returned by Grep, without its terminator.
type Line struct {
	Number uint64
	Text   string
}

// Scanner searches files with compiled patterns. Compiled pattern sets are
// cached, so scanning with the same set repeatedly compiles it once. A
// Scanner is safe for concurrent use.
type Scanner struct {
	engine matcher.Engine
	coord  *coordinator.Coordinator
	config *scannerConfig
	mu     sync.RWMutex
	closed bool
}

// scannerConfig holds scanner configuration.
type scannerConfig struct {
	engine  string
	scan    types.ScanConfig
	workers int
	logger  *slog.Logger
}

// Option configures a Scanner.
type Option func(*scannerConfig)

// WithEngine selects the matching engine by name: "auto" (default),
// "hyperscan" or "portable".
func WithEngine(name string) Option {
	return func(c *scannerConfig) {
		c.engine = name
	}
}

// WithScanConfig replaces the per-file scan configuration.
func WithScanConfig(cfg ScanConfig) Option {
	return func(c *scannerConfig) {
		c.scan = cfg
	}
}

// WithWorkers sets how many files ScanFiles scans concurrently.
// Default is one per CPU.
func WithWorkers(n int) Option {
	return func(c *scannerConfig) {
		c.workers = n
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *scannerConfig) {
		c.logger = l
	}
}

// NewScanner creates a new Scanner with the given options.
//
// By default, the scanner:
//   - Uses Hyperscan when it was compiled in, and the portable engine otherwise
//   - Keeps lines up to types.DefaultLineBufferSize bytes
//   - Scans one file per CPU at a time
func NewScanner(opts ...Option) (*Scanner, error) {
	config := &scannerConfig{
		engine: matcher.EngineAuto,
		scan:   types.DefaultScanConfig(),
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.scan.Validate(); err != nil {
		return nil, err
	}

	eng, err := matcher.New(config.engine, matcher.WithLogger(config.logger))
	if err != nil {
		return nil, err
	}

	coord := coordinator.New(eng,
		coordinator.WithScanConfig(config.scan),
		coordinator.WithWorkers(config.workers),
		coordinator.WithLogger(config.logger),
	)

	return &Scanner{engine: eng, coord: coord, config: config}, nil
}

// Engine returns the name of the engine in use.
func (s *Scanner) Engine() string {
	return s.engine.Name()
}

// ScanFile scans one file and delivers matching lines in batches. A pattern
// compile error is reported as a ScanResult with StatusCompileError.
func (s *Scanner) ScanFile(ctx context.Context, path string, patterns PatternSet, onMatch func(batch []MatchRecord)) ScanResult {
	var deliver types.FileMatchFunc
	if onMatch != nil {
		deliver = func(_ FileRef, batch []MatchRecord) { onMatch(batch) }
	}
	results, err := s.ScanFiles(ctx, []string{path}, patterns, deliver)
	if err != nil {
		return types.Failed(path, err)
	}
	return results[0]
}

// ScanFiles scans paths concurrently. Every path gets a ScanResult in input
// order; the error is only set when patterns fail to compile.
func (s *Scanner) ScanFiles(ctx context.Context, paths []string, patterns PatternSet, onMatch types.FileMatchFunc) (Results, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.coord.ScanAll(ctx, paths, patterns, onMatch)
}

// Grep returns the lines of path matching any of patterns, each line once,
// in file order.
func (s *Scanner) Grep(ctx context.Context, path string, patterns ...string) ([]Line, ScanResult) {
	if len(patterns) == 0 {
		return nil, types.Failed(path, fmt.Errorf("%w: no patterns given", types.ErrCompile))
	}
	var lines []Line
	res := s.ScanFile(ctx, path, combine(patterns), collectLines(&lines))
	return lines, res
}

// GrepReader is Grep over an open stream, such as stdin or an in-memory
// buffer. Compressed input is detected as for files. name labels the result.
func (s *Scanner) GrepReader(ctx context.Context, src io.Reader, name string, patterns ...string) ([]Line, ScanResult) {
	if len(patterns) == 0 {
		return nil, types.Failed(name, fmt.Errorf("%w: no patterns given", types.ErrCompile))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.Failed(name, ErrClosed)
	}

	m, err := s.coord.Compile(combine(patterns))
	if err != nil {
		return nil, types.Failed(name, err)
	}
	orch, err := scanner.New(m, s.config.scan, scanner.WithLogger(s.config.logger))
	if err != nil {
		return nil, types.Failed(name, err)
	}

	var lines []Line
	res := orch.ScanReader(ctx, nil, src, name, collectLines(&lines))
	return lines, res
}

// combine turns grep patterns into one alternation so each line is reported
// once.
func combine(patterns []string) PatternSet {
	return PatternSet{pattern.Combine(types.NewPatternSet(patterns...), types.DefaultFlags)}
}

func collectLines(lines *[]Line) func(batch []MatchRecord) {
	return func(batch []MatchRecord) {
		for _, r := range batch {
			*lines = append(*lines, Line{
				Number: r.LineNumber,
				Text:   string(bytes.TrimSuffix(r.Line, []byte("\n"))),
			})
		}
	}
}

// CheckCompatibility compiles each pattern on its own with the scanner's
// engine and returns the ones that fail, keyed by pattern id.
func (s *Scanner) CheckCompatibility(patterns PatternSet) map[uint]error {
	failed := make(map[uint]error)
	for _, c := range matcher.Check(s.engine, patterns) {
		if !c.OK() {
			failed[c.Pattern.ID] = c.Err
		}
	}
	return failed
}

// Close releases compiled pattern sets.
// Always call Close when done with the scanner.
func (s *Scanner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.coord.Close()
}
