// Package store persists scan runs, per-file results and match lines.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// Store provides persistence for scan results.
// This interface abstracts the underlying storage implementation,
// allowing for different backends (memory, SQLite, PostgreSQL).
//
// AddScan starts a run; matches and results added afterwards belong to the
// most recently added run. Implementations are safe for concurrent use so
// coordinator workers can write directly from their match callbacks.
type Store interface {
	// AddScan records a scan run and assigns run.ID.
	AddScan(run *Run) error

	// AddMatches stores a delivered batch for a file. The batch is copied.
	AddMatches(path string, batch []types.MatchRecord) error

	// AddResult stores the final result of a file.
	AddResult(result types.ScanResult) error

	// GetRuns retrieves all runs in the order they were added.
	GetRuns() ([]*Run, error)

	// GetMatches retrieves matches for a file in line order.
	GetMatches(path string) ([]*Match, error)

	// GetAllMatches retrieves all matches (for report export).
	GetAllMatches() ([]*Match, error)

	// GetResults retrieves all file results.
	GetResults() ([]*Result, error)

	// Close closes the database connection.
	Close() error
}

// Run describes one invocation of the scanner.
type Run struct {
	ID        int64     `json:"id"`
	Engine    string    `json:"engine"`
	Patterns  []Pattern `json:"patterns"`
	StartedAt time.Time `json:"started_at"`
}

// Pattern is the stored form of a compiled pattern.
type Pattern struct {
	ID      uint   `json:"id"`
	Name    string `json:"name,omitempty"`
	Pattern string `json:"pattern"`
	Flags   string `json:"flags"`
}

// PatternFromSpec converts a spec for storage.
func PatternFromSpec(name string, spec types.PatternSpec) Pattern {
	return Pattern{ID: spec.ID, Name: name, Pattern: spec.Pattern, Flags: spec.Flags.String()}
}

// Label returns the name, or the expression when the pattern has none.
func (p Pattern) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Pattern
}

// Match is a stored match line.
type Match struct {
	RunID      int64  `json:"run_id"`
	Path       string `json:"path"`
	PatternID  uint   `json:"pattern_id"`
	LineNumber uint64 `json:"line_number"`
	Line       []byte `json:"line"`
}

// Result is a stored per-file result.
type Result struct {
	RunID int64 `json:"run_id"`
	types.ScanResult
	Message string `json:"message,omitempty"`
}

func newResult(runID int64, r types.ScanResult) *Result {
	return &Result{RunID: runID, ScanResult: r, Message: r.Message()}
}

// restoreErr rebuilds the error of a result read back from a database.
func (r *Result) restoreErr() {
	if r.Message != "" {
		r.Err = errors.New(r.Message)
	}
}

// Config for store initialization.
type Config struct {
	// Path is the database file path or a postgres:// connection string.
	// Use ":memory:" for an in-memory store (useful for testing).
	Path string
}

// New creates a new Store. ":memory:" selects MemoryStore, postgres:// and
// postgresql:// URLs select PostgresStore, anything else is a SQLite file.
func New(cfg Config) (Store, error) {
	switch {
	case cfg.Path == "":
		return nil, fmt.Errorf("path is required")
	case cfg.Path == ":memory:":
		return NewMemory(), nil
	case IsPostgresDSN(cfg.Path):
		return NewPostgres(cfg.Path)
	default:
		return NewSQLite(cfg.Path)
	}
}

// IsPostgresDSN reports whether path is a PostgreSQL connection URL.
func IsPostgresDSN(path string) bool {
	return strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://")
}
