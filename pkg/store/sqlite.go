package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	runID atomic.Int64
}

// NewSQLite creates a SQLite-based store.
// Use ":memory:" for in-memory database (useful for testing).
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers from concurrent workers and keeps
	// ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	// Initialize schema
	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// AddScan records a scan run.
func (s *SQLiteStore) AddScan(run *Run) error {
	patternsJSON, err := json.Marshal(run.Patterns)
	if err != nil {
		return fmt.Errorf("marshaling patterns: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO runs (engine, patterns_json, started_at)
		VALUES (?, ?, ?)
	`, run.Engine, string(patternsJSON), run.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading run id: %w", err)
	}
	run.ID = id
	s.runID.Store(id)
	return nil
}

// AddMatches stores a delivered batch in one transaction.
func (s *SQLiteStore) AddMatches(path string, batch []types.MatchRecord) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO matches (run_id, path, pattern_id, line_number, line)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	runID := s.runID.Load()
	for _, r := range batch {
		if _, err := stmt.Exec(runID, path, int64(r.PatternID), int64(r.LineNumber), r.Line); err != nil {
			return fmt.Errorf("inserting match: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// AddResult stores the final result of a file.
func (s *SQLiteStore) AddResult(result types.ScanResult) error {
	_, err := s.db.Exec(`
		INSERT INTO results (run_id, path, status, matches_found, lines_scanned, duration_ns, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		s.runID.Load(),
		result.Path,
		result.Status.String(),
		int64(result.MatchesFound),
		int64(result.LinesScanned),
		int64(result.Duration),
		result.Message(),
	)
	if err != nil {
		return fmt.Errorf("inserting result: %w", err)
	}
	return nil
}

// GetRuns retrieves all runs.
func (s *SQLiteStore) GetRuns() ([]*Run, error) {
	rows, err := s.db.Query(`SELECT id, engine, patterns_json, started_at FROM runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var patternsJSON, startedAt string
		if err := rows.Scan(&run.ID, &run.Engine, &patternsJSON, &startedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if err := json.Unmarshal([]byte(patternsJSON), &run.Patterns); err != nil {
			return nil, fmt.Errorf("unmarshaling patterns: %w", err)
		}
		run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing run time: %w", err)
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// GetMatches retrieves matches for a file.
func (s *SQLiteStore) GetMatches(path string) ([]*Match, error) {
	return s.queryMatches(`
		SELECT run_id, path, pattern_id, line_number, line
		FROM matches
		WHERE path = ?
		ORDER BY run_id, line_number, id
	`, path)
}

// GetAllMatches retrieves all matches.
func (s *SQLiteStore) GetAllMatches() ([]*Match, error) {
	return s.queryMatches(`
		SELECT run_id, path, pattern_id, line_number, line
		FROM matches
		ORDER BY id
	`)
}

func (s *SQLiteStore) queryMatches(query string, args ...any) ([]*Match, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	matches := []*Match{}
	for rows.Next() {
		var m Match
		var patternID, lineNumber int64
		if err := rows.Scan(&m.RunID, &m.Path, &patternID, &lineNumber, &m.Line); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		m.PatternID = uint(patternID)
		m.LineNumber = uint64(lineNumber)
		matches = append(matches, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return matches, nil
}

// GetResults retrieves all file results.
func (s *SQLiteStore) GetResults() ([]*Result, error) {
	rows, err := s.db.Query(`
		SELECT run_id, path, status, matches_found, lines_scanned, duration_ns, message
		FROM results
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		var r Result
		var status string
		var matchesFound, linesScanned, durationNS int64
		var message sql.NullString
		if err := rows.Scan(&r.RunID, &r.Path, &status, &matchesFound, &linesScanned, &durationNS, &message); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r.Status, err = types.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		r.MatchesFound = uint64(matchesFound)
		r.LinesScanned = uint64(linesScanned)
		r.Duration = time.Duration(durationNS)
		r.Message = message.String
		r.restoreErr()
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	return results, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
