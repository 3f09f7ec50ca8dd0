package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// postgresTimeout bounds every statement issued by PostgresStore.
const postgresTimeout = 30 * time.Second

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id BIGSERIAL PRIMARY KEY,
		engine TEXT NOT NULL,
		patterns_json JSONB NOT NULL,
		started_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS results (
		id BIGSERIAL PRIMARY KEY,
		run_id BIGINT NOT NULL REFERENCES runs(id),
		path TEXT NOT NULL,
		status TEXT NOT NULL,
		matches_found BIGINT NOT NULL,
		lines_scanned BIGINT NOT NULL,
		duration_ns BIGINT NOT NULL,
		message TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id BIGSERIAL PRIMARY KEY,
		run_id BIGINT NOT NULL REFERENCES runs(id),
		path TEXT NOT NULL,
		pattern_id BIGINT NOT NULL,
		line_number BIGINT NOT NULL,
		line BYTEA
	)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_path ON matches(path, line_number)`,
}

// PostgresStore implements Store on a single pgx connection. Match batches
// are written with the COPY protocol.
type PostgresStore struct {
	mu    sync.Mutex
	conn  *pgx.Conn
	runID int64
}

// NewPostgres connects to dsn and creates the schema.
func NewPostgres(dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), postgresTimeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := createPostgresSchema(ctx, conn); err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &PostgresStore{conn: conn}, nil
}

func createPostgresSchema(ctx context.Context, conn *pgx.Conn) error {
	for _, stmt := range postgresSchema {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	var version int
	err := conn.QueryRow(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = conn.Exec(ctx, "INSERT INTO schema_version (version) VALUES ($1)", SchemaVersion)
		return err
	case err != nil:
		return err
	case version != SchemaVersion:
		return fmt.Errorf("unsupported schema version %d (want %d)", version, SchemaVersion)
	}
	return nil
}

// AddScan records a scan run.
func (s *PostgresStore) AddScan(run *Run) error {
	patternsJSON, err := json.Marshal(run.Patterns)
	if err != nil {
		return fmt.Errorf("marshaling patterns: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), postgresTimeout)
	defer cancel()

	err = s.conn.QueryRow(ctx, `
		INSERT INTO runs (engine, patterns_json, started_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, run.Engine, string(patternsJSON), run.StartedAt).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	s.runID = run.ID
	return nil
}

// AddMatches copies a delivered batch into the matches table.
func (s *PostgresStore) AddMatches(path string, batch []types.MatchRecord) error {
	if len(batch) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), postgresTimeout)
	defer cancel()

	runID := s.runID
	_, err := s.conn.CopyFrom(ctx,
		pgx.Identifier{"matches"},
		[]string{"run_id", "path", "pattern_id", "line_number", "line"},
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			r := batch[i]
			return []any{runID, path, int64(r.PatternID), int64(r.LineNumber), r.Line}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copying matches: %w", err)
	}
	return nil
}

// AddResult stores the final result of a file.
func (s *PostgresStore) AddResult(result types.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), postgresTimeout)
	defer cancel()

	_, err := s.conn.Exec(ctx, `
		INSERT INTO results (run_id, path, status, matches_found, lines_scanned, duration_ns, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		s.runID,
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
func (s *PostgresStore) GetRuns() ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), postgresTimeout)
	defer cancel()

	rows, err := s.conn.Query(ctx, `SELECT id, engine, patterns_json::text, started_at FROM runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var patternsJSON string
		if err := rows.Scan(&run.ID, &run.Engine, &patternsJSON, &run.StartedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if err := json.Unmarshal([]byte(patternsJSON), &run.Patterns); err != nil {
			return nil, fmt.Errorf("unmarshaling patterns: %w", err)
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// GetMatches retrieves matches for a file.
func (s *PostgresStore) GetMatches(path string) ([]*Match, error) {
	return s.queryMatches(`
		SELECT run_id, path, pattern_id, line_number, line
		FROM matches
		WHERE path = $1
		ORDER BY run_id, line_number, id
	`, path)
}

// GetAllMatches retrieves all matches.
func (s *PostgresStore) GetAllMatches() ([]*Match, error) {
	return s.queryMatches(`
		SELECT run_id, path, pattern_id, line_number, line
		FROM matches
		ORDER BY id
	`)
}

func (s *PostgresStore) queryMatches(query string, args ...any) ([]*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), postgresTimeout)
	defer cancel()

	rows, err := s.conn.Query(ctx, query, args...)
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
func (s *PostgresStore) GetResults() ([]*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), postgresTimeout)
	defer cancel()

	rows, err := s.conn.Query(ctx, `
		SELECT run_id, path, status, matches_found, lines_scanned, duration_ns, COALESCE(message, '')
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
		if err := rows.Scan(&r.RunID, &r.Path, &status, &matchesFound, &linesScanned, &durationNS, &r.Message); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r.Status, err = types.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		r.MatchesFound = uint64(matchesFound)
		r.LinesScanned = uint64(linesScanned)
		r.Duration = time.Duration(durationNS)
		r.restoreErr()
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	return results, nil
}

// Close closes the connection.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), postgresTimeout)
	defer cancel()
	return s.conn.Close(ctx)
}
