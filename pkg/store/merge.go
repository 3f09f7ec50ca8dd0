package store

import (
	"database/sql"
	"fmt"
	"os"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the database files to merge from.
	SourcePaths []string
	// DestPath is the destination database file.
	DestPath string
}

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	RunsMerged       int
	ResultsMerged    int
	MatchesMerged    int
	SourcesProcessed int
}

// Merge combines multiple SQLite result databases into one. Every source run
// becomes a new run in the destination; its results and matches follow it.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	// Open/create destination database
	dest, err := NewSQLite(cfg.DestPath)
	if err != nil {
		return nil, fmt.Errorf("opening destination database: %w", err)
	}
	defer dest.Close()

	stats := &MergeStats{}

	// Process each source database
	for _, sourcePath := range cfg.SourcePaths {
		sourceStats, err := mergeFrom(dest.db, sourcePath)
		if err != nil {
			return stats, fmt.Errorf("merging from %s: %w", sourcePath, err)
		}
		stats.RunsMerged += sourceStats.RunsMerged
		stats.ResultsMerged += sourceStats.ResultsMerged
		stats.MatchesMerged += sourceStats.MatchesMerged
		stats.SourcesProcessed++
	}

	return stats, nil
}

// mergeFrom copies data from a source database to the destination.
func mergeFrom(destDB *sql.DB, sourcePath string) (*MergeStats, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, fmt.Errorf("source database: %w", err)
	}

	// Open source database through NewSQLite so the schema version is checked
	source, err := NewSQLite(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening source database: %w", err)
	}
	defer source.Close()

	stats := &MergeStats{}

	// Start transaction for efficiency
	tx, err := destDB.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	runIDs, err := mergeRuns(tx, source.db)
	if err != nil {
		return nil, fmt.Errorf("merging runs: %w", err)
	}
	stats.RunsMerged = len(runIDs)

	resultCount, err := mergeRows(tx, source.db, runIDs,
		"SELECT run_id, path, status, matches_found, lines_scanned, duration_ns, message FROM results ORDER BY id",
		"INSERT INTO results (run_id, path, status, matches_found, lines_scanned, duration_ns, message) VALUES (?, ?, ?, ?, ?, ?, ?)",
		func() []any { return []any{new(int64), new(string), new(string), new(int64), new(int64), new(int64), new(sql.NullString)} },
	)
	if err != nil {
		return nil, fmt.Errorf("merging results: %w", err)
	}
	stats.ResultsMerged = resultCount

	matchCount, err := mergeRows(tx, source.db, runIDs,
		"SELECT run_id, path, pattern_id, line_number, line FROM matches ORDER BY id",
		"INSERT INTO matches (run_id, path, pattern_id, line_number, line) VALUES (?, ?, ?, ?, ?)",
		func() []any { return []any{new(int64), new(string), new(int64), new(int64), new([]byte)} },
	)
	if err != nil {
		return nil, fmt.Errorf("merging matches: %w", err)
	}
	stats.MatchesMerged = matchCount

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return stats, nil
}

// mergeRuns copies runs and returns the mapping from source to destination ids.
func mergeRuns(tx *sql.Tx, sourceDB *sql.DB) (map[int64]int64, error) {
	rows, err := sourceDB.Query("SELECT id, engine, patterns_json, started_at FROM runs ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stmt, err := tx.Prepare("INSERT INTO runs (engine, patterns_json, started_at) VALUES (?, ?, ?)")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make(map[int64]int64)
	for rows.Next() {
		var id int64
		var engine, patternsJSON, startedAt string
		if err := rows.Scan(&id, &engine, &patternsJSON, &startedAt); err != nil {
			return nil, err
		}
		result, err := stmt.Exec(engine, patternsJSON, startedAt)
		if err != nil {
			return nil, err
		}
		newID, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids[id] = newID
	}
	return ids, rows.Err()
}

// mergeRows copies rows whose first column is a run id, remapping it.
func mergeRows(tx *sql.Tx, sourceDB *sql.DB, runIDs map[int64]int64, query, insert string, dest func() []any) (int, error) {
	rows, err := sourceDB.Query(query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	stmt, err := tx.Prepare(insert)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	count := 0
	for rows.Next() {
		values := dest()
		if err := rows.Scan(values...); err != nil {
			return count, err
		}
		runID := values[0].(*int64)
		newID, ok := runIDs[*runID]
		if !ok {
			return count, fmt.Errorf("row references unknown run %d", *runID)
		}
		*runID = newID

		args := make([]any, len(values))
		for i, v := range values {
			args[i] = deref(v)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return count, err
		}
		count++
	}
	return count, rows.Err()
}

func deref(v any) any {
	switch p := v.(type) {
	case *int64:
		return *p
	case *string:
		return *p
	case *[]byte:
		return *p
	case *sql.NullString:
		return *p
	default:
		return v
	}
}
