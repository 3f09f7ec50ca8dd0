package store

import (
	"fmt"
	"sync"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// MemoryStore implements Store using in-memory data structures.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    []*Run
	matches map[string][]*Match // keyed by path
	paths   []string            // insertion order of matches keys
	results []*Result
	closed  bool
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		matches: make(map[string][]*Match),
	}
}

func (m *MemoryStore) currentRun() int64 {
	if len(m.runs) == 0 {
		return 0
	}
	return m.runs[len(m.runs)-1].ID
}

// AddScan records a scan run.
func (m *MemoryStore) AddScan(run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}
	run.ID = int64(len(m.runs) + 1)
	stored := *run
	m.runs = append(m.runs, &stored)
	return nil
}

// AddMatches stores a delivered batch for a file.
func (m *MemoryStore) AddMatches(path string, batch []types.MatchRecord) error {
	if len(batch) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}
	if _, ok := m.matches[path]; !ok {
		m.paths = append(m.paths, path)
	}
	runID := m.currentRun()
	for _, r := range batch {
		m.matches[path] = append(m.matches[path], &Match{
			RunID:      runID,
			Path:       path,
			PatternID:  r.PatternID,
			LineNumber: r.LineNumber,
			Line:       append([]byte(nil), r.Line...),
		})
	}
	return nil
}

// AddResult stores the final result of a file.
func (m *MemoryStore) AddResult(result types.ScanResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}
	m.results = append(m.results, newResult(m.currentRun(), result))
	return nil
}

// GetRuns retrieves all runs.
func (m *MemoryStore) GetRuns() ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Run, len(m.runs))
	copy(result, m.runs)
	return result, nil
}

// GetMatches retrieves matches for a file.
func (m *MemoryStore) GetMatches(path string) ([]*Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := m.matches[path]
	if matches == nil {
		return []*Match{}, nil
	}

	// Return a copy to avoid external modifications
	result := make([]*Match, len(matches))
	copy(result, matches)
	return result, nil
}

// GetAllMatches retrieves all matches, grouped by file in first-seen order.
func (m *MemoryStore) GetAllMatches() ([]*Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Match
	for _, path := range m.paths {
		result = append(result, m.matches[path]...)
	}
	if result == nil {
		return []*Match{}, nil
	}
	return result, nil
}

// GetResults retrieves all file results.
func (m *MemoryStore) GetResults() ([]*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Result, len(m.results))
	copy(result, m.results)
	return result, nil
}

// Close marks the store closed. Data stays readable.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
