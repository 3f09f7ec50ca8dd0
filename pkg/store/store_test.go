package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

func TestNew_MemoryStore(t *testing.T) {
	// Act
	store, err := New(Config{Path: ":memory:"})

	// Assert
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, store)
	defer store.Close()
}

func TestNew_SQLiteStore(t *testing.T) {
	store, err := New(Config{Path: filepath.Join(t.TempDir(), "results.db")})
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorContains(t, err, "path is required")
}

func TestIsPostgresDSN(t *testing.T) {
	assert.True(t, IsPostgresDSN("postgres://user@localhost/db"))
	assert.True(t, IsPostgresDSN("postgresql://localhost/db"))
	assert.False(t, IsPostgresDSN("results.db"))
	assert.False(t, IsPostgresDSN(":memory:"))
}

func TestStore_Interface(t *testing.T) {
	var _ Store = (*MemoryStore)(nil)
	var _ Store = (*SQLiteStore)(nil)
	var _ Store = (*PostgresStore)(nil)
}

func TestPattern_Label(t *testing.T) {
	p := PatternFromSpec("", types.PatternSpec{ID: 3, Pattern: "err", Flags: types.FlagCaseless})
	assert.Equal(t, "err", p.Label())
	assert.Equal(t, "caseless", p.Flags)
	assert.Equal(t, uint(3), p.ID)

	p.Name = "errors"
	assert.Equal(t, "errors", p.Label())
}

// testStoreContract exercises the behavior every backend shares.
func testStoreContract(t *testing.T, store Store) {
	t.Helper()

	// Arrange
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &Run{
		Engine:    "portable",
		Patterns:  []Pattern{{ID: 0, Name: "errors", Pattern: "ERROR", Flags: "dotall|multiline|singlematch"}},
		StartedAt: started,
	}
	require.NoError(t, store.AddScan(run))
	require.NotZero(t, run.ID)

	batch := []types.MatchRecord{
		{PatternID: 0, LineNumber: 2, Line: []byte("ERROR one\n")},
		{PatternID: 0, LineNumber: 5, Line: []byte("ERROR two\n")},
	}

	// Act
	require.NoError(t, store.AddMatches("a.log", batch))
	// The batch slots are reused by the scanner after delivery.
	batch[0].Line[0] = 'X'
	require.NoError(t, store.AddMatches("b.log", []types.MatchRecord{{LineNumber: 1, Line: []byte("ERROR three")}}))
	require.NoError(t, store.AddMatches("a.log", nil))

	require.NoError(t, store.AddResult(types.ScanResult{Path: "a.log", Status: types.StatusOK, MatchesFound: 2, LinesScanned: 9, Duration: time.Millisecond}))
	require.NoError(t, store.AddResult(types.Failed("missing.log", fmt.Errorf("%w: open missing.log: no such file", types.ErrOpen))))

	// Assert
	runs, err := store.GetRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, "portable", runs[0].Engine)
	assert.Equal(t, run.Patterns, runs[0].Patterns)
	assert.True(t, started.Equal(runs[0].StartedAt))

	matches, err := store.GetMatches("a.log")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, uint64(2), matches[0].LineNumber)
	assert.Equal(t, "ERROR one\n", string(matches[0].Line))
	assert.Equal(t, uint64(5), matches[1].LineNumber)
	assert.Equal(t, run.ID, matches[0].RunID)

	none, err := store.GetMatches("nope.log")
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := store.GetAllMatches()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	results, err := store.GetResults()
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.log", results[0].Path)
	assert.Equal(t, types.StatusOK, results[0].Status)
	assert.Equal(t, uint64(2), results[0].MatchesFound)
	assert.Equal(t, uint64(9), results[0].LinesScanned)
	assert.Equal(t, time.Millisecond, results[0].Duration)
	assert.Empty(t, results[0].Message)
	assert.NoError(t, results[0].Err)

	assert.Equal(t, types.StatusOpenError, results[1].Status)
	assert.Equal(t, "open failed: open missing.log: no such file", results[1].Message)
	require.Error(t, results[1].Err)
	assert.Equal(t, results[1].Message, results[1].Err.Error())
	assert.Equal(t, run.ID, results[1].RunID)
}

func TestMemoryStore_Contract(t *testing.T) {
	store := NewMemory()
	defer store.Close()
	testStoreContract(t, store)
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemory()
	require.NoError(t, store.Close())

	assert.Error(t, store.AddScan(&Run{}))
	assert.Error(t, store.AddMatches("a", []types.MatchRecord{{LineNumber: 1}}))
	assert.Error(t, store.AddResult(types.ScanResult{}))
}

func TestMemoryStore_RunIDs(t *testing.T) {
	store := NewMemory()

	first, second := &Run{}, &Run{}
	require.NoError(t, store.AddScan(first))
	require.NoError(t, store.AddMatches("a", []types.MatchRecord{{LineNumber: 1}}))
	require.NoError(t, store.AddScan(second))
	require.NoError(t, store.AddMatches("a", []types.MatchRecord{{LineNumber: 1}}))

	matches, err := store.GetMatches("a")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(1), matches[0].RunID)
	assert.Equal(t, int64(2), matches[1].RunID)
}
