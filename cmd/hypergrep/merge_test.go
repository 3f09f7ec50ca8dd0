package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/hypergrep/pkg/store"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// newMergeCmd creates a fresh merge command for testing
func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:  "merge <source1.db> <source2.db> [source3.db...]",
		Args: cobra.MinimumNArgs(2),
		RunE: runMerge,
	}
	cmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.db", "Output database path")
	return cmd
}

// seedDatabase writes one run with a match per line number for file.
func seedDatabase(t *testing.T, path, file string, lines ...uint64) {
	t.Helper()
	s, err := store.NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AddScan(&store.Run{
		Engine:   "portable",
		Patterns: []store.Pattern{{Name: "errors", Pattern: "error", Flags: types.DefaultFlags.String()}},
	}))
	var batch []types.MatchRecord
	for _, n := range lines {
		batch = append(batch, types.MatchRecord{LineNumber: n, Line: []byte("error here\n")})
	}
	require.NoError(t, s.AddMatches(file, batch))
	require.NoError(t, s.AddResult(types.ScanResult{Path: file, MatchesFound: uint64(len(lines)), LinesScanned: 10}))
}

func TestMergeCmd_RequiresMinimumArgs(t *testing.T) {
	cmd := newMergeCmd()
	cmd.SetArgs([]string{"source1.db"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 2 arg")
}

func TestMergeCmd_MergesTwoDatabases(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	src1 := filepath.Join(dir, "one.db")
	src2 := filepath.Join(dir, "two.db")
	dest := filepath.Join(dir, "merged.db")
	seedDatabase(t, src1, "a.log", 1, 4)
	seedDatabase(t, src2, "b.log", 2)

	var buf bytes.Buffer
	cmd := newMergeCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{src1, src2, "-o", dest})

	// Act
	err := cmd.Execute()

	// Assert
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Sources processed: 2")
	assert.Contains(t, out, "Runs merged: 2")
	assert.Contains(t, out, "Matches merged: 3")
	assert.Contains(t, out, "Output: "+dest)

	merged, err := store.NewSQLite(dest)
	require.NoError(t, err)
	defer merged.Close()
	all, err := merged.GetAllMatches()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMergeCmd_FailsWithInvalidSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "one.db")
	seedDatabase(t, src, "a.log", 1)

	cmd := newMergeCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{src, filepath.Join(dir, "missing.db"), "-o", filepath.Join(dir, "out.db")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge failed")
}
