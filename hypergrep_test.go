package hypergrep

import (
	"context"
	"io"
	"strings"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPortableScanner(t *testing.T, opts ...Option) *Scanner {
	t.Helper()
	scanner, err := NewScanner(append([]Option{WithEngine("portable")}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { scanner.Close() })
	return scanner
}

func writeLog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewScanner(t *testing.T) {
	scanner, err := NewScanner()
	require.NoError(t, err)
	defer scanner.Close()

	assert.NotEmpty(t, scanner.Engine())
}

func TestNewScannerWithOptions(t *testing.T) {
	cfg := ScanConfig{LineBufferSize: 64, BatchCapacity: 2}
	scanner := newPortableScanner(t, WithScanConfig(cfg), WithWorkers(3))
	assert.Equal(t, "portable", scanner.Engine())

	_, err := NewScanner(WithScanConfig(ScanConfig{}))
	assert.Error(t, err, "zero config cannot hold a line")

	_, err = NewScanner(WithEngine("nope"))
	assert.Error(t, err)
}

func TestGrep(t *testing.T) {
	scanner := newPortableScanner(t)
	path := writeLog(t, "app.log", "start\nwarn: disk\nerror: disk full\nstop")

	lines, res := scanner.Grep(context.Background(), path, "disk", "stop")

	require.True(t, res.Status.OK(), res.Message())
	assert.Equal(t, []Line{
		{Number: 2, Text: "warn: disk"},
		{Number: 3, Text: "error: disk full"},
		{Number: 4, Text: "stop"},
	}, lines)
	assert.Equal(t, uint64(3), res.MatchesFound)
	assert.Equal(t, uint64(4), res.LinesScanned)
}

func TestGrepNoMatches(t *testing.T) {
	scanner := newPortableScanner(t)
	path := writeLog(t, "app.log", "quiet\n")

	lines, res := scanner.Grep(context.Background(), path, "absent")
	assert.Empty(t, lines)
	assert.Equal(t, StatusOK, res.Status)
}

func TestGrepErrors(t *testing.T) {
	scanner := newPortableScanner(t)

	_, res := scanner.Grep(context.Background(), filepath.Join(t.TempDir(), "missing"), "x")
	assert.Equal(t, StatusOpenError, res.Status)

	_, res = scanner.Grep(context.Background(), "any", "(unclosed")
	assert.Equal(t, StatusCompileError, res.Status)

	_, res = scanner.Grep(context.Background(), "any")
	assert.Equal(t, StatusCompileError, res.Status)
}

func TestScanFileBatches(t *testing.T) {
	scanner := newPortableScanner(t, WithScanConfig(ScanConfig{LineBufferSize: 1024, BatchCapacity: 2}))
	path := writeLog(t, "app.log", "a\na\nb\na\n")

	var kept []MatchRecord
	var batches int
	res := scanner.ScanFile(context.Background(), path, NewPatternSet("a"), func(batch []MatchRecord) {
		batches++
		kept = append(kept, CloneRecords(batch)...)
	})

	require.True(t, res.Status.OK())
	assert.Equal(t, 2, batches)
	require.Len(t, kept, 3)
	assert.Equal(t, uint64(4), kept[2].LineNumber)
	assert.Equal(t, "a\n", string(kept[2].Line))
}

func TestScanFiles(t *testing.T) {
	scanner := newPortableScanner(t, WithWorkers(2))
	a := writeLog(t, "a.log", "hit\n")
	b := writeLog(t, "b.log", "miss\n")
	missing := filepath.Join(t.TempDir(), "missing.log")

	var mu sync.Mutex
	seen := map[string]int{}
	results, err := scanner.ScanFiles(context.Background(), []string{a, b, missing}, NewPatternSet("hit"),
		func(f FileRef, batch []MatchRecord) {
			mu.Lock()
			defer mu.Unlock()
			seen[f.Path] += len(batch)
		})

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, map[string]int{a: 1}, seen)
	assert.Equal(t, StatusOK, results[1].Status)
	assert.Equal(t, StatusOpenError, results[2].Status)
	assert.Equal(t, uint64(1), results.TotalMatches())
}

func TestCheckCompatibility(t *testing.T) {
	scanner := newPortableScanner(t)

	failed := scanner.CheckCompatibility(NewPatternSet("ok", "(bad", `\d+`))
	require.Len(t, failed, 1)
	assert.Contains(t, failed, uint(1))
}

func TestClose(t *testing.T) {
	scanner, err := NewScanner(WithEngine("portable"))
	require.NoError(t, err)
	require.NoError(t, scanner.Close())
	require.NoError(t, scanner.Close())

	_, err = scanner.ScanFiles(context.Background(), []string{"x"}, NewPatternSet("x"), nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentScanners(t *testing.T) {
	scanner := newPortableScanner(t)
	path := writeLog(t, "app.log", "alpha\nbeta\n")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lines, res := scanner.Grep(context.Background(), path, "beta")
			assert.True(t, res.Status.OK())
			assert.Len(t, lines, 1)
		}()
	}
	wg.Wait()
}

func TestGrepReader(t *testing.T) {
	scanner := newPortableScanner(t)

	lines, res := scanner.GrepReader(context.Background(), strings.NewReader("one\ntwo\nthree\n"), "<memory>", "^t")

	require.True(t, res.Status.OK(), res.Message())
	assert.Equal(t, "<memory>", res.Path)
	assert.Equal(t, []Line{{Number: 2, Text: "two"}, {Number: 3, Text: "three"}}, lines)

	_, res = scanner.GrepReader(context.Background(), io.MultiReader(), "empty", "x")
	assert.Equal(t, StatusOK, res.Status)
	assert.Zero(t, res.LinesScanned)

	require.NoError(t, scanner.Close())
	_, res = scanner.GrepReader(context.Background(), strings.NewReader("x"), "closed", "x")
	assert.ErrorIs(t, res.Err, ErrClosed)
}
