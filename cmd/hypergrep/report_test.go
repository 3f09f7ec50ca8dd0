package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetReportFlags(db string) {
	reportDatabase = db
	reportFormat = "text"
	reportColor = "never"
	reportOutput = ""
}

func runReportCapture(t *testing.T) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	err := runReport(cmd, nil)
	return buf.String(), err
}

func TestReportCommand_TextFormat(t *testing.T) {
	// Arrange
	db := filepath.Join(t.TempDir(), "runs.db")
	seedDatabase(t, db, "app.log", 3, 9)
	resetReportFlags(db)

	// Act
	out, err := runReportCapture(t)

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "Run 1 (portable, ")
	assert.Contains(t, out, "Pattern [0] errors (dotall|multiline|singlematch)")
	assert.Contains(t, out, "Files: 1 scanned, 0 failed")
	assert.Contains(t, out, "Lines: 10 scanned, 2 matched")
	assert.Contains(t, out, "app.log:3:error here\n")
	assert.Contains(t, out, "app.log:9:error here\n")
}

func TestReportCommand_JSONFormat(t *testing.T) {
	// Arrange
	db := filepath.Join(t.TempDir(), "runs.db")
	seedDatabase(t, db, "app.log", 5)
	resetReportFlags(db)
	reportFormat = "json"

	// Act
	out, err := runReportCapture(t)

	// Assert
	require.NoError(t, err)
	var data reportData
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	require.Len(t, data.Runs, 1)
	assert.Equal(t, "errors", data.Runs[0].Patterns[0].Name)
	require.Len(t, data.Matches, 1)
	assert.Equal(t, "error here", data.Matches[0].Line)
	assert.Equal(t, uint64(5), data.Matches[0].LineNumber)
}

func TestReportCommand_SARIFFormat(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	seedDatabase(t, db, "app.log", 2)
	resetReportFlags(db)
	reportFormat = "sarif"
	reportOutput = filepath.Join(dir, "report.sarif")

	// Act
	out, err := runReportCapture(t)

	// Assert
	require.NoError(t, err)
	assert.Empty(t, out, "report goes to the output file")

	data, err := os.ReadFile(reportOutput)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "2.1.0", doc["version"])
	runs := doc["runs"].([]any)
	require.Len(t, runs, 1)
	results := runs[0].(map[string]any)["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "errors", results[0].(map[string]any)["ruleId"])
}

func TestReportCommand_EmptyDatabase(t *testing.T) {
	// A schema with no runs reports that nothing was recorded.
	s := filepath.Join(t.TempDir(), "fresh.db")
	resetReportFlags(s)
	require.NoError(t, os.WriteFile(s, nil, 0644))

	out, err := runReportCapture(t)
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", out)
}

func TestReportCommand_NonexistentDatabase(t *testing.T) {
	resetReportFlags(filepath.Join(t.TempDir(), "missing.db"))

	_, err := runReportCapture(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found")
}

func TestReportCommand_InvalidInputs(t *testing.T) {
	resetReportFlags(":memory:")
	_, err := runReportCapture(t)
	assert.ErrorContains(t, err, "in-memory")

	db := filepath.Join(t.TempDir(), "runs.db")
	seedDatabase(t, db, "app.log", 1)
	resetReportFlags(db)
	reportFormat = "xml"
	_, err = runReportCapture(t)
	assert.ErrorContains(t, err, "unknown output format")
}
