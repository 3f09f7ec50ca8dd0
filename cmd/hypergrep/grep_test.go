package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/hypergrep/pkg/matcher"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// resetGrepFlags restores the flag defaults between tests.
func resetGrepFlags(t *testing.T) {
	t.Helper()
	verbose = false
	grepExtended, grepBasic, grepPerl = false, false, false
	grepExpressions, grepPatternFiles = nil, nil
	grepIgnoreCase, grepCount, grepTotal = false, false, false
	grepMaxCount = 0
	grepOnlyMatching, grepQuiet, grepNoMessages = false, false, false
	grepWithFilename, grepNoFilename, grepLineNumber = false, false, false
	grepNoGNU, grepNoOrder, grepNoSort = false, false, false
	grepRecursive, grepIncludeHidden, grepNoIgnore = false, false, false
	grepColor = "never"
	grepFormat = "text"
	grepEngine = matcher.EnginePortable
	grepWorkers = 2
	grepBatchSize = types.DefaultBatchCapacity
	grepLineBuffer = types.DefaultLineBufferSize
	grepMaxFileSize = 0
	grepDatabase = ""
	grepIncludeNames, grepExcludeNames = "", ""
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// grep runs the root command logic and returns stdout, stderr and the error.
func grep(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	err := runGrep(cmd, args)
	return out.String(), errOut.String(), err
}

func TestRunGrep_SingleFile(t *testing.T) {
	resetGrepFlags(t)
	path := writeFile(t, t.TempDir(), "app.log", "hello\nworld\nhello again\n")

	out, _, err := grep(t, "", "hello", path)
	require.NoError(t, err)
	assert.Equal(t, "hello\nhello again\n", out)
}

func TestRunGrep_NoMatch(t *testing.T) {
	resetGrepFlags(t)
	path := writeFile(t, t.TempDir(), "app.log", "hello\n")

	out, _, err := grep(t, "", "absent", path)
	assert.Empty(t, out)
	assert.Equal(t, exitNoMatch, exitCode(err))
}

func TestRunGrep_FilesInOrderWithNames(t *testing.T) {
	resetGrepFlags(t)
	dir := t.TempDir()
	b := writeFile(t, dir, "b.log", "error two\n")
	a := writeFile(t, dir, "a.log", "ok\nerror one\n")

	grepLineNumber = true
	out, _, err := grep(t, "", "error", b, a)
	require.NoError(t, err)
	// Sorted by path, each line prefixed with name and line number.
	assert.Equal(t, a+":2:error one\n"+b+":1:error two\n", out)
}

func TestRunGrep_Count(t *testing.T) {
	resetGrepFlags(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.log", "x\nx\ny\n")
	b := writeFile(t, dir, "b.log", "y\n")

	grepCount = true
	out, _, err := grep(t, "", "x", a, b)
	require.NoError(t, err)
	assert.Equal(t, a+":2\n"+b+":0\n", out)

	resetGrepFlags(t)
	grepTotal = true
	out, _, err = grep(t, "", "x", a, b)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestRunGrep_MissingFile(t *testing.T) {
	resetGrepFlags(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.log", "match\n")
	missing := filepath.Join(dir, "missing.log")

	out, errOut, err := grep(t, "", "match", a, missing)
	assert.Equal(t, exitTrouble, exitCode(err))
	assert.Equal(t, a+":match\n", out)
	assert.Contains(t, errOut, "hypergrep: open failed")

	// -s suppresses the message but not the exit status.
	grepNoMessages = true
	_, errOut, err = grep(t, "", "match", a, missing)
	assert.Equal(t, exitTrouble, exitCode(err))
	assert.Empty(t, errOut)
}

func TestRunGrep_Quiet(t *testing.T) {
	resetGrepFlags(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.log", "match\n")
	missing := filepath.Join(dir, "missing.log")

	grepQuiet = true
	out, _, err := grep(t, "", "match", a, missing)
	assert.NoError(t, err, "a match wins over file errors in quiet mode")
	assert.Empty(t, out)

	_, _, err = grep(t, "", "absent", a)
	assert.Equal(t, exitNoMatch, exitCode(err))
}

func TestRunGrep_MultiplePatterns(t *testing.T) {
	resetGrepFlags(t)
	path := writeFile(t, t.TempDir(), "app.log", "Alpha\nbeta\ngamma\nalpha beta\n")

	grepExpressions = []string{"alpha", "beta"}
	grepIgnoreCase = true
	out, _, err := grep(t, "", path)
	require.NoError(t, err)
	// A line matching both patterns is printed once.
	assert.Equal(t, "Alpha\nbeta\nalpha beta\n", out)
}

func TestRunGrep_MaxCount(t *testing.T) {
	resetGrepFlags(t)
	path := writeFile(t, t.TempDir(), "app.log", "a1\na2\na3\n")

	grepMaxCount = 2
	out, _, err := grep(t, "", "a", path)
	require.NoError(t, err)
	assert.Equal(t, "a1\na2\n", out)
}

func TestRunGrep_OnlyMatching(t *testing.T) {
	resetGrepFlags(t)
	path := writeFile(t, t.TempDir(), "app.log", "user=alice id=7\n")

	grepExtended = true
	grepOnlyMatching = true
	out, _, err := grep(t, "", "[a-z]+=[0-9]+", path)
	require.NoError(t, err)
	assert.Equal(t, "id=7\n", out)
}

func TestRunGrep_BasicSyntax(t *testing.T) {
	resetGrepFlags(t)
	path := writeFile(t, t.TempDir(), "app.log", "error\nerr\nerrors\n")

	out, _, err := grep(t, "", `^err\(or\)\?$`, path)
	require.NoError(t, err)
	assert.Equal(t, "error\nerr\n", out)
}

func TestRunGrep_PathsFromStdin(t *testing.T) {
	resetGrepFlags(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.log", "needle\n")
	b := writeFile(t, dir, "b.log", "hay\nneedle\n")

	grepExpressions = []string{"needle"}
	out, _, err := grep(t, a+"\n\n"+b+"\n")
	require.NoError(t, err)
	assert.Equal(t, a+":needle\n"+b+":needle\n", out)

	_, _, err = grep(t, "")
	assert.Equal(t, exitTrouble, exitCode(err))
}

func TestRunGrep_Compressed(t *testing.T) {
	resetGrepFlags(t)
	path := filepath.Join(t.TempDir(), "app.log.gz")

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("plain\nsecret line\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	out, _, err := grep(t, "", "secret", path)
	require.NoError(t, err)
	assert.Equal(t, "secret line\n", out)
}

func TestRunGrep_Recursive(t *testing.T) {
	resetGrepFlags(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	a := writeFile(t, dir, "a.log", "hit\n")
	b := writeFile(t, filepath.Join(dir, "sub"), "b.log", "hit\n")

	grepRecursive = true
	out, _, err := grep(t, "", "hit", dir)
	require.NoError(t, err)
	assert.Equal(t, a+":hit\n"+b+":hit\n", out)
}

func TestRunGrep_JSON(t *testing.T) {
	resetGrepFlags(t)
	path := writeFile(t, t.TempDir(), "app.log", "one\ntwo\n")

	grepFormat = "json"
	out, _, err := grep(t, "", "two", path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, path, got["path"])
	assert.Equal(t, float64(2), got["line_number"])
	assert.Equal(t, "two", got["line"])
}

func TestRunGrep_InvalidPattern(t *testing.T) {
	resetGrepFlags(t)
	path := writeFile(t, t.TempDir(), "app.log", "x\n")

	grepPerl = true
	_, _, err := grep(t, "", "(unclosed", path)
	require.Error(t, err)
	assert.Equal(t, exitTrouble, exitCode(err))
	assert.True(t, errors.Is(err, types.ErrCompile))
}

func TestRunGrep_UsageErrors(t *testing.T) {
	resetGrepFlags(t)

	_, _, err := grep(t, "")
	assert.Equal(t, exitTrouble, exitCode(err))

	grepEngine = "nope"
	_, _, err = grep(t, "", "x", "file")
	assert.Equal(t, exitTrouble, exitCode(err))

	resetGrepFlags(t)
	grepLineBuffer = 1
	_, _, err = grep(t, "", "x", "file")
	assert.Equal(t, exitTrouble, exitCode(err))
}

func TestRunGrep_Database(t *testing.T) {
	resetGrepFlags(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "app.log", "boot\nfailure one\nfailure two\n")
	db := filepath.Join(dir, "runs.db")

	grepDatabase = db
	_, _, err := grep(t, "", "failure", path)
	require.NoError(t, err)

	// Arrange the report command against the recorded database
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	reportDatabase = db
	reportFormat = "json"
	reportOutput = ""

	// Act
	require.NoError(t, runReport(cmd, nil))

	// Assert
	var data struct {
		Runs    []map[string]any `json:"runs"`
		Results []map[string]any `json:"results"`
		Matches []reportMatch    `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	require.Len(t, data.Runs, 1)
	assert.Equal(t, matcher.EnginePortable, data.Runs[0]["engine"])
	require.Len(t, data.Results, 1)
	assert.Equal(t, "ok", data.Results[0]["status"])
	require.Len(t, data.Matches, 2)
	assert.Equal(t, "failure one", data.Matches[0].Line)
	assert.Equal(t, uint64(3), data.Matches[1].LineNumber)
}

func TestCombinedFlags(t *testing.T) {
	resetGrepFlags(t)

	same := types.PatternSet{
		{Pattern: "a", Flags: types.FlagCaseless},
		{Pattern: "b", Flags: types.FlagCaseless},
	}
	assert.Equal(t, types.FlagCaseless|types.FlagSingleMatch, combinedFlags(same))

	mixed := types.PatternSet{
		{Pattern: "a", Flags: types.FlagCaseless},
		{Pattern: "b", Flags: types.FlagDotAll},
	}
	assert.Equal(t, types.DefaultFlags, combinedFlags(mixed))

	grepIgnoreCase = true
	assert.Equal(t, types.DefaultFlags|types.FlagCaseless, combinedFlags(mixed))
}

func TestWithFilename(t *testing.T) {
	resetGrepFlags(t)
	assert.False(t, withFilename(1))
	assert.True(t, withFilename(2))

	grepRecursive = true
	assert.True(t, withFilename(1))

	grepNoFilename = true
	assert.False(t, withFilename(3))

	grepNoFilename, grepWithFilename = false, true
	grepRecursive = false
	assert.True(t, withFilename(1))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitMatch, exitCode(nil))
	assert.Equal(t, exitNoMatch, exitCode(errNoMatch))
	assert.Equal(t, exitTrouble, exitCode(usageError("bad flag")))
	assert.Equal(t, exitTrouble, exitCode(errors.New("other")))
	assert.Empty(t, errNoMatch.Error())
}
