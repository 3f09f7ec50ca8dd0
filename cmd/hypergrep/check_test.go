package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/hypergrep/pkg/matcher"
)

func resetCheckFlags() {
	checkPatternFiles = nil
	checkEngine = matcher.EnginePortable
	checkSyntax = "extended"
	checkNoGNU = false
	checkIgnoreCase = false
}

func TestRunCheck_AllCompile(t *testing.T) {
	// Arrange
	resetCheckFlags()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	// Act
	err := runCheck(cmd, []string{"foo", `ba[rz]+`})

	// Assert
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Engine: portable")
	assert.Contains(t, out, "ok    [0] foo")
	assert.Contains(t, out, "ok    [1] ba[rz]+")
	assert.Contains(t, out, "2 of 2 patterns compiled")
}

func TestRunCheck_ReportsFailures(t *testing.T) {
	// Arrange
	resetCheckFlags()
	dir := t.TempDir()
	file := filepath.Join(dir, "patterns.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`patterns:
  - id: 7
    name: broken
    pattern: '(unclosed'
`), 0644))
	checkPatternFiles = []string{file}

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	// Act
	err := runCheck(cmd, []string{"fine"})

	// Assert
	assert.Equal(t, exitNoMatch, exitCode(err))
	out := buf.String()
	assert.Contains(t, out, "FAIL  [7] broken")
	assert.Contains(t, out, "1 of 2 patterns compiled")
}

func TestRunCheck_UsageErrors(t *testing.T) {
	resetCheckFlags()
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	assert.Equal(t, exitTrouble, exitCode(runCheck(cmd, nil)))

	checkSyntax = "posix"
	assert.Equal(t, exitTrouble, exitCode(runCheck(cmd, []string{"x"})))
}
