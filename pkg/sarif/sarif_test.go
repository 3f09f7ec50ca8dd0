package sarif

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/hypergrep/pkg/store"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

func TestNewReport(t *testing.T) {
	report := NewReport()

	assert.Equal(t, SchemaURI, report.Schema)
	assert.Equal(t, Version, report.Version)
	assert.NotNil(t, report.Runs)
	assert.Empty(t, report.Runs)
}

func TestRuleID(t *testing.T) {
	assert.Equal(t, "pattern-3", RuleID(store.Pattern{ID: 3, Pattern: "x"}))
	assert.Equal(t, "auth.failure", RuleID(store.Pattern{ID: 3, Name: "auth.failure"}))
}

func TestAddRun(t *testing.T) {
	report := NewReport()

	i := report.AddRun(&store.Run{
		Engine: "portable",
		Patterns: []store.Pattern{
			{ID: 0, Pattern: "ERROR", Flags: "dotall"},
			{ID: 7, Name: "timeouts", Pattern: `timed? out`, Flags: "caseless"},
		},
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, "1.2.3")

	require.Equal(t, 0, i)
	driver := report.Runs[0].Tool.Driver
	assert.Equal(t, ToolName, driver.Name)
	assert.Equal(t, "1.2.3", driver.Version)
	require.Len(t, driver.Rules, 2)
	assert.Equal(t, "pattern-0", driver.Rules[0].ID)
	assert.Equal(t, "timeouts", driver.Rules[1].ID)
	assert.Equal(t, `timed? out`, driver.Rules[1].ShortDescription.Text)
	assert.Equal(t, "caseless", driver.Rules[1].Properties.Flags)
	assert.Equal(t, "2026-01-02T03:04:05.000Z", report.Runs[0].Invocations[0].StartTimeUTC)
	assert.True(t, report.Runs[0].Invocations[0].ExecutionSuccessful)
}

func TestAddMatch(t *testing.T) {
	report := NewReport()
	i := report.AddRun(&store.Run{Patterns: []store.Pattern{{ID: 7, Name: "timeouts", Pattern: "timeout"}}}, "dev")

	report.AddMatch(i, &store.Match{Path: "/var/log/app.log", PatternID: 7, LineNumber: 12, Line: []byte("request timeout\n")})
	report.AddMatch(i, &store.Match{Path: "logs/app.log", PatternID: 9, LineNumber: 1, Line: []byte("x")})

	results := report.Runs[0].Results
	require.Len(t, results, 2)

	assert.Equal(t, "timeouts", results[0].RuleID)
	assert.Equal(t, 0, results[0].RuleIndex)
	loc := results[0].Locations[0].PhysicalLocation
	assert.Equal(t, "file:///var/log/app.log", loc.ArtifactLocation.URI)
	assert.Equal(t, 12, loc.Region.StartLine)
	assert.Equal(t, 1, loc.Region.StartColumn)
	assert.Equal(t, 16, loc.Region.EndColumn)
	assert.Equal(t, "request timeout", loc.Region.Snippet.Text)

	// Unknown pattern ids still produce a result
	assert.Equal(t, "pattern-9", results[1].RuleID)
	assert.Equal(t, -1, results[1].RuleIndex)
	assert.Equal(t, "logs/app.log", results[1].Locations[0].PhysicalLocation.ArtifactLocation.URI)
}

func TestFromStore(t *testing.T) {
	// Arrange
	s := store.NewMemory()
	require.NoError(t, s.AddScan(&store.Run{Engine: "portable", Patterns: []store.Pattern{{ID: 0, Pattern: "ERROR"}}}))
	require.NoError(t, s.AddMatches("a.log", []types.MatchRecord{{LineNumber: 3, Line: []byte("ERROR x\n")}}))
	require.NoError(t, s.AddResult(types.ScanResult{Path: "a.log", Status: types.StatusOK, MatchesFound: 1}))
	require.NoError(t, s.AddResult(types.Failed("b.log", errors.New("open failed: b.log"))))

	// Act
	report, err := FromStore(s, "dev")

	// Assert
	require.NoError(t, err)
	require.Len(t, report.Runs, 1)
	run := report.Runs[0]
	require.Len(t, run.Results, 1)
	assert.Equal(t, "pattern-0", run.Results[0].RuleID)

	inv := run.Invocations[0]
	assert.False(t, inv.ExecutionSuccessful)
	require.Len(t, inv.ToolExecutionNotifications, 1)
	assert.Equal(t, "scan_error: open failed: b.log", inv.ToolExecutionNotifications[0].Message.Text)

	data, err := report.ToJSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Version, decoded["version"])
	assert.NotContains(t, string(data), "rules\":null")
}

func TestFormatFileURI(t *testing.T) {
	assert.Equal(t, "file:///tmp/a.log", formatFileURI("/tmp/a.log"))
	assert.Equal(t, "logs/a.log", formatFileURI("logs/a.log"))
}
