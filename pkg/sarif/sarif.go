// Package sarif converts stored scan runs into SARIF 2.1.0 reports.
package sarif

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/hypergrep/pkg/store"
)

// SARIF 2.1.0 constants
const (
	SchemaURI = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version   = "2.1.0"
	ToolName  = "hypergrep"
)

// Report is the top-level SARIF report structure
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`

	rules []map[uint]int // per run: pattern id -> rule index
}

// Run represents a single invocation of the tool
type Run struct {
	Tool        Tool         `json:"tool"`
	Invocations []Invocation `json:"invocations,omitempty"`
	Results     []Result     `json:"results"`
}

// Tool describes the analysis tool
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains tool metadata
type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

// Rule represents one pattern of the run
type Rule struct {
	ID               string           `json:"id"`
	Name             string           `json:"name,omitempty"`
	ShortDescription ShortDescription `json:"shortDescription"`
	Properties       *RuleProperties  `json:"properties,omitempty"`
}

// RuleProperties carries the engine view of a pattern
type RuleProperties struct {
	Pattern string `json:"pattern"`
	Flags   string `json:"flags"`
}

// ShortDescription contains rule description text
type ShortDescription struct {
	Text string `json:"text"`
}

// Invocation records whether the run completed and which files failed
type Invocation struct {
	ExecutionSuccessful        bool           `json:"executionSuccessful"`
	StartTimeUTC               string         `json:"startTimeUtc,omitempty"`
	ToolExecutionNotifications []Notification `json:"toolExecutionNotifications,omitempty"`
}

// Notification reports a file that could not be scanned
type Notification struct {
	Level     string     `json:"level"`
	Message   Message    `json:"message"`
	Locations []Location `json:"locations,omitempty"`
}

// Result represents a single matching line
type Result struct {
	RuleID    string     `json:"ruleId"`
	RuleIndex int        `json:"ruleIndex"`
	Level     string     `json:"level"`
	Message   Message    `json:"message"`
	Locations []Location `json:"locations"`
}

// Message contains the result message
type Message struct {
	Text string `json:"text"`
}

// Location describes where a result was found
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation specifies file location
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           *Region          `json:"region,omitempty"`
}

// ArtifactLocation identifies the file
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region specifies the line/column range
type Region struct {
	StartLine   int      `json:"startLine"`
	StartColumn int      `json:"startColumn"`
	EndLine     int      `json:"endLine"`
	EndColumn   int      `json:"endColumn"`
	Snippet     *Snippet `json:"snippet,omitempty"`
}

// Snippet contains the matched text
type Snippet struct {
	Text string `json:"text"`
}

// NewReport creates an empty SARIF report.
func NewReport() *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs:    []Run{},
	}
}

// RuleID names a pattern: its name when it has one, otherwise "pattern-<id>".
func RuleID(p store.Pattern) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("pattern-%d", p.ID)
}

// AddRun appends a SARIF run for a stored run with one rule per pattern,
// and returns its index.
func (r *Report) AddRun(run *store.Run, toolVersion string) int {
	driver := Driver{Name: ToolName, Version: toolVersion, Rules: []Rule{}}
	byID := make(map[uint]int, len(run.Patterns))
	for j, p := range run.Patterns {
		byID[p.ID] = j
		driver.Rules = append(driver.Rules, Rule{
			ID:               RuleID(p),
			Name:             p.Name,
			ShortDescription: ShortDescription{Text: p.Pattern},
			Properties:       &RuleProperties{Pattern: p.Pattern, Flags: p.Flags},
		})
	}

	inv := Invocation{ExecutionSuccessful: true}
	if !run.StartedAt.IsZero() {
		inv.StartTimeUTC = run.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z")
	}

	r.Runs = append(r.Runs, Run{
		Tool:        Tool{Driver: driver},
		Invocations: []Invocation{inv},
		Results:     []Result{},
	})
	r.rules = append(r.rules, byID)
	return len(r.Runs) - 1
}

// AddMatch adds a matching line to run index i.
func (r *Report) AddMatch(i int, m *store.Match) {
	run := &r.Runs[i]

	ruleID := RuleID(store.Pattern{ID: m.PatternID})
	ruleIndex := -1
	if j, ok := r.rules[i][m.PatternID]; ok {
		ruleID = run.Tool.Driver.Rules[j].ID
		ruleIndex = j
	}

	line := string(bytes.TrimSuffix(m.Line, []byte("\n")))
	region := &Region{
		StartLine:   int(m.LineNumber),
		StartColumn: 1,
		EndLine:     int(m.LineNumber),
		EndColumn:   len(line) + 1,
		Snippet:     &Snippet{Text: line},
	}

	run.Results = append(run.Results, Result{
		RuleID:    ruleID,
		RuleIndex: ruleIndex,
		Level:     "note",
		Message:   Message{Text: fmt.Sprintf("Line %d matches %s", m.LineNumber, ruleID)},
		Locations: []Location{{
			PhysicalLocation: PhysicalLocation{
				ArtifactLocation: ArtifactLocation{URI: formatFileURI(m.Path)},
				Region:           region,
			},
		}},
	})
}

// AddFailure records a file that could not be scanned on run index i and
// marks the run as unsuccessful.
func (r *Report) AddFailure(i int, res *store.Result) {
	inv := &r.Runs[i].Invocations[0]
	inv.ExecutionSuccessful = false
	inv.ToolExecutionNotifications = append(inv.ToolExecutionNotifications, Notification{
		Level:   "error",
		Message: Message{Text: fmt.Sprintf("%s: %s", res.Status, res.Message)},
		Locations: []Location{{
			PhysicalLocation: PhysicalLocation{
				ArtifactLocation: ArtifactLocation{URI: formatFileURI(res.Path)},
			},
		}},
	})
}

// FromStore builds a report with one SARIF run per stored run.
func FromStore(s store.Store, toolVersion string) (*Report, error) {
	runs, err := s.GetRuns()
	if err != nil {
		return nil, err
	}
	matches, err := s.GetAllMatches()
	if err != nil {
		return nil, err
	}
	results, err := s.GetResults()
	if err != nil {
		return nil, err
	}

	report := NewReport()
	index := make(map[int64]int, len(runs))
	for _, run := range runs {
		index[run.ID] = report.AddRun(run, toolVersion)
	}
	for _, m := range matches {
		if i, ok := index[m.RunID]; ok {
			report.AddMatch(i, m)
		}
	}
	for _, res := range results {
		if i, ok := index[res.RunID]; ok && !res.Status.OK() {
			report.AddFailure(i, res)
		}
	}
	return report, nil
}

// ToJSON serializes the report to JSON bytes
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// formatFileURI converts a file path to SARIF URI format
// Absolute paths get file:// prefix, relative paths stay as-is
func formatFileURI(path string) string {
	if filepath.IsAbs(path) {
		// Normalize path separators for URI format
		path = filepath.ToSlash(path)
		// Ensure path starts with /
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "file://" + path
	}
	// Relative paths stay as-is
	return filepath.ToSlash(path)
}
