package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/praetorian-inc/hypergrep/pkg/output"
	"github.com/praetorian-inc/hypergrep/pkg/sarif"
	"github.com/praetorian-inc/hypergrep/pkg/store"
)

var (
	reportDatabase string
	reportFormat   string
	reportColor    string
	reportOutput   string
)

// reportStyles holds the color formatters of the text report.
type reportStyles struct {
	heading *color.Color
	id      *color.Color
	path    *color.Color
	failure *color.Color
}

func newReportStyles(enabled bool) *reportStyles {
	s := &reportStyles{
		heading: color.New(color.Bold),
		id:      color.New(color.FgHiGreen),
		path:    color.New(color.FgMagenta),
		failure: color.New(color.FgRed),
	}
	if !enabled {
		s.heading.DisableColor()
		s.id.DisableColor()
		s.path.DisableColor()
		s.failure.DisableColor()
	}
	return s
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a report from a recorded search",
	Long:  "Read runs, per-file results and matches written with --db and print them as text, JSON or SARIF",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDatabase, "db", "hypergrep.db", "SQLite file or postgres:// DSN to read")
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "Output format: text, json, sarif")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Write the report to `FILE` instead of stdout")
}

// reportData is the JSON form of a database.
type reportData struct {
	Runs    []*store.Run    `json:"runs"`
	Results []*store.Result `json:"results"`
	Matches []reportMatch   `json:"matches"`
}

type reportMatch struct {
	RunID      int64  `json:"run_id"`
	Path       string `json:"path"`
	PatternID  uint   `json:"pattern_id"`
	LineNumber uint64 `json:"line_number"`
	Line       string `json:"line"`
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportDatabase == ":memory:" {
		return fmt.Errorf("cannot report from in-memory store")
	}
	if !store.IsPostgresDSN(reportDatabase) {
		if _, err := os.Stat(reportDatabase); err != nil {
			return fmt.Errorf("database not found: %s", reportDatabase)
		}
	}

	s, err := store.New(store.Config{Path: reportDatabase})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	var buf bytes.Buffer
	switch reportFormat {
	case "json":
		err = writeReportJSON(&buf, s)
	case "sarif":
		err = writeReportSARIF(&buf, s)
	case "text", "human":
		colored := false
		if reportOutput == "" {
			outFile, _ := cmd.OutOrStdout().(*os.File)
			colored, err = output.ColorEnabled(reportColor, outFile)
			if err != nil {
				return err
			}
		}
		err = writeReportText(&buf, s, newReportStyles(colored))
	default:
		return fmt.Errorf("unknown output format: %s", reportFormat)
	}
	if err != nil {
		return err
	}

	if reportOutput != "" {
		if err := output.WriteFile(reportOutput, buf.Bytes()); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		return nil
	}
	_, err = cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

func writeReportJSON(w io.Writer, s store.Store) error {
	data := reportData{Runs: []*store.Run{}, Results: []*store.Result{}, Matches: []reportMatch{}}

	runs, err := s.GetRuns()
	if err != nil {
		return fmt.Errorf("retrieving runs: %w", err)
	}
	results, err := s.GetResults()
	if err != nil {
		return fmt.Errorf("retrieving results: %w", err)
	}
	matches, err := s.GetAllMatches()
	if err != nil {
		return fmt.Errorf("retrieving matches: %w", err)
	}

	data.Runs = append(data.Runs, runs...)
	data.Results = append(data.Results, results...)
	for _, m := range matches {
		data.Matches = append(data.Matches, reportMatch{
			RunID:      m.RunID,
			Path:       m.Path,
			PatternID:  m.PatternID,
			LineNumber: m.LineNumber,
			Line:       string(bytes.TrimSuffix(m.Line, []byte("\n"))),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func writeReportSARIF(w io.Writer, s store.Store) error {
	report, err := sarif.FromStore(s, version)
	if err != nil {
		return fmt.Errorf("building SARIF report: %w", err)
	}
	data, err := report.ToJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func writeReportText(w io.Writer, s store.Store, st *reportStyles) error {
	runs, err := s.GetRuns()
	if err != nil {
		return fmt.Errorf("retrieving runs: %w", err)
	}
	results, err := s.GetResults()
	if err != nil {
		return fmt.Errorf("retrieving results: %w", err)
	}
	matches, err := s.GetAllMatches()
	if err != nil {
		return fmt.Errorf("retrieving matches: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	type summary struct {
		files, failed int
		matches       uint64
		lines         uint64
		elapsed       time.Duration
		failures      []*store.Result
	}
	byRun := make(map[int64]*summary, len(runs))
	for _, run := range runs {
		byRun[run.ID] = &summary{}
	}
	for _, res := range results {
		sum, ok := byRun[res.RunID]
		if !ok {
			continue
		}
		sum.files++
		sum.matches += res.MatchesFound
		sum.lines += res.LinesScanned
		sum.elapsed += res.Duration
		if !res.Status.OK() {
			sum.failed++
			sum.failures = append(sum.failures, res)
		}
	}
	matchesByRun := make(map[int64][]*store.Match)
	for _, m := range matches {
		matchesByRun[m.RunID] = append(matchesByRun[m.RunID], m)
	}

	for i, run := range runs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		sum := byRun[run.ID]
		st.heading.Fprintf(w, "Run %s", st.id.Sprintf("%d", run.ID))
		fmt.Fprintf(w, " (%s, %s)\n", run.Engine, run.StartedAt.Format(time.RFC3339))
		for _, p := range run.Patterns {
			fmt.Fprintf(w, "  Pattern [%d] %s (%s)\n", p.ID, p.Label(), p.Flags)
		}
		fmt.Fprintf(w, "  Files: %d scanned, %d failed\n", sum.files, sum.failed)
		fmt.Fprintf(w, "  Lines: %d scanned, %d matched\n", sum.lines, sum.matches)
		fmt.Fprintf(w, "  Scan time: %s\n", sum.elapsed.Round(time.Millisecond))

		for _, res := range sum.failures {
			fmt.Fprintf(w, "  %s %s: %s\n", st.failure.Sprint(res.Status.String()), st.path.Sprint(res.Path), res.Message)
		}
		for _, m := range matchesByRun[run.ID] {
			fmt.Fprintf(w, "  %s:%d:%s\n", st.path.Sprint(m.Path), m.LineNumber, bytes.TrimSuffix(m.Line, []byte("\n")))
		}
	}
	return nil
}
