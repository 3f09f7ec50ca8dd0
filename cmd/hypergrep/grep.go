package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/hypergrep/pkg/coordinator"
	"github.com/praetorian-inc/hypergrep/pkg/enum"
	"github.com/praetorian-inc/hypergrep/pkg/logging"
	"github.com/praetorian-inc/hypergrep/pkg/matcher"
	"github.com/praetorian-inc/hypergrep/pkg/output"
	"github.com/praetorian-inc/hypergrep/pkg/pattern"
	"github.com/praetorian-inc/hypergrep/pkg/store"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

func runGrep(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()
	logger := newLogger(cmd.ErrOrStderr())

	entries, paths, err := loadPatterns(args)
	if err != nil {
		return err
	}
	set := pattern.Specs(entries)
	combined := pattern.Combine(set, combinedFlags(set))
	logger.Debug("patterns loaded", "count", len(set), "pattern", combined.Pattern, "flags", combined.Flags)

	eng, err := matcher.New(grepEngine, matcher.WithLogger(logger))
	if err != nil {
		return usageError("%w", err)
	}

	files, err := listFiles(ctx, cmd.InOrStdin(), paths)
	if err != nil {
		return usageError("%w", err)
	}

	cfg, err := scanConfig()
	if err != nil {
		return usageError("%w", err)
	}

	format, err := output.ParseFormat(grepFormat)
	if err != nil {
		return usageError("%w", err)
	}
	outFile, _ := cmd.OutOrStdout().(*os.File)
	colored, err := output.ColorEnabled(grepColor, outFile)
	if err != nil {
		return usageError("%w", err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if grepQuiet {
		out = io.Discard
	}
	bw := bufio.NewWriter(out)
	printer, err := output.New(bw, cmd.ErrOrStderr(), output.Options{
		Format:       format,
		WithFilename: withFilename(len(files)),
		LineNumber:   grepLineNumber,
		Count:        grepCount,
		Total:        grepTotal,
		OnlyMatching: grepOnlyMatching,
		NoMessages:   grepNoMessages,
		Color:        colored,
		Ordered:      !grepNoOrder,
		Patterns:     types.PatternSet{combined},
	})
	if err != nil {
		return &exitError{code: exitTrouble, err: fmt.Errorf("%w: %w", types.ErrCompile, err)}
	}

	rec, err := openRecorder(eng.Name(), entries, combined)
	if err != nil {
		return &exitError{code: exitTrouble, err: err}
	}
	defer rec.close()

	var matched atomic.Bool
	onMatch := func(file types.FileRef, batch []types.MatchRecord) {
		matched.Store(true)
		rec.addMatches(file.Path, batch)
		if grepQuiet {
			cancel()
			return
		}
		printer.OnMatch(file, batch)
	}
	onDone := func(file types.FileRef, res types.ScanResult) {
		rec.addResult(res)
		printer.FileDone(file, res)
	}

	c := coordinator.New(eng,
		coordinator.WithScanConfig(cfg),
		coordinator.WithWorkers(grepWorkers),
		coordinator.WithLogger(logger),
		coordinator.WithFileDone(onDone),
	)
	defer c.Close()

	start := time.Now()
	results, err := c.ScanAll(ctx, files, []types.PatternSpec{combined}, onMatch)
	if err != nil {
		return &exitError{code: exitTrouble, err: err}
	}
	logger.Debug("scan finished",
		"files", len(files),
		"matches", results.TotalMatches(),
		"lines", results.TotalLines(),
		"duration", time.Since(start))

	printErr := printer.Close()
	if err := bw.Flush(); err != nil && printErr == nil {
		printErr = err
	}

	if grepQuiet && matched.Load() {
		return nil
	}
	if printErr != nil {
		return &exitError{code: exitTrouble, err: fmt.Errorf("writing output: %w", printErr)}
	}
	if err := rec.err(); err != nil {
		return &exitError{code: exitTrouble, err: fmt.Errorf("recording run: %w", err)}
	}
	if err := ctx.Err(); err != nil {
		return &exitError{code: exitTrouble, err: fmt.Errorf("%w: %w", types.ErrCanceled, err)}
	}
	if len(results.Failed()) > 0 {
		// Per-file messages were already printed.
		return &exitError{code: exitTrouble}
	}
	if results.TotalMatches() == 0 {
		return errNoMatch
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newLogger configures logging from the environment; --verbose forces debug.
func newLogger(w io.Writer) *slog.Logger {
	opts := logging.OptionsFromEnv()
	if verbose {
		opts.Level = slog.LevelDebug
	}
	return logging.New(w, opts)
}

func syntax() pattern.Syntax {
	switch {
	case grepPerl:
		return pattern.SyntaxPerl
	case grepExtended:
		return pattern.SyntaxExtended
	default:
		return pattern.SyntaxBasic
	}
}

// loadPatterns gathers the patterns from -e, -f or the first argument and
// returns the remaining arguments as paths.
func loadPatterns(args []string) ([]pattern.Entry, []string, error) {
	exprs := grepExpressions
	paths := args
	if len(grepExpressions) == 0 && len(grepPatternFiles) == 0 {
		if len(args) == 0 {
			return nil, nil, usageError("no pattern given")
		}
		exprs = args[:1]
		paths = args[1:]
	}

	entries, err := pattern.Collect(exprs, grepPatternFiles)
	if err != nil {
		return nil, nil, &exitError{code: exitTrouble, err: err}
	}

	if grepIncludeNames != "" || grepExcludeNames != "" {
		entries, err = pattern.Filter(entries, pattern.FilterConfig{
			Include: pattern.ParseList(grepIncludeNames),
			Exclude: pattern.ParseList(grepExcludeNames),
		})
		if err != nil {
			return nil, nil, usageError("%w", err)
		}
		if len(entries) == 0 {
			return nil, nil, usageError("no patterns left after filtering")
		}
	}

	entries, err = pattern.Convert(entries, pattern.Options{
		Syntax:   syntax(),
		NoGNU:    grepNoGNU,
		Caseless: grepIgnoreCase,
	})
	if err != nil {
		return nil, nil, &exitError{code: exitTrouble, err: fmt.Errorf("%w: %w", types.ErrCompile, err)}
	}
	return entries, paths, nil
}

// combinedFlags keeps the patterns' flags when they all agree and falls back
// to the defaults otherwise. SingleMatch is always set so each line is
// reported once.
func combinedFlags(set types.PatternSet) types.Flags {
	flags := set[0].Flags
	for _, p := range set[1:] {
		if p.Flags != flags {
			flags = types.DefaultFlags
			if grepIgnoreCase {
				flags |= types.FlagCaseless
			}
			break
		}
	}
	return flags | types.FlagSingleMatch
}

// listFiles expands the path arguments, or the path list on stdin when there
// are none.
func listFiles(ctx context.Context, stdin io.Reader, paths []string) ([]string, error) {
	if len(paths) == 0 {
		var err error
		paths, err = enum.ReadPathList(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading file list: %w", err)
		}
		if len(paths) == 0 {
			return nil, errors.New("no files given")
		}
	}
	return enum.ExpandPaths(ctx, enum.Config{
		Paths:         paths,
		Recursive:     grepRecursive,
		IncludeHidden: grepIncludeHidden,
		NoIgnore:      grepNoIgnore,
		MaxFileSize:   grepMaxFileSize,
		Sort:          !grepNoSort,
	})
}

func scanConfig() (types.ScanConfig, error) {
	cfg := types.ScanConfig{
		LineBufferSize: grepLineBuffer,
		BatchCapacity:  grepBatchSize,
		MaxMatches:     grepMaxCount,
	}
	if grepQuiet {
		cfg.MaxMatches = 1
	}
	return cfg, cfg.Validate()
}

// withFilename mirrors grep: names are shown for several files or a recursive
// search unless -h or -H says otherwise.
func withFilename(files int) bool {
	switch {
	case grepNoFilename:
		return false
	case grepWithFilename:
		return true
	default:
		return files > 1 || grepRecursive
	}
}

// recorder writes the run to the --db store. Without --db every method is a
// no-op. The first write error is kept and reported at the end.
type recorder struct {
	s store.Store

	mu       sync.Mutex
	firstErr error
}

func openRecorder(engine string, entries []pattern.Entry, combined types.PatternSpec) (*recorder, error) {
	rec := &recorder{}
	if grepDatabase == "" {
		return rec, nil
	}

	s, err := store.New(store.Config{Path: grepDatabase})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	run := &store.Run{
		Engine:    engine,
		Patterns:  []store.Pattern{store.PatternFromSpec(runLabel(entries), combined)},
		StartedAt: time.Now().UTC(),
	}
	if err := s.AddScan(run); err != nil {
		s.Close()
		return nil, fmt.Errorf("recording run: %w", err)
	}
	rec.s = s
	return rec, nil
}

// runLabel names the combined pattern after its parts.
func runLabel(entries []pattern.Entry) string {
	if len(entries) == 1 {
		return entries[0].Name
	}
	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.Label()
	}
	return strings.Join(labels, ", ")
}

func (r *recorder) addMatches(path string, batch []types.MatchRecord) {
	if r.s == nil {
		return
	}
	r.record(r.s.AddMatches(path, batch))
}

func (r *recorder) addResult(res types.ScanResult) {
	if r.s == nil {
		return
	}
	r.record(r.s.AddResult(res))
}

func (r *recorder) record(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.firstErr == nil {
		r.firstErr = err
	}
}

func (r *recorder) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstErr
}

func (r *recorder) close() {
	if r.s != nil {
		r.record(r.s.Close())
	}
}
