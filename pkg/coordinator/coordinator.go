// Package coordinator scans many files in parallel with one compiled pattern
// set, giving every worker goroutine its own scratch.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/hypergrep/pkg/matcher"
	"github.com/praetorian-inc/hypergrep/pkg/metrics"
	"github.com/praetorian-inc/hypergrep/pkg/scanner"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// Coordinator runs Orchestrators over a list of files on a bounded pool of
// worker goroutines.
type Coordinator struct {
	cache     *matcher.Cache
	ownsCache bool
	cfg       types.ScanConfig
	workers   int
	logger    *slog.Logger
	metrics   *metrics.Recorder
	onDone    FileDoneFunc
}

// FileDoneFunc receives the terminal result of each file as soon as it is
// known. It runs on the worker goroutine that scanned the file, after the
// file's last batch was delivered.
type FileDoneFunc func(file types.FileRef, res types.ScanResult)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithScanConfig sets the per-file scan configuration.
func WithScanConfig(cfg types.ScanConfig) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithWorkers sets the maximum number of files scanned concurrently.
// Values below 1 select DefaultWorkers.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder (nil disables metrics).
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Coordinator) { c.metrics = r }
}

// WithFileDone registers a per-file completion callback.
func WithFileDone(fn FileDoneFunc) Option {
	return func(c *Coordinator) { c.onDone = fn }
}

// WithCache shares a matcher cache between coordinators. The caller keeps
// ownership and closes it.
func WithCache(cache *matcher.Cache) Option {
	return func(c *Coordinator) {
		if cache != nil {
			c.cache = cache
			c.ownsCache = false
		}
	}
}

// DefaultWorkers leaves one CPU for the consumer: max(NumCPU-1, 1).
func DefaultWorkers() int {
	return max(runtime.NumCPU()-1, 1)
}

// New creates a Coordinator that compiles patterns with eng.
func New(eng matcher.Engine, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:     types.DefaultScanConfig(),
		workers: DefaultWorkers(),
		logger:  slog.New(slog.DiscardHandler),
		metrics: metrics.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = matcher.NewCache(eng)
		c.ownsCache = true
	}
	return c
}

// Workers returns the configured pool size.
func (c *Coordinator) Workers() int { return c.workers }

// Engine returns the engine patterns are compiled with.
func (c *Coordinator) Engine() matcher.Engine { return c.cache.Engine() }

// Compile returns the shared Matcher for patterns, compiling it on first use.
func (c *Coordinator) Compile(patterns []types.PatternSpec) (matcher.Matcher, error) {
	m, err := c.cache.Get(patterns)
	if err != nil {
		if !errors.Is(err, types.ErrCompile) {
			err = fmt.Errorf("%w: %w", types.ErrCompile, err)
		}
		return nil, err
	}
	return m, nil
}

// ScanAll compiles patterns once and scans every path. A compile error is
// returned before any file is opened. Otherwise every path gets a terminal
// ScanResult, in input order; failures of individual files never stop the
// others. onMatch runs on the worker goroutine that produced the batch and
// may be called concurrently for different files.
func (c *Coordinator) ScanAll(ctx context.Context, paths []string, patterns []types.PatternSpec, onMatch types.FileMatchFunc) (Results, error) {
	m, err := c.Compile(patterns)
	if err != nil {
		c.logger.Debug("compile failed", "patterns", len(patterns), "error", err)
		return nil, err
	}
	return c.ScanMatcher(ctx, m, paths, onMatch)
}

// ScanMatcher scans paths with an already compiled Matcher.
func (c *Coordinator) ScanMatcher(ctx context.Context, m matcher.Matcher, paths []string, onMatch types.FileMatchFunc) (Results, error) {
	orch, err := scanner.New(m, c.cfg, scanner.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results := make(Results, len(paths))
	if len(paths) == 0 {
		return results, nil
	}
	done := make([]bool, len(paths))

	workers := min(c.workers, len(paths))
	jobs := make(chan int, workers*2)

	var g errgroup.Group

	// Feed file indices to workers
	g.Go(func() error {
		defer close(jobs)
		for i := range paths {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			c.work(ctx, orch, paths, jobs, results, done, onMatch)
			return nil
		})
	}
	g.Wait()

	// Files never handed to a worker because of cancellation.
	for i, ok := range done {
		if !ok {
			results[i] = types.Failed(paths[i], fmt.Errorf("%w: %s: %w", types.ErrCanceled, paths[i], context.Cause(ctx)))
			c.finish(ctx, i, results[i])
		}
	}

	c.logger.Debug("scan complete",
		"files", len(paths),
		"workers", workers,
		"matches", results.TotalMatches(),
		"failed", len(results.Failed()),
		"duration", time.Since(start))
	return results, nil
}

// work is one pool goroutine: a single scratch serves every file it takes.
func (c *Coordinator) work(ctx context.Context, orch *scanner.Orchestrator, paths []string, jobs <-chan int, results Results, done []bool, onMatch types.FileMatchFunc) {
	scratch, err := orch.Matcher().AllocScratch()
	if err != nil {
		if !errors.Is(err, types.ErrScratch) {
			err = fmt.Errorf("%w: %w", types.ErrScratch, err)
		}
		c.logger.Debug("scratch allocation failed", "error", err)
		for i := range jobs {
			results[i] = types.Failed(paths[i], err)
			done[i] = true
			c.finish(ctx, i, results[i])
		}
		return
	}
	defer scratch.Free()

	for i := range jobs {
		ref := types.FileRef{Index: i, Path: paths[i]}
		var deliver types.MatchFunc
		if onMatch != nil {
			deliver = func(batch []types.MatchRecord) {
				c.metrics.RecordBatch(ctx)
				onMatch(ref, batch)
			}
		}

		res := orch.ScanFile(ctx, scratch, paths[i], deliver)
		results[i] = res
		done[i] = true
		c.finish(ctx, i, res)
		if !res.Status.OK() && res.Status != types.StatusCanceled {
			c.logger.Debug("file scan failed", "path", res.Path, "status", res.Status.String(), "error", res.Err)
		}
	}
}

func (c *Coordinator) finish(ctx context.Context, i int, res types.ScanResult) {
	c.metrics.RecordFile(ctx, res)
	if c.onDone != nil {
		c.onDone(types.FileRef{Index: i, Path: res.Path}, res)
	}
}

// Close releases the matcher cache when the Coordinator created it.
func (c *Coordinator) Close() error {
	if c.ownsCache {
		return c.cache.Close()
	}
	return nil
}
