// Package scanner drives a single file through the line reader, the matcher
// and the batcher, enforcing the match limit and classifying failures.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/praetorian-inc/hypergrep/pkg/batch"
	"github.com/praetorian-inc/hypergrep/pkg/lineio"
	"github.com/praetorian-inc/hypergrep/pkg/matcher"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// Orchestrator scans files with one compiled Matcher. It holds no per-file
// state and may be shared by goroutines, each passing its own Scratch.
type Orchestrator struct {
	m      matcher.Matcher
	cfg    types.ScanConfig
	logger *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for per-file diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an Orchestrator for m. The configuration is validated up front.
func New(m matcher.Matcher, cfg types.ScanConfig, opts ...Option) (*Orchestrator, error) {
	if m == nil {
		return nil, fmt.Errorf("matcher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		m:      m,
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Config returns the scan configuration.
func (o *Orchestrator) Config() types.ScanConfig { return o.cfg }

// Matcher returns the compiled matcher used for every scan.
func (o *Orchestrator) Matcher() matcher.Matcher { return o.m }

// ScanFile opens path and scans it. When scratch is nil a scratch is
// allocated for this call and freed before returning; a caller-provided
// scratch is never freed.
func (o *Orchestrator) ScanFile(ctx context.Context, scratch matcher.Scratch, path string, onMatch types.MatchFunc) types.ScanResult {
	return o.scanOpened(ctx, scratch, path, func() (*lineio.Reader, error) {
		return lineio.Open(path, o.cfg.LineBufferSize)
	}, onMatch)
}

// ScanReader scans an already open stream, which may be compressed. name
// labels the result. src is closed when it implements io.Closer.
func (o *Orchestrator) ScanReader(ctx context.Context, scratch matcher.Scratch, src io.Reader, name string, onMatch types.MatchFunc) types.ScanResult {
	return o.scanOpened(ctx, scratch, name, func() (*lineio.Reader, error) {
		return lineio.NewReader(src, name, o.cfg.LineBufferSize)
	}, onMatch)
}

func (o *Orchestrator) scanOpened(ctx context.Context, scratch matcher.Scratch, name string, open func() (*lineio.Reader, error), onMatch types.MatchFunc) types.ScanResult {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return o.finish(types.Failed(name, fmt.Errorf("%w: %w", types.ErrCanceled, err)), start)
	}

	r, err := open()
	if err != nil {
		return o.finish(types.Failed(name, err), start)
	}

	if scratch == nil {
		owned, err := o.m.AllocScratch()
		if err != nil {
			r.Close()
			if !errors.Is(err, types.ErrScratch) {
				err = fmt.Errorf("%w: %w", types.ErrScratch, err)
			}
			return o.finish(types.Failed(name, err), start)
		}
		defer owned.Free()
		scratch = owned
	}

	res := o.Scan(ctx, scratch, r, onMatch)
	res.Path = name
	return res
}

// Scan consumes r line by line until EOF, an error, cancellation or the match
// limit. Whatever ends the scan, buffered matches are delivered and r is
// closed before Scan returns.
func (o *Orchestrator) Scan(ctx context.Context, scratch matcher.Scratch, r *lineio.Reader, onMatch types.MatchFunc) (res types.ScanResult) {
	start := time.Now()
	res.Path = r.Name()

	b := batch.New(o.cfg.EffectiveBatchCapacity(), o.cfg.LineBufferSize, onMatch)
	defer func() {
		b.Drain()
		r.Close()
		res = o.finish(res, start)
	}()

	var current lineio.Line
	onHit := func(id uint, from, to uint64) {
		res.MatchesFound++
		b.Record(id, current.Number, current.Bytes)
	}

	done := ctx.Done()
	for {
		select {
		case <-done:
			res.Status = types.StatusCanceled
			res.Err = fmt.Errorf("%w: %s: %w", types.ErrCanceled, r.Name(), ctx.Err())
			return res
		default:
		}

		line, err := r.Next()
		if err == io.EOF {
			res.Status = types.StatusOK
			return res
		}
		if err != nil {
			res.Status = types.StatusOf(err)
			res.Err = err
			return res
		}
		res.LinesScanned++
		current = line

		if err := o.m.Scan(scratch, line.Bytes, onHit); err != nil {
			if !errors.Is(err, types.ErrScan) {
				err = fmt.Errorf("%w: %w", types.ErrScan, err)
			}
			res.Status = types.StatusScanError
			res.Err = fmt.Errorf("%s: line %d: %w", r.Name(), line.Number, err)
			return res
		}

		if o.cfg.MaxMatches > 0 && res.MatchesFound >= o.cfg.MaxMatches {
			res.Status = types.StatusOK
			return res
		}
	}
}

func (o *Orchestrator) finish(res types.ScanResult, start time.Time) types.ScanResult {
	res.Duration = time.Since(start)
	if res.Status.OK() {
		o.logger.Debug("scanned file",
			"path", res.Path,
			"lines", res.LinesScanned,
			"matches", res.MatchesFound,
			"duration", res.Duration)
	} else {
		o.logger.Debug("scan failed",
			"path", res.Path,
			"status", res.Status.String(),
			"lines", res.LinesScanned,
			"matches", res.MatchesFound,
			"error", res.Err)
	}
	return res
}

// ScanFile is a convenience wrapper that builds an Orchestrator for a single
// call.
func ScanFile(ctx context.Context, m matcher.Matcher, scratch matcher.Scratch, path string, cfg types.ScanConfig, onMatch types.MatchFunc) types.ScanResult {
	o, err := New(m, cfg)
	if err != nil {
		return types.Failed(path, fmt.Errorf("%w: %w", types.ErrScan, err))
	}
	return o.ScanFile(ctx, scratch, path, onMatch)
}
