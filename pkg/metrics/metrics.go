// Package metrics exposes scan counters through OpenTelemetry. Instruments
// come from the global MeterProvider unless a Meter is supplied, so they are
// no-ops until the embedding program installs a provider.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// MeterName is the instrumentation scope used for the default meter.
const MeterName = "github.com/praetorian-inc/hypergrep"

// Recorder holds the scan instruments. A nil *Recorder records nothing.
type Recorder struct {
	files   metric.Int64Counter
	lines   metric.Int64Counter
	matches metric.Int64Counter
	batches metric.Int64Counter
}

// New creates the instruments on meter.
func New(meter metric.Meter) (*Recorder, error) {
	files, err := meter.Int64Counter("hypergrep.files.scanned",
		metric.WithDescription("Files that reached a terminal scan status"),
		metric.WithUnit("{file}"))
	if err != nil {
		return nil, fmt.Errorf("creating files counter: %w", err)
	}
	lines, err := meter.Int64Counter("hypergrep.lines.scanned",
		metric.WithDescription("Lines fed to the matcher"),
		metric.WithUnit("{line}"))
	if err != nil {
		return nil, fmt.Errorf("creating lines counter: %w", err)
	}
	matches, err := meter.Int64Counter("hypergrep.matches.found",
		metric.WithDescription("Matches reported by the engine"),
		metric.WithUnit("{match}"))
	if err != nil {
		return nil, fmt.Errorf("creating matches counter: %w", err)
	}
	batches, err := meter.Int64Counter("hypergrep.batches.delivered",
		metric.WithDescription("Match batches handed to consumers"),
		metric.WithUnit("{batch}"))
	if err != nil {
		return nil, fmt.Errorf("creating batches counter: %w", err)
	}
	return &Recorder{files: files, lines: lines, matches: matches, batches: batches}, nil
}

// Default creates a Recorder on the global MeterProvider. Instrument creation
// on the global provider does not fail; should it ever, nil is returned and
// recording is disabled.
func Default() *Recorder {
	r, err := New(otel.Meter(MeterName))
	if err != nil {
		return nil
	}
	return r
}

// RecordFile adds one finished file scan.
func (r *Recorder) RecordFile(ctx context.Context, res types.ScanResult) {
	if r == nil {
		return
	}
	status := metric.WithAttributes(attribute.String("status", res.Status.String()))
	r.files.Add(ctx, 1, status)
	r.lines.Add(ctx, int64(res.LinesScanned))
	r.matches.Add(ctx, int64(res.MatchesFound))
}

// RecordBatch adds one delivered batch.
func (r *Recorder) RecordBatch(ctx context.Context) {
	if r == nil {
		return
	}
	r.batches.Add(ctx, 1)
}
