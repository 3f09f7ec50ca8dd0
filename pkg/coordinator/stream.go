package coordinator

import (
	"context"

	"github.com/praetorian-inc/hypergrep/pkg/matcher"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// Batch is a delivered set of records for one file. Records are owned copies.
type Batch struct {
	File    types.FileRef
	Records []types.MatchRecord
}

// Stream merges the batches of a multi-file scan into one channel.
type Stream struct {
	batches chan Batch
	done    chan struct{}
	results Results
	err     error
}

// Stream starts a scan in the background and returns a merged channel of
// batches. The channel holds at most buffer batches; workers block once it is
// full. The consumer must drain Batches (or cancel ctx) for the scan to
// finish. Compile errors are returned before anything starts.
func (c *Coordinator) Stream(ctx context.Context, paths []string, patterns []types.PatternSpec, buffer int) (*Stream, error) {
	m, err := c.Compile(patterns)
	if err != nil {
		return nil, err
	}
	return c.StreamMatcher(ctx, m, paths, buffer), nil
}

// StreamMatcher is Stream with an already compiled Matcher. m must stay open
// until Wait returns.
func (c *Coordinator) StreamMatcher(ctx context.Context, m matcher.Matcher, paths []string, buffer int) *Stream {
	s := &Stream{
		batches: make(chan Batch, max(buffer, 0)),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer close(s.batches)
		s.results, s.err = c.ScanMatcher(ctx, m, paths, func(file types.FileRef, batch []types.MatchRecord) {
			select {
			case s.batches <- Batch{File: file, Records: types.CloneRecords(batch)}:
			case <-ctx.Done():
			}
		})
	}()
	return s
}

// Batches returns the merged batch channel. It is closed when every file has
// finished.
func (s *Stream) Batches() <-chan Batch {
	return s.batches
}

// Wait blocks until the scan finishes and returns the per-file results.
func (s *Stream) Wait() (Results, error) {
	<-s.done
	return s.results, s.err
}
