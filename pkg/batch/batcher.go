// Package batch accumulates match records in a fixed number of reusable
// slots and hands them to a consumer in bounded batches.
package batch

import "github.com/praetorian-inc/hypergrep/pkg/types"

// Batcher buffers up to a fixed number of MatchRecords. It is not safe for
// concurrent use; each file scan owns its own Batcher.
type Batcher struct {
	slots     []types.MatchRecord
	n         int
	maxLine   int
	deliver   types.MatchFunc
	delivered uint64
	batches   int
}

// New creates a Batcher with capacity slots. Each slot keeps a private copy of
// at most lineBufferSize bytes of the recorded line; its buffer is allocated
// on first use and reused across flushes. A nil deliver discards batches.
func New(capacity, lineBufferSize int, deliver types.MatchFunc) *Batcher {
	if capacity < 1 {
		capacity = 1
	}
	if deliver == nil {
		deliver = func([]types.MatchRecord) {}
	}
	return &Batcher{
		slots:   make([]types.MatchRecord, capacity),
		maxLine: lineBufferSize,
		deliver: deliver,
	}
}

// Record copies line into the next free slot. When the last slot is filled
// the batch is delivered immediately.
func (b *Batcher) Record(patternID uint, lineNumber uint64, line []byte) {
	if b.maxLine > 0 && len(line) > b.maxLine {
		line = line[:b.maxLine]
	}

	slot := &b.slots[b.n]
	slot.PatternID = patternID
	slot.LineNumber = lineNumber
	slot.Line = append(slot.Line[:0], line...)
	b.n++

	if b.n == len(b.slots) {
		b.Flush()
	}
}

// Flush delivers the filled slots, if any, and resets the batch.
func (b *Batcher) Flush() {
	if b.n == 0 {
		return
	}
	batch := b.slots[:b.n]
	b.n = 0
	b.delivered += uint64(len(batch))
	b.batches++
	b.deliver(batch)
}

// Drain delivers whatever is still buffered. It must be called once the scan
// is over, whatever the reason the scan ended.
func (b *Batcher) Drain() {
	b.Flush()
}

// Len returns the number of buffered, undelivered records.
func (b *Batcher) Len() int { return b.n }

// Cap returns the batch capacity.
func (b *Batcher) Cap() int { return len(b.slots) }

// Delivered returns the number of records handed to the consumer so far.
func (b *Batcher) Delivered() uint64 { return b.delivered }

// Batches returns the number of deliveries made so far.
func (b *Batcher) Batches() int { return b.batches }
