package types

import "fmt"

const (
	// DefaultLineBufferSize bounds the bytes kept for a single line (and the
	// copy kept per batch slot).
	DefaultLineBufferSize = 262140

	// DefaultBatchCapacity is the number of records buffered before delivery.
	DefaultBatchCapacity = 16
)

// ScanConfig tunes a single-file scan.
type ScanConfig struct {
	// LineBufferSize is the maximum line length plus one. Longer lines are split.
	LineBufferSize int

	// BatchCapacity is the number of records delivered per batch.
	BatchCapacity int

	// MaxMatches stops the scan once this many matches were found (0 = unlimited).
	MaxMatches uint64
}

// DefaultScanConfig returns the configuration used when none is supplied.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		LineBufferSize: DefaultLineBufferSize,
		BatchCapacity:  DefaultBatchCapacity,
	}
}

// Validate rejects configurations that cannot hold a line or a record.
func (c ScanConfig) Validate() error {
	if c.LineBufferSize < 2 {
		return fmt.Errorf("line buffer size must be at least 2, got %d", c.LineBufferSize)
	}
	if c.BatchCapacity < 1 {
		return fmt.Errorf("batch capacity must be at least 1, got %d", c.BatchCapacity)
	}
	return nil
}

// EffectiveBatchCapacity is the batch size actually used for a scan: a match
// limit below the configured capacity shrinks the batch to the limit.
func (c ScanConfig) EffectiveBatchCapacity() int {
	if c.MaxMatches > 0 && c.MaxMatches < uint64(c.BatchCapacity) {
		return int(c.MaxMatches)
	}
	return c.BatchCapacity
}
