package types

// MatchRecord is one (pattern, line) hit produced while scanning a file.
type MatchRecord struct {
	PatternID  uint   // id of the PatternSpec that matched
	LineNumber uint64 // 1-based line number within the file
	Line       []byte // matched line, including its terminator when present
}

// Clone returns a copy of the record that does not share the Line buffer.
// Records delivered to a MatchFunc live in reused batcher slots, so callers
// that keep them after the callback returns must clone.
func (r MatchRecord) Clone() MatchRecord {
	line := make([]byte, len(r.Line))
	copy(line, r.Line)
	return MatchRecord{PatternID: r.PatternID, LineNumber: r.LineNumber, Line: line}
}

// CloneRecords deep-copies a delivered batch.
func CloneRecords(batch []MatchRecord) []MatchRecord {
	out := make([]MatchRecord, len(batch))
	for i, r := range batch {
		out[i] = r.Clone()
	}
	return out
}

// FileRef identifies a file within a multi-file scan.
type FileRef struct {
	Index int    // position in the caller's path list
	Path  string // path as given by the caller
}

// MatchFunc receives a batch of records for a single file. The slice and the
// Line buffers it references are only valid until the function returns.
type MatchFunc func(batch []MatchRecord)

// FileMatchFunc receives batches from a multi-file scan, tagged with the file
// they belong to. It runs on the worker goroutine that produced the batch.
type FileMatchFunc func(file FileRef, batch []MatchRecord)
