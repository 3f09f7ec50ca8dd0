package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"` // "grep" | "check" | "close"
	Payload json.RawMessage `json:"payload"`
}

// GrepPayload is the payload for "grep" requests. Patterns keep their
// position as id, so match records name the pattern that hit.
type GrepPayload struct {
	Paths    []string `json:"paths"`
	Patterns []string `json:"patterns"`
	Flags    []string `json:"flags,omitempty"`  // default: dotall, multiline, singlematch
	Syntax   string   `json:"syntax,omitempty"` // basic (default), extended, perl
}

// CheckPayload is the payload for "check" requests
type CheckPayload struct {
	Patterns []string `json:"patterns"`
	Syntax   string   `json:"syntax,omitempty"`
}

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // "ready" | "matches" | "grep" | "check" | "error"
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version string `json:"version"`
	Engine  string `json:"engine"`
}

// MatchesData carries one delivered batch of a running grep.
type MatchesData struct {
	Path    string       `json:"path"`
	Index   int          `json:"index"`
	Records []RecordData `json:"records"`
}

// RecordData is a match record with the line as text.
type RecordData struct {
	PatternID  uint   `json:"pattern_id"`
	LineNumber uint64 `json:"line_number"`
	Line       string `json:"line"`
}

// GrepData ends a grep: one result per requested path, in request order.
type GrepData struct {
	Results      []FileResult `json:"results"`
	TotalMatches uint64       `json:"total_matches"`
}

// FileResult is a ScanResult with its error flattened to text.
type FileResult struct {
	types.ScanResult
	Message string `json:"message,omitempty"`
}

// CheckData lists the patterns the engine rejected.
type CheckData struct {
	Engine   string         `json:"engine"`
	Failures []CheckFailure `json:"failures"`
}

// CheckFailure is one rejected pattern.
type CheckFailure struct {
	ID      uint   `json:"id"`
	Pattern string `json:"pattern"`
	Error   string `json:"error"`
}
