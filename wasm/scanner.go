//go:build wasm

package main

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"syscall/js"

	"github.com/praetorian-inc/hypergrep"
)

var (
	scanners   = make(map[int]*hypergrep.Scanner)
	scannersMu sync.RWMutex
	nextID     int
)

// ContentItem is one named text to grep.
type ContentItem struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// LineResult is a matching line.
type LineResult struct {
	Number uint64 `json:"number"`
	Text   string `json:"text"`
}

// GrepResult holds the matching lines of one content item.
type GrepResult struct {
	Source  string       `json:"source"`
	Lines   []LineResult `json:"lines"`
	Status  string       `json:"status"`
	Message string       `json:"message,omitempty"`
}

// newScanner creates a scanner using the portable engine.
// JS: HypergrepNewScanner() -> {handle} or {error}
func newScanner(this js.Value, args []js.Value) interface{} {
	s, err := hypergrep.NewScanner(hypergrep.WithEngine("portable"), hypergrep.WithWorkers(1))
	if err != nil {
		return map[string]interface{}{"error": "failed to create scanner: " + err.Error()}
	}

	// Register scanner
	scannersMu.Lock()
	id := nextID
	nextID++
	scanners[id] = s
	scannersMu.Unlock()

	return map[string]interface{}{"handle": id}
}

func lookup(handle int) (*hypergrep.Scanner, bool) {
	scannersMu.RLock()
	defer scannersMu.RUnlock()
	s, ok := scanners[handle]
	return s, ok
}

func grepItem(s *hypergrep.Scanner, item ContentItem, patterns []string) GrepResult {
	lines, res := s.GrepReader(context.Background(), strings.NewReader(item.Content), item.Source, patterns...)
	out := GrepResult{Source: item.Source, Lines: make([]LineResult, len(lines)), Status: res.Status.String(), Message: res.Message()}
	for i, l := range lines {
		out.Lines[i] = LineResult{Number: l.Number, Text: l.Text}
	}
	return out
}

func parsePatterns(patternsJSON string) ([]string, error) {
	var patterns []string
	if err := json.Unmarshal([]byte(patternsJSON), &patterns); err != nil {
		return nil, err
	}
	return patterns, nil
}

func marshal(v any) interface{} {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{"error": "failed to marshal results: " + err.Error()}
	}
	return string(jsonBytes)
}

// grep greps a single content string.
// JS: HypergrepGrep(handle, content, patternsJSON, source) -> JSON result or error
func grep(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return map[string]interface{}{"error": "handle, content and patternsJSON arguments required"}
	}

	s, ok := lookup(args[0].Int())
	if !ok {
		return map[string]interface{}{"error": "invalid scanner handle"}
	}
	patterns, err := parsePatterns(args[2].String())
	if err != nil {
		return map[string]interface{}{"error": "failed to parse patterns JSON: " + err.Error()}
	}
	item := ContentItem{Content: args[1].String()}
	if len(args) > 3 {
		item.Source = args[3].String()
	}

	return marshal(grepItem(s, item, patterns))
}

// grepBatch greps multiple content items with the same patterns.
// JS: HypergrepGrepBatch(handle, itemsJSON, patternsJSON) -> JSON results or error
func grepBatch(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return map[string]interface{}{"error": "handle, itemsJSON and patternsJSON arguments required"}
	}

	s, ok := lookup(args[0].Int())
	if !ok {
		return map[string]interface{}{"error": "invalid scanner handle"}
	}

	// Parse items
	var items []ContentItem
	if err := json.Unmarshal([]byte(args[1].String()), &items); err != nil {
		return map[string]interface{}{"error": "failed to parse items JSON: " + err.Error()}
	}
	patterns, err := parsePatterns(args[2].String())
	if err != nil {
		return map[string]interface{}{"error": "failed to parse patterns JSON: " + err.Error()}
	}

	results := make([]GrepResult, len(items))
	for i, item := range items {
		results[i] = grepItem(s, item, patterns)
	}
	return marshal(results)
}

// check reports the patterns the engine cannot compile, keyed by position.
// JS: HypergrepCheck(handle, patternsJSON) -> JSON object or error
func check(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return map[string]interface{}{"error": "handle and patternsJSON arguments required"}
	}

	s, ok := lookup(args[0].Int())
	if !ok {
		return map[string]interface{}{"error": "invalid scanner handle"}
	}
	patterns, err := parsePatterns(args[1].String())
	if err != nil {
		return map[string]interface{}{"error": "failed to parse patterns JSON: " + err.Error()}
	}

	failures := make(map[uint]string)
	for id, err := range s.CheckCompatibility(hypergrep.NewPatternSet(patterns...)) {
		failures[id] = err.Error()
	}
	return marshal(failures)
}

// closeScanner closes a scanner and releases resources.
// JS: HypergrepCloseScanner(handle)
func closeScanner(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return map[string]interface{}{"error": "handle argument required"}
	}

	handle := args[0].Int()

	scannersMu.Lock()
	s, ok := scanners[handle]
	if ok {
		delete(scanners, handle)
	}
	scannersMu.Unlock()

	if !ok {
		return map[string]interface{}{"error": "invalid scanner handle"}
	}

	s.Close()

	return nil
}
