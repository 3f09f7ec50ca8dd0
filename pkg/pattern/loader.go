// Package pattern collects patterns from the command line, pattern files and
// YAML pattern sets, and rewrites grep syntaxes into what the engines accept.
package pattern

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// Entry is a loaded pattern with its optional display name.
type Entry struct {
	Name string
	Spec types.PatternSpec

	explicitID bool
}

// Label returns the name, or the expression when the pattern has none.
func (e Entry) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Spec.Pattern
}

// LoadYAML parses a pattern set document:
//
//	patterns:
//	  - id: 1
//	    name: failed-login
//	    pattern: 'authentication failure'
//	    flags: [caseless, singlematch]
//	    keywords: [authentication]
//
// Omitted flags default to types.DefaultFlags. Omitted ids are assigned by Assign.
func LoadYAML(data []byte) ([]Entry, error) {
	var file yamlPatternsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Patterns) == 0 {
		return nil, fmt.Errorf("no patterns found in YAML")
	}

	entries := make([]Entry, 0, len(file.Patterns))
	for i, yp := range file.Patterns {
		if yp.Pattern == "" {
			return nil, fmt.Errorf("pattern %d: empty pattern", i)
		}
		flags := types.DefaultFlags
		if yp.Flags != nil {
			f, err := types.ParseFlags(yp.Flags)
			if err != nil {
				return nil, fmt.Errorf("pattern %d: %w", i, err)
			}
			flags = f
		}

		e := Entry{
			Name: yp.Name,
			Spec: types.PatternSpec{
				Pattern:  yp.Pattern,
				Flags:    flags,
				Keywords: yp.Keywords,
			},
		}
		if yp.ID != nil {
			e.Spec.ID = *yp.ID
			e.explicitID = true
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// LoadLines reads one pattern per line, the way grep -f does. A trailing
// newline does not produce an extra pattern; other empty lines are rejected
// because the engines cannot compile empty patterns.
func LoadLines(data []byte) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			return nil, fmt.Errorf("line %d: empty patterns are not supported", lineNo)
		}
		entries = append(entries, Entry{Spec: types.PatternSpec{Pattern: line, Flags: types.DefaultFlags}})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadFile loads a pattern file. Files ending in .yml or .yaml are pattern
// sets; anything else holds one pattern per line.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file %s: %w", path, err)
	}

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		entries, err = LoadYAML(data)
	default:
		entries, err = LoadLines(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Collect gathers expressions (in order) followed by the contents of each
// pattern file, then assigns ids.
func Collect(expressions []string, files []string) ([]Entry, error) {
	var entries []Entry
	for _, expr := range expressions {
		if expr == "" {
			return nil, fmt.Errorf("empty patterns are not supported")
		}
		entries = append(entries, Entry{Spec: types.PatternSpec{Pattern: expr, Flags: types.DefaultFlags}})
	}
	for _, f := range files {
		loaded, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		entries = append(entries, loaded...)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no patterns provided")
	}
	return Assign(entries)
}

// Assign gives every entry without an explicit id the lowest id not taken,
// in order. Duplicate explicit ids are an error.
func Assign(entries []Entry) ([]Entry, error) {
	taken := make(map[uint]bool)
	for _, e := range entries {
		if !e.explicitID {
			continue
		}
		if taken[e.Spec.ID] {
			return nil, fmt.Errorf("%w: duplicate pattern id %d", types.ErrCompile, e.Spec.ID)
		}
		taken[e.Spec.ID] = true
	}

	out := make([]Entry, len(entries))
	copy(out, entries)
	var next uint
	for i := range out {
		if out[i].explicitID {
			continue
		}
		for taken[next] {
			next++
		}
		out[i].Spec.ID = next
		out[i].explicitID = true
		taken[next] = true
	}
	return out, nil
}

// Specs extracts the pattern specs in entry order.
func Specs(entries []Entry) types.PatternSet {
	set := make(types.PatternSet, len(entries))
	for i, e := range entries {
		set[i] = e.Spec
	}
	return set
}
