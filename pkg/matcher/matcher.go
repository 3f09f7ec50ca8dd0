// Package matcher is the boundary to the multi-pattern matching engines.
//
// An Engine compiles a PatternSet into an immutable Matcher that may be shared
// by any number of goroutines. Each goroutine allocates its own Scratch from
// the Matcher and passes it to every Scan call it makes.
package matcher

import (
	"fmt"
	"sort"
)

// Engine names accepted by New.
const (
	EngineAuto      = "auto"
	EngineHyperscan = "hyperscan"
	EnginePortable  = "portable"
)

// MatchHandler is invoked synchronously for every match found by Scan.
// from and to are byte offsets into the scanned buffer; engines that do not
// track match starts report from as 0.
type MatchHandler func(id uint, from, to uint64)

// Matcher is a compiled pattern set.
type Matcher interface {
	// AllocScratch returns a workspace for use by a single goroutine.
	AllocScratch() (Scratch, error)

	// Scan runs every pattern over data and calls onMatch for each hit.
	Scan(scratch Scratch, data []byte, onMatch MatchHandler) error

	// Len returns the number of compiled patterns.
	Len() int

	// Close releases the compiled database. Scratches must be freed first.
	Close() error
}

// Scratch is per-goroutine mutable state needed by Scan.
type Scratch interface {
	Free() error
}

// Engine compiles pattern sets.
type Engine interface {
	Name() string
	Compile(patterns []PatternSpec) (Matcher, error)
}

// New returns the engine with the given name. EngineAuto (or "") selects
// Hyperscan when it was compiled in, and the portable engine otherwise.
func New(name string, opts ...Option) (Engine, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	switch name {
	case "", EngineAuto:
		if HyperscanAvailable() {
			return newHyperscan(cfg)
		}
		return NewPortable(opts...), nil
	case EngineHyperscan:
		return newHyperscan(cfg)
	case EnginePortable:
		return NewPortable(opts...), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (available: %v)", name, Available())
	}
}

// Available lists the engines usable in this build.
func Available() []string {
	engines := []string{EnginePortable}
	if HyperscanAvailable() {
		engines = append(engines, EngineHyperscan)
	}
	sort.Strings(engines)
	return engines
}

// Info describes the engines compiled into this binary.
func Info() string {
	if v := HyperscanVersion(); v != "" {
		return fmt.Sprintf("hyperscan %s, portable (regexp2)", v)
	}
	return "portable (regexp2); hyperscan not compiled in"
}
