package types

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Flags is a bitset of per-pattern compile flags. Values match Hyperscan's
// HS_FLAG_* constants so they can be passed to the native engine unchanged.
type Flags uint

const (
	FlagCaseless    Flags = 1 << 0 // case-insensitive matching
	FlagDotAll      Flags = 1 << 1 // "." matches the line terminator
	FlagMultiLine   Flags = 1 << 2 // "^" and "$" anchor at line boundaries
	FlagSingleMatch Flags = 1 << 3 // report at most one match per pattern per scanned line

	knownFlags = FlagCaseless | FlagDotAll | FlagMultiLine | FlagSingleMatch
)

// DefaultFlags are applied to patterns that do not specify their own.
const DefaultFlags = FlagDotAll | FlagMultiLine | FlagSingleMatch

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagCaseless, "caseless"},
	{FlagDotAll, "dotall"},
	{FlagMultiLine, "multiline"},
	{FlagSingleMatch, "singlematch"},
}

// Has reports whether all bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Valid reports whether f only contains known flag bits.
func (f Flags) Valid() bool {
	return f&^knownFlags == 0
}

// String renders the flags as a "|"-separated list of names.
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	if rest := f &^ knownFlags; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseFlags converts flag names (case-insensitive) into a Flags value.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
	for _, n := range names {
		found := false
		for _, fn := range flagNames {
			if strings.EqualFold(strings.TrimSpace(n), fn.name) {
				f |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown pattern flag %q", n)
		}
	}
	return f, nil
}

// PatternSpec is a single pattern handed to the matching engine.
type PatternSpec struct {
	Pattern  string   // regular expression source
	Flags    Flags    // compile flags
	ID       uint     // reported back with every match, unique within a set
	Keywords []string // optional literals for Aho-Corasick prefiltering
}

// PatternSet is an ordered collection of patterns compiled together.
type PatternSet []PatternSpec

// NewPatternSet builds a set from raw expressions with DefaultFlags and
// sequential ids starting at 0.
func NewPatternSet(patterns ...string) PatternSet {
	set := make(PatternSet, len(patterns))
	for i, p := range patterns {
		set[i] = PatternSpec{Pattern: p, Flags: DefaultFlags, ID: uint(i)}
	}
	return set
}

// WithFlags returns a copy of the set with every pattern's flags replaced.
func (s PatternSet) WithFlags(f Flags) PatternSet {
	out := make(PatternSet, len(s))
	copy(out, s)
	for i := range out {
		out[i].Flags = f
	}
	return out
}

// Validate checks the structural requirements shared by every engine:
// a non-empty set, non-empty expressions, known flags and unique ids.
func (s PatternSet) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no patterns provided", ErrCompile)
	}
	seen := make(map[uint]int, len(s))
	for i, p := range s {
		if p.Pattern == "" {
			return fmt.Errorf("%w: pattern %d is empty", ErrCompile, i)
		}
		if !p.Flags.Valid() {
			return fmt.Errorf("%w: pattern %d has unknown flags %s", ErrCompile, i, p.Flags)
		}
		if j, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: patterns %d and %d share id %d", ErrCompile, j, i, p.ID)
		}
		seen[p.ID] = i
	}
	return nil
}

// ByID returns the pattern with the given id.
func (s PatternSet) ByID(id uint) (PatternSpec, bool) {
	for _, p := range s {
		if p.ID == id {
			return p, true
		}
	}
	return PatternSpec{}, false
}

// Fingerprint computes a SHA-1 identity of the set. Two sets with the same
// patterns, flags, ids and keywords (in any order) share a fingerprint.
func (s PatternSet) Fingerprint() string {
	sorted := make(PatternSet, len(s))
	copy(sorted, s)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := sha1.New()
	var buf [8]byte
	for _, p := range sorted {
		binary.LittleEndian.PutUint64(buf[:], uint64(p.ID))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(p.Flags))
		h.Write(buf[:])
		writeString(h, p.Pattern)
		binary.LittleEndian.PutUint64(buf[:], uint64(len(p.Keywords)))
		h.Write(buf[:])
		for _, kw := range p.Keywords {
			writeString(h, kw)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

type byteWriter interface {
	Write(p []byte) (int, error)
}

// writeString writes a length-prefixed string so adjacent fields cannot collide.
func writeString(w byteWriter, s string) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
	w.Write(buf[:])
	w.Write([]byte(s))
}
