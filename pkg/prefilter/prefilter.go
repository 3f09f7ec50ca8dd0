// Package prefilter narrows the patterns worth evaluating on a line using an
// Aho-Corasick scan for literal keywords.
package prefilter

import (
	"github.com/cloudflare/ahocorasick"
)

// Prefilter uses Aho-Corasick for efficient keyword matching.
//
// A Prefilter is not safe for concurrent use: the underlying automaton keeps
// per-call bookkeeping. Build one per goroutine (the matcher keeps one per
// scratch).
type Prefilter struct {
	matcher         *ahocorasick.Matcher
	keywords        []string      // keyword at each automaton index
	keywordPatterns map[int][]int // automaton index -> pattern indices needing it
	alwaysPatterns  []int         // patterns without keywords (always checked)
	total           int
	seen            []uint32 // per-pattern generation marks for Candidates
	gen             uint32
}

// New creates a prefilter. keywords[i] lists the literals of pattern i; a nil
// or empty entry means pattern i is evaluated on every line.
func New(keywords [][]string) *Prefilter {
	pf := &Prefilter{
		keywordPatterns: make(map[int][]int),
		total:           len(keywords),
		seen:            make([]uint32, len(keywords)),
	}

	index := make(map[string]int)
	for i, kws := range keywords {
		if len(kws) == 0 {
			pf.alwaysPatterns = append(pf.alwaysPatterns, i)
			continue
		}
		for _, kw := range kws {
			idx, ok := index[kw]
			if !ok {
				idx = len(pf.keywords)
				index[kw] = idx
				pf.keywords = append(pf.keywords, kw)
			}
			pf.keywordPatterns[idx] = append(pf.keywordPatterns[idx], i)
		}
	}

	if len(pf.keywords) > 0 {
		pf.matcher = ahocorasick.NewStringMatcher(pf.keywords)
	}
	return pf
}

// Active reports whether any pattern can be skipped at all.
func (pf *Prefilter) Active() bool {
	return pf.matcher != nil
}

// Keywords returns the distinct keywords in automaton order.
func (pf *Prefilter) Keywords() []string {
	return pf.keywords
}

// Candidates appends to dst the indices of the patterns that might match
// content: patterns without keywords and patterns with at least one keyword
// present. Indices are unique but not sorted.
func (pf *Prefilter) Candidates(content []byte, dst []int) []int {
	dst = append(dst, pf.alwaysPatterns...)
	if pf.matcher == nil {
		return dst
	}

	pf.gen++
	if pf.gen == 0 {
		clear(pf.seen)
		pf.gen = 1
	}
	for _, hit := range pf.matcher.Match(content) {
		for _, p := range pf.keywordPatterns[hit] {
			if pf.seen[p] != pf.gen {
				pf.seen[p] = pf.gen
				dst = append(dst, p)
			}
		}
	}
	return dst
}
