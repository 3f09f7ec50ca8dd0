package matcher

// PatternCheck is the outcome of compiling one pattern on its own.
type PatternCheck struct {
	Pattern PatternSpec
	Err     error
}

// OK reports whether the pattern compiled.
func (c PatternCheck) OK() bool { return c.Err == nil }

// Check compiles every pattern individually so incompatible ones can be
// reported by position instead of failing the whole set.
func Check(engine Engine, patterns []PatternSpec) []PatternCheck {
	results := make([]PatternCheck, len(patterns))
	for i, p := range patterns {
		results[i].Pattern = p
		m, err := engine.Compile([]PatternSpec{p})
		if err != nil {
			results[i].Err = err
			continue
		}
		m.Close()
	}
	return results
}

// Compatible reports whether every pattern compiles with engine.
func Compatible(engine Engine, patterns []PatternSpec) bool {
	for _, c := range Check(engine, patterns) {
		if !c.OK() {
			return false
		}
	}
	return true
}
