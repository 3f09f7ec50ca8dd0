package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// FilterConfig specifies include and exclude expressions for pattern filtering.
type FilterConfig struct {
	Include []string // Regex patterns - only matching entries included
	Exclude []string // Regex patterns - matching entries excluded
}

// ParseList splits a comma-separated string into individual expressions.
// Expressions are trimmed of whitespace.
func ParseList(list string) []string {
	if list == "" {
		return []string{}
	}

	parts := strings.Split(list, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Filter keeps the entries whose Label matches an include expression (all
// entries when there are none) and drops those matching an exclude expression.
func Filter(entries []Entry, config FilterConfig) ([]Entry, error) {
	include, err := compileAll(config.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(config.Exclude)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, e := range entries {
		label := e.Label()
		if len(include) > 0 && !matchesAny(include, label) {
			continue
		}
		if matchesAny(exclude, label) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func compileAll(exprs []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
