package output

import "github.com/fatih/color"

// styles holds the grep color scheme.
type styles struct {
	filename *color.Color
	lineNum  *color.Color
	sep      *color.Color
	match    *color.Color
}

func newStyles(enabled bool) *styles {
	s := &styles{
		filename: color.New(color.FgMagenta),
		lineNum:  color.New(color.FgGreen),
		sep:      color.New(color.FgCyan),
		match:    color.New(color.Bold, color.FgRed),
	}

	for _, c := range []*color.Color{s.filename, s.lineNum, s.sep, s.match} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}
