package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// Options control the printed form of matches.
type Options struct {
	Format       Format
	WithFilename bool // prefix lines with "path:"
	LineNumber   bool // prefix lines with "n:"
	Count        bool // print a per-file count of matching lines instead of lines
	Total        bool // print one count across all files instead of lines
	OnlyMatching bool // print each matched part on its own line
	NoMessages   bool // suppress per-file error messages
	Color        bool
	Ordered      bool // print files in input order

	// Patterns are needed for OnlyMatching and for highlighting matches.
	Patterns types.PatternSet

	// Program prefixes error messages, as in "hypergrep: path: reason".
	Program string
}

// Printer writes matches as they are delivered by concurrent workers. In
// ordered mode, output of file i is held back until every file before i has
// finished.
type Printer struct {
	mu      sync.Mutex
	w       io.Writer
	errw    io.Writer
	opts    Options
	styles  *styles
	spans   *Spanner
	next    int
	pending map[int]*fileBuffer
	total   uint64
	err     error
}

type fileBuffer struct {
	buf  bytes.Buffer
	done bool
}

// jsonMatch is one line of the JSON output.
type jsonMatch struct {
	Path       string   `json:"path"`
	LineNumber uint64   `json:"line_number"`
	PatternID  uint     `json:"pattern_id"`
	Line       string   `json:"line"`
	Matches    []string `json:"matches,omitempty"`
}

type jsonCount struct {
	Path  string `json:"path,omitempty"`
	Count uint64 `json:"count"`
}

// New creates a Printer writing matches to w and error messages to errw.
func New(w, errw io.Writer, opts Options) (*Printer, error) {
	if opts.Program == "" {
		opts.Program = "hypergrep"
	}
	p := &Printer{
		w:       w,
		errw:    errw,
		opts:    opts,
		styles:  newStyles(opts.Color && opts.Format == FormatText),
		pending: make(map[int]*fileBuffer),
	}
	if (opts.OnlyMatching || p.opts.Color) && len(opts.Patterns) > 0 {
		spans, err := NewSpanner(opts.Patterns)
		if err != nil {
			return nil, err
		}
		p.spans = spans
	}
	return p, nil
}

// OnMatch renders a delivered batch. It has the types.FileMatchFunc shape and
// may be called concurrently for different files.
func (p *Printer) OnMatch(file types.FileRef, batch []types.MatchRecord) {
	if p.opts.Count || p.opts.Total || len(batch) == 0 {
		return
	}

	var buf bytes.Buffer
	for _, r := range batch {
		p.render(&buf, file.Path, r)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.emit(file.Index, buf.Bytes())
}

// FileDone records the end of a file: its count line in count mode, or its
// error message when it failed.
func (p *Printer) FileDone(file types.FileRef, res types.ScanResult) {
	var buf bytes.Buffer
	if res.Status.OK() && p.opts.Count && !p.opts.Total {
		p.renderCount(&buf, file.Path, res.MatchesFound)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if res.Status.OK() {
		p.total += res.MatchesFound
	} else if res.Status != types.StatusCanceled && !p.opts.NoMessages && p.errw != nil {
		fmt.Fprintf(p.errw, "%s: %s\n", p.opts.Program, res.Message())
	}

	p.emit(file.Index, buf.Bytes())
	if !p.opts.Ordered {
		return
	}
	fb := p.buffer(file.Index)
	fb.done = true
	p.advance()
}

// Close flushes held-back output, prints the total in total mode and returns
// the first write error.
func (p *Printer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, index := range slices.Sorted(maps.Keys(p.pending)) {
		p.write(p.pending[index].buf.Bytes())
	}
	clear(p.pending)

	if p.opts.Total {
		var buf bytes.Buffer
		p.renderCount(&buf, "", p.total)
		p.write(buf.Bytes())
	}
	return p.err
}

// Total returns the number of matching lines across finished files.
func (p *Printer) Total() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// emit writes data now, or holds it back when an earlier file is unfinished.
func (p *Printer) emit(index int, data []byte) {
	if len(data) == 0 {
		return
	}
	if !p.opts.Ordered || index == p.next {
		p.write(data)
		return
	}
	p.buffer(index).buf.Write(data)
}

func (p *Printer) buffer(index int) *fileBuffer {
	fb, ok := p.pending[index]
	if !ok {
		fb = &fileBuffer{}
		p.pending[index] = fb
	}
	return fb
}

// advance moves past finished files, flushing what the next ones buffered.
func (p *Printer) advance() {
	for {
		fb, ok := p.pending[p.next]
		if !ok || !fb.done {
			return
		}
		delete(p.pending, p.next)
		p.next++

		if next, ok := p.pending[p.next]; ok && next.buf.Len() > 0 {
			p.write(next.buf.Bytes())
			next.buf.Reset()
		}
	}
}

func (p *Printer) write(data []byte) {
	if p.err != nil || len(data) == 0 {
		return
	}
	_, p.err = p.w.Write(data)
}

func (p *Printer) render(buf *bytes.Buffer, path string, r types.MatchRecord) {
	line := bytes.TrimSuffix(r.Line, []byte("\n"))

	var spans []Span
	if p.spans != nil {
		spans = p.spans.Spans(r.PatternID, line)
	}

	if p.opts.Format == FormatJSON {
		m := jsonMatch{Path: path, LineNumber: r.LineNumber, PatternID: r.PatternID, Line: string(line)}
		if p.opts.OnlyMatching {
			for _, s := range spans {
				m.Matches = append(m.Matches, string(line[s.Start:s.End]))
			}
		}
		data, _ := json.Marshal(m)
		buf.Write(data)
		buf.WriteByte('\n')
		return
	}

	if p.opts.OnlyMatching {
		for _, s := range spans {
			p.prefix(buf, path, r.LineNumber)
			buf.WriteString(p.styles.match.Sprint(string(line[s.Start:s.End])))
			buf.WriteByte('\n')
		}
		return
	}

	p.prefix(buf, path, r.LineNumber)
	last := 0
	for _, s := range spans {
		buf.Write(line[last:s.Start])
		buf.WriteString(p.styles.match.Sprint(string(line[s.Start:s.End])))
		last = s.End
	}
	buf.Write(line[last:])
	buf.WriteByte('\n')
}

func (p *Printer) prefix(buf *bytes.Buffer, path string, lineNumber uint64) {
	if p.opts.WithFilename {
		buf.WriteString(p.styles.filename.Sprint(path))
		buf.WriteString(p.styles.sep.Sprint(":"))
	}
	if p.opts.LineNumber {
		buf.WriteString(p.styles.lineNum.Sprint(strconv.FormatUint(lineNumber, 10)))
		buf.WriteString(p.styles.sep.Sprint(":"))
	}
}

func (p *Printer) renderCount(buf *bytes.Buffer, path string, n uint64) {
	if p.opts.Format == FormatJSON {
		c := jsonCount{Count: n}
		if p.opts.WithFilename {
			c.Path = path
		}
		data, _ := json.Marshal(c)
		buf.Write(data)
		buf.WriteByte('\n')
		return
	}
	if p.opts.WithFilename && path != "" {
		buf.WriteString(p.styles.filename.Sprint(path))
		buf.WriteString(p.styles.sep.Sprint(":"))
	}
	buf.WriteString(strconv.FormatUint(n, 10))
	buf.WriteByte('\n')
}
