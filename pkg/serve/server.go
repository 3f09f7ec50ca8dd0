// Package serve runs hypergrep as a long-lived NDJSON server: requests arrive
// one per line on the input and responses are written one per line.
package serve

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/praetorian-inc/hypergrep/pkg/coordinator"
	"github.com/praetorian-inc/hypergrep/pkg/matcher"
	"github.com/praetorian-inc/hypergrep/pkg/pattern"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// Version is the server protocol version
const Version = "1.0.0"

// streamBuffer is the number of batches queued between workers and the writer.
const streamBuffer = 64

// Server manages the streaming scanner
type Server struct {
	coord   *coordinator.Coordinator
	encoder *json.Encoder
	decoder *json.Decoder
}

// NewServer creates a new streaming server
func NewServer(coord *coordinator.Coordinator, in io.Reader, out io.Writer) *Server {
	return &Server{
		coord:   coord,
		encoder: json.NewEncoder(out),
		decoder: json.NewDecoder(bufio.NewReader(in)),
	}
}

// Run starts the server main loop
func (s *Server) Run(ctx context.Context) error {
	// Send ready signal
	s.sendReady()

	// Use buffered channels for incoming requests
	reqChan := make(chan Request, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			var req Request
			if err := s.decoder.Decode(&req); err != nil {
				errChan <- err
				return
			}
			select {
			case reqChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Process requests until stdin closes or context cancels
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// Drain any pending requests before handling EOF
			for {
				select {
				case req := <-reqChan:
					if s.processRequest(ctx, req) {
						return nil
					}
				default:
					// No more pending requests
					if err == io.EOF {
						return nil
					}
					s.sendError("decode", err.Error())
					return nil
				}
			}
		case req := <-reqChan:
			if s.processRequest(ctx, req) {
				return nil
			}
		}
	}
}

// processRequest handles a single request and returns true if the server should exit
func (s *Server) processRequest(ctx context.Context, req Request) bool {
	switch req.Type {
	case "grep":
		s.handleGrep(ctx, req.Payload)
	case "check":
		s.handleCheck(req.Payload)
	case "close":
		return true
	default:
		s.sendError("unknown", "unknown request type: "+req.Type)
	}
	return false
}

func (s *Server) sendReady() {
	s.send("ready", ReadyData{Version: Version, Engine: s.coord.Engine().Name()})
}

// patternSet converts request patterns to specs with ids 0..n-1.
func patternSet(exprs []string, syntax string, flagNames []string) (types.PatternSet, error) {
	syn, err := pattern.ParseSyntax(syntax)
	if err != nil {
		return nil, err
	}
	flags := types.DefaultFlags
	if flagNames != nil {
		if flags, err = types.ParseFlags(flagNames); err != nil {
			return nil, err
		}
	}

	entries, err := pattern.Collect(exprs, nil)
	if err != nil {
		return nil, err
	}
	entries, err = pattern.Convert(entries, pattern.Options{Syntax: syn})
	if err != nil {
		return nil, err
	}
	return pattern.Specs(entries).WithFlags(flags), nil
}

// handleGrep streams a "matches" response per delivered batch, then a final
// "grep" response with the per-file results.
func (s *Server) handleGrep(ctx context.Context, payload json.RawMessage) {
	var p GrepPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("grep", err.Error())
		return
	}
	set, err := patternSet(p.Patterns, p.Syntax, p.Flags)
	if err != nil {
		s.sendError("grep", err.Error())
		return
	}

	// Each request compiles its own set so a long session does not
	// accumulate matchers.
	m, err := s.coord.Engine().Compile(set)
	if err != nil {
		if !errors.Is(err, types.ErrCompile) {
			err = fmt.Errorf("%w: %w", types.ErrCompile, err)
		}
		s.sendError("grep", err.Error())
		return
	}
	defer m.Close()

	stream := s.coord.StreamMatcher(ctx, m, p.Paths, streamBuffer)
	for b := range stream.Batches() {
		data := MatchesData{Path: b.File.Path, Index: b.File.Index, Records: make([]RecordData, len(b.Records))}
		for i, r := range b.Records {
			data.Records[i] = RecordData{
				PatternID:  r.PatternID,
				LineNumber: r.LineNumber,
				Line:       string(bytes.TrimSuffix(r.Line, []byte("\n"))),
			}
		}
		s.send("matches", data)
	}

	results, err := stream.Wait()
	if err != nil {
		s.sendError("grep", err.Error())
		return
	}
	data := GrepData{Results: make([]FileResult, len(results)), TotalMatches: results.TotalMatches()}
	for i, res := range results {
		data.Results[i] = FileResult{ScanResult: res, Message: res.Message()}
	}
	s.send("grep", data)
}

func (s *Server) handleCheck(payload json.RawMessage) {
	var p CheckPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("check", err.Error())
		return
	}
	set, err := patternSet(p.Patterns, p.Syntax, nil)
	if err != nil {
		s.sendError("check", err.Error())
		return
	}

	eng := s.coord.Engine()
	data := CheckData{Engine: eng.Name(), Failures: []CheckFailure{}}
	for _, c := range matcher.Check(eng, set) {
		if !c.OK() {
			data.Failures = append(data.Failures, CheckFailure{ID: c.Pattern.ID, Pattern: c.Pattern.Pattern, Error: c.Err.Error()})
		}
	}
	s.send("check", data)
}

func (s *Server) send(respType string, v any) {
	data, _ := json.Marshal(v)
	s.encoder.Encode(Response{
		Success: true,
		Type:    respType,
		Data:    data,
	})
}

func (s *Server) sendError(reqType, msg string) {
	s.encoder.Encode(Response{
		Success: false,
		Type:    reqType,
		Error:   msg,
	})
}
