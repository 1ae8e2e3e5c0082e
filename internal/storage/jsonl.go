// Package storage persists traces as newline-delimited JSON and maintains a
// local SQLite catalog of saved trace files.
//
// The JSONL layout is a durable contract: line one is a trace_header record,
// every following line is a span record with its events embedded. Loading is
// tolerant — blank lines are skipped, unrecognized record types are ignored,
// and a missing header falls back to defaults — but a line that is not valid
// JSON, or a span record missing its name, fails the whole load with a
// *FormatError.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashita-ai/kiroku/internal/model"
)

// FormatError reports a malformed persisted trace. The load fails as a
// whole; no partial trace is returned.
type FormatError struct {
	Path string
	Line int
	Err  error
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("storage: %s: line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("storage: %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// maxLineBytes bounds a single JSONL record. Span records embed all their
// events, so lines can be large.
const maxLineBytes = 16 << 20

type traceHeader struct {
	Type      string         `json:"type"`
	TraceID   string         `json:"trace_id"`
	Name      string         `json:"name"`
	StartTime float64        `json:"start_time"`
	EndTime   *float64       `json:"end_time"`
	Metadata  map[string]any `json:"metadata"`
}

// spanRecord is the marshal shape for span lines: the span's fields inlined
// next to the record type tag.
type spanRecord struct {
	Type string `json:"type"`
	*model.Span
}

// Save writes the trace to path in the JSONL format. The write goes to a
// temporary file in the same directory followed by a rename, so a crash
// never leaves a truncated trace behind.
func Save(tr *model.Trace, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: create trace dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".kiroku-*.tmp")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)

	header := traceHeader{
		Type:      "trace_header",
		TraceID:   tr.TraceID,
		Name:      tr.Name,
		StartTime: tr.StartTime,
		EndTime:   tr.EndTime,
		Metadata:  tr.Metadata,
	}
	if header.Metadata == nil {
		header.Metadata = map[string]any{}
	}
	if err := enc.Encode(header); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: encode header: %w", err)
	}
	for _, s := range tr.Spans {
		if err := enc.Encode(spanRecord{Type: "span", Span: s}); err != nil {
			tmp.Close()
			return fmt.Errorf("storage: encode span %s: %w", s.SpanID, err)
		}
	}

	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("storage: rename into place: %w", err)
	}
	return nil
}

// Load reads a trace back from a JSONL file.
func Load(path string) (*model.Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("storage: open trace: %w", err)
	}
	defer f.Close()

	var (
		header  *traceHeader
		spans   = []*model.Span{}
		lineNum int
		sc      = bufio.NewScanner(f)
	)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		// Fresh probe per line: a record with no "type" key must read as
		// untyped, not inherit the previous line's type.
		var probeType struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(line), &probeType); err != nil {
			return nil, &FormatError{Path: path, Line: lineNum, Err: err}
		}
		switch probeType.Type {
		case "trace_header":
			var h traceHeader
			if err := json.Unmarshal([]byte(line), &h); err != nil {
				return nil, &FormatError{Path: path, Line: lineNum, Err: err}
			}
			header = &h
		case "span":
			var s model.Span
			if err := json.Unmarshal([]byte(line), &s); err != nil {
				return nil, &FormatError{Path: path, Line: lineNum, Err: err}
			}
			spans = append(spans, &s)
		default:
			// Unknown record types are ignored for forward compatibility.
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}

	tr := &model.Trace{Spans: spans}
	if header != nil {
		tr.TraceID = header.TraceID
		tr.Name = header.Name
		tr.StartTime = header.StartTime
		tr.EndTime = header.EndTime
		tr.Metadata = header.Metadata
	}
	// A missing or partial header falls back to defaults rather than failing.
	if tr.TraceID == "" {
		tr.TraceID = model.NewID(model.TraceIDLen)
	}
	if tr.Name == "" {
		tr.Name = "unnamed"
	}
	if tr.Metadata == nil {
		tr.Metadata = map[string]any{}
	}
	return tr, nil
}
