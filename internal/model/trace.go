// Package model defines the core domain types for Kiroku: traces, spans,
// and events.
//
// A Trace is the full recorded history of one agent run. It owns a flat,
// insertion-ordered list of spans; each span owns an ordered list of events.
// Timestamps are float64 Unix seconds throughout — the same representation
// the persisted JSONL format uses, so serialization is lossless.
package model

import (
	"encoding/json"
	"slices"
	"time"
)

func now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Trace is a complete execution trace: trace-level metadata plus an ordered
// sequence of spans.
type Trace struct {
	TraceID   string         `json:"trace_id"`
	Name      string         `json:"name"`
	StartTime float64        `json:"start_time"`
	EndTime   *float64       `json:"end_time"`
	Spans     []*Span        `json:"spans"`
	Metadata  map[string]any `json:"metadata"`
}

// NewTrace creates an empty trace starting now.
func NewTrace(name string) *Trace {
	if name == "" {
		name = "unnamed"
	}
	return &Trace{
		TraceID:   NewID(TraceIDLen),
		Name:      name,
		StartTime: now(),
		Spans:     []*Span{},
		Metadata:  map[string]any{},
	}
}

// SpanOption configures a span created through AddSpan.
type SpanOption func(*Span)

// WithParent links the new span under an existing span's id.
func WithParent(parentID string) SpanOption {
	return func(s *Span) { s.ParentID = &parentID }
}

// WithSpanMetadata sets the span's metadata map.
func WithSpanMetadata(md map[string]any) SpanOption {
	return func(s *Span) {
		if md != nil {
			s.Metadata = md
		}
	}
}

// AddSpan appends a new open span and returns it for further mutation.
// Span names are labels, not keys — no uniqueness is enforced.
func (t *Trace) AddSpan(name string, opts ...SpanOption) *Span {
	s := NewSpan(name)
	for _, opt := range opts {
		opt(s)
	}
	t.Spans = append(t.Spans, s)
	return s
}

// Close stamps the trace's end time and closes every still-open span.
// Re-closing overwrites end times rather than rejecting the call.
func (t *Trace) Close() {
	ts := now()
	t.EndTime = &ts
	for _, s := range t.Spans {
		if s.EndTime == nil {
			s.Close()
		}
	}
}

// Span returns the span with the given id, or false if no span has it.
func (t *Trace) Span(spanID string) (*Span, bool) {
	for _, s := range t.Spans {
		if s.SpanID == spanID {
			return s, true
		}
	}
	return nil, false
}

// SpanForEvent returns the name of the span owning the given event id, or
// "unknown" when no span contains it.
func (t *Trace) SpanForEvent(eventID string) string {
	for _, s := range t.Spans {
		for _, e := range s.Events {
			if e.ID == eventID {
				return s.Name
			}
		}
	}
	return "unknown"
}

// EventCount is the total number of events across all spans.
func (t *Trace) EventCount() int {
	n := 0
	for _, s := range t.Spans {
		n += len(s.Events)
	}
	return n
}

// Duration returns end_time - start_time; false while the trace is open.
func (t *Trace) Duration() (float64, bool) {
	if t.EndTime == nil {
		return 0, false
	}
	return *t.EndTime - t.StartTime, true
}

// AllEvents returns every event from every span sorted by timestamp
// ascending. Ties keep the flattening order (spans in storage order, events
// in per-span order) — the sort must stay stable because synthetic
// recordings frequently produce identical timestamps. This is the canonical
// event order used by both replay and diff.
func (t *Trace) AllEvents() []*Event {
	var events []*Event
	for _, s := range t.Spans {
		events = append(events, s.Events...)
	}
	slices.SortStableFunc(events, func(a, b *Event) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})
	return events
}

// UnmarshalJSON applies tolerant-loading defaults for a whole-trace
// document: nil spans/metadata become empty, a missing name falls back to
// "unnamed". A trace without a trace_id is malformed.
func (t *Trace) UnmarshalJSON(b []byte) error {
	type alias Trace
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	if a.TraceID == "" {
		return errMissingTraceID
	}
	if a.Name == "" {
		a.Name = "unnamed"
	}
	if a.Spans == nil {
		a.Spans = []*Span{}
	}
	if a.Metadata == nil {
		a.Metadata = map[string]any{}
	}
	*t = Trace(a)
	return nil
}
