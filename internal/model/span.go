package model

import (
	"encoding/json"
	"fmt"
)

// Span is a named, time-bounded container of events. Spans nest by
// reference: ParentID points at another span's SpanID, and the owning trace
// keeps all spans in one flat list. Hierarchy is reconstructed on the read
// side by span-id lookup, never by stored pointers.
type Span struct {
	Name      string         `json:"name"`
	SpanID    string         `json:"span_id"`
	ParentID  *string        `json:"parent_id"`
	StartTime float64        `json:"start_time"`
	EndTime   *float64       `json:"end_time"`
	Events    []*Event       `json:"events"`
	Metadata  map[string]any `json:"metadata"`
}

// NewSpan creates an open span starting now.
func NewSpan(name string) *Span {
	return &Span{
		Name:      name,
		SpanID:    NewID(SpanIDLen),
		StartTime: now(),
		Events:    []*Event{},
		Metadata:  map[string]any{},
	}
}

// AddEvent appends an event stamped with the current time and returns it.
func (s *Span) AddEvent(et EventType, data map[string]any) *Event {
	return s.AddEventAt(et, data, now())
}

// AddEventAt appends an event with an explicit timestamp.
func (s *Span) AddEventAt(et EventType, data map[string]any, ts float64) *Event {
	if data == nil {
		data = map[string]any{}
	}
	e := &Event{
		EventType: et,
		Timestamp: ts,
		Data:      data,
		ID:        NewID(EventIDLen),
	}
	s.Events = append(s.Events, e)
	return e
}

// Close stamps the span's end time with the current time. Closing an
// already-closed span overwrites the end time; callers own the lifecycle.
func (s *Span) Close() {
	t := now()
	s.EndTime = &t
}

// Closed reports whether the span has an end time.
func (s *Span) Closed() bool { return s.EndTime != nil }

// Duration returns end_time - start_time. Defined only once the span is
// closed; the second return is false for an open span.
func (s *Span) Duration() (float64, bool) {
	if s.EndTime == nil {
		return 0, false
	}
	return *s.EndTime - s.StartTime, true
}

// UnmarshalJSON applies tolerant-loading defaults: nil events/metadata
// become empty, a missing span_id is regenerated. A span without a name is
// malformed.
func (s *Span) UnmarshalJSON(b []byte) error {
	type alias Span
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	if a.Name == "" {
		return fmt.Errorf("model: span record missing name")
	}
	if a.SpanID == "" {
		a.SpanID = NewID(SpanIDLen)
	}
	if a.Events == nil {
		a.Events = []*Event{}
	}
	if a.Metadata == nil {
		a.Metadata = map[string]any{}
	}
	*s = Span(a)
	return nil
}
