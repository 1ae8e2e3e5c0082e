package model

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// EventType is the category of an event inside a span. The string values
// are a wire-format contract shared with existing trace files; do not
// rename them.
type EventType string

const (
	EventLLMRequest  EventType = "llm_request"
	EventLLMResponse EventType = "llm_response"
	EventToolCall    EventType = "tool_call"
	EventToolResult  EventType = "tool_result"
	EventDecision    EventType = "decision"
	EventStateChange EventType = "state_change"
	EventError       EventType = "error"
	EventLog         EventType = "log"
)

var eventTypes = map[EventType]struct{}{
	EventLLMRequest:  {},
	EventLLMResponse: {},
	EventToolCall:    {},
	EventToolResult:  {},
	EventDecision:    {},
	EventStateChange: {},
	EventError:       {},
	EventLog:         {},
}

// ParseEventType validates a wire string against the closed set of event kinds.
func ParseEventType(s string) (EventType, error) {
	et := EventType(s)
	if _, ok := eventTypes[et]; !ok {
		return "", fmt.Errorf("model: unknown event type %q", s)
	}
	return et, nil
}

// Label returns the display form of the type: "tool_call" becomes "TOOL CALL".
func (t EventType) Label() string {
	return strings.ToUpper(strings.ReplaceAll(string(t), "_", " "))
}

// Event is a single timestamped occurrence inside a span. The payload is an
// open key-value bag supplied by the recorder; the model never inspects or
// validates its shape.
type Event struct {
	EventType EventType      `json:"event_type"`
	Timestamp float64        `json:"timestamp"`
	Data      map[string]any `json:"data"`
	ID        string         `json:"event_id"`
}

// UnmarshalJSON applies the tolerant-loading defaults: a nil payload becomes
// an empty map and a missing event_id is regenerated. An event type outside
// the closed set is rejected.
func (e *Event) UnmarshalJSON(b []byte) error {
	type alias Event
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	if _, err := ParseEventType(string(a.EventType)); err != nil {
		return err
	}
	if a.Data == nil {
		a.Data = map[string]any{}
	}
	if a.ID == "" {
		a.ID = NewID(EventIDLen)
	}
	*e = Event(a)
	return nil
}

// ID lengths, in hex characters.
const (
	EventIDLen = 12
	SpanIDLen  = 12
	TraceIDLen = 16
)

// NewID returns n hex characters of a fresh random UUID. Uniqueness holds
// within a process lifetime; merged traces from different sources carry no
// cross-source guarantee.
func NewID(n int) string {
	u := uuid.New()
	return hex.EncodeToString(u[:])[:n]
}
