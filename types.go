package kiroku

import "github.com/ashita-ai/kiroku/internal/model"

// Aliases so callers can build and traverse the trace object graph without
// importing internal packages.
type (
	Trace     = model.Trace
	Span      = model.Span
	Event     = model.Event
	EventType = model.EventType
)

// Event kinds. The string values are part of the persisted wire contract.
const (
	EventLLMRequest  = model.EventLLMRequest
	EventLLMResponse = model.EventLLMResponse
	EventToolCall    = model.EventToolCall
	EventToolResult  = model.EventToolResult
	EventDecision    = model.EventDecision
	EventStateChange = model.EventStateChange
	EventError       = model.EventError
	EventLog         = model.EventLog
)
