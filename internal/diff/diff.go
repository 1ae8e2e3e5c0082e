// Package diff compares two traces of the same agent task and reports where
// their behavior diverges.
//
// Alignment is positional: both traces are reduced to their canonical event
// order (timestamp sort, stable tie-break) and walked in lockstep by index.
// This is a deliberate simplicity/precision trade-off — a single inserted or
// deleted event mid-sequence shifts everything after it, so all later
// positions read as divergent. There is no resynchronization. In practice
// agent runs of the same task diverge at a point and stay diverged, which is
// exactly what the first reported position shows.
package diff

import (
	"fmt"
	"reflect"

	"github.com/ashita-ai/kiroku/internal/model"
)

// Severity ranks a divergence by operator relevance.
type Severity string

const (
	// SeverityCritical marks behavior-changing differences: event type,
	// tool choice, decision outcome.
	SeverityCritical Severity = "critical"
	// SeverityWarning marks structural length mismatches (extra trailing
	// events on one side).
	SeverityWarning Severity = "warning"
	// SeverityInfo marks expected non-deterministic variance, such as LLM
	// response wording.
	SeverityInfo Severity = "info"
)

// Divergence is one detected difference at a tape position. The absent
// side's event is nil for extra-event divergences.
type Divergence struct {
	Position    int          `json:"position"`
	Description string       `json:"description"`
	Severity    Severity     `json:"severity"`
	TraceASpan  string       `json:"trace_a_span"`
	TraceBSpan  string       `json:"trace_b_span"`
	TraceAEvent *model.Event `json:"trace_a_event"`
	TraceBEvent *model.Event `json:"trace_b_event"`
}

// Result is the outcome of comparing two traces.
type Result struct {
	TraceAID    string       `json:"trace_a_id"`
	TraceBID    string       `json:"trace_b_id"`
	Divergences []Divergence `json:"divergences"`
	Summary     string       `json:"summary"`
}

// Identical reports whether no divergence was found.
func (r *Result) Identical() bool { return len(r.Divergences) == 0 }

// CriticalCount is the number of critical divergences.
func (r *Result) CriticalCount() int {
	n := 0
	for _, d := range r.Divergences {
		if d.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// Traces compares two traces and returns every divergence in tape order.
func Traces(a, b *model.Trace) *Result {
	result := &Result{
		TraceAID:    a.TraceID,
		TraceBID:    b.TraceID,
		Divergences: []Divergence{},
	}

	eventsA := a.AllEvents()
	eventsB := b.AllEvents()

	for i := 0; i < max(len(eventsA), len(eventsB)); i++ {
		var ea, eb *model.Event
		if i < len(eventsA) {
			ea = eventsA[i]
		}
		if i < len(eventsB) {
			eb = eventsB[i]
		}

		switch {
		case ea == nil:
			result.Divergences = append(result.Divergences, Divergence{
				Position:    i,
				Description: fmt.Sprintf("Trace B has extra event: %s", eb.EventType),
				Severity:    SeverityWarning,
				TraceBSpan:  b.SpanForEvent(eb.ID),
				TraceBEvent: eb,
			})

		case eb == nil:
			result.Divergences = append(result.Divergences, Divergence{
				Position:    i,
				Description: fmt.Sprintf("Trace A has extra event: %s", ea.EventType),
				Severity:    SeverityWarning,
				TraceASpan:  a.SpanForEvent(ea.ID),
				TraceAEvent: ea,
			})

		case ea.EventType != eb.EventType:
			// A type mismatch subsumes any payload comparison.
			result.Divergences = append(result.Divergences, both(a, b, Divergence{
				Position:    i,
				Description: fmt.Sprintf("Event type divergence: %s vs %s", ea.EventType, eb.EventType),
				Severity:    SeverityCritical,
				TraceAEvent: ea,
				TraceBEvent: eb,
			}))

		default:
			if d, ok := comparePayload(i, ea, eb); ok {
				result.Divergences = append(result.Divergences, both(a, b, d))
			}
		}
	}

	n := len(result.Divergences)
	if n == 0 {
		result.Summary = "Traces are identical in structure and content."
	} else {
		result.Summary = fmt.Sprintf("Found %d divergence(s): %d critical, %d informational.",
			n, result.CriticalCount(), n-result.CriticalCount())
	}
	return result
}

// both resolves the owning span name on each side independently.
func both(a, b *model.Trace, d Divergence) Divergence {
	d.TraceASpan = a.SpanForEvent(d.TraceAEvent.ID)
	d.TraceBSpan = b.SpanForEvent(d.TraceBEvent.ID)
	return d
}

// comparePayload applies the type-specific field comparison for matching
// event types. Missing keys compare as their zero value; payload shape
// never fails the diff.
func comparePayload(pos int, ea, eb *model.Event) (Divergence, bool) {
	switch ea.EventType {
	case model.EventToolCall:
		ta, tb := ea.Data["tool"], eb.Data["tool"]
		if !reflect.DeepEqual(ta, tb) {
			return Divergence{
				Position:    pos,
				Description: fmt.Sprintf("Different tool called: %v vs %v", ta, tb),
				Severity:    SeverityCritical,
				TraceAEvent: ea,
				TraceBEvent: eb,
			}, true
		}

	case model.EventLLMResponse:
		// Content may be structured (blocks), not just a string; an absent
		// key compares as the empty string.
		ca, cb := contentValue(ea), contentValue(eb)
		if !reflect.DeepEqual(ca, cb) {
			return Divergence{
				Position:    pos,
				Description: "LLM response content differs",
				Severity:    SeverityInfo,
				TraceAEvent: ea,
				TraceBEvent: eb,
			}, true
		}

	case model.EventDecision:
		ca, cb := ea.Data["choice"], eb.Data["choice"]
		if !reflect.DeepEqual(ca, cb) {
			return Divergence{
				Position:    pos,
				Description: fmt.Sprintf("Decision divergence: '%v' vs '%v'", ca, cb),
				Severity:    SeverityCritical,
				TraceAEvent: ea,
				TraceBEvent: eb,
			}, true
		}
	}
	// Other event types only compare at the type level.
	return Divergence{}, false
}

func contentValue(e *model.Event) any {
	if v, ok := e.Data["content"]; ok {
		return v
	}
	return ""
}
