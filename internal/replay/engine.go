// Package replay presents a trace as a single time-ordered tape of
// (span, event) pairs and moves a cursor over it.
//
// The tape is the trace's canonical event order: all events flattened in
// span-storage order, then stable-sorted by timestamp. Building it twice
// from the same trace — or from the trace's save/load round-trip — yields
// an identical tape, which is what makes replay reproducible.
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ashita-ai/kiroku/internal/model"
	"github.com/ashita-ai/kiroku/internal/storage"
)

// ErrOutOfRange is returned by Jump for a target outside [0, TotalSteps).
// The cursor is left unchanged.
var ErrOutOfRange = errors.New("replay: position out of range")

// Step is one tape entry: an event together with the span that owns it.
type Step struct {
	Span  *model.Span
	Event *model.Event
}

// Engine is a cursor over a trace's tape. Position ranges over
// [0, TotalSteps]; TotalSteps means past-the-end.
type Engine struct {
	trace    *model.Trace
	tape     []Step
	position int
}

// New builds the tape for a trace.
func New(tr *model.Trace) *Engine {
	e := &Engine{trace: tr}
	e.buildTape()
	return e
}

// FromFile loads a persisted trace and builds an engine over it.
func FromFile(path string) (*Engine, error) {
	tr, err := storage.Load(path)
	if err != nil {
		return nil, err
	}
	return New(tr), nil
}

func (e *Engine) buildTape() {
	var tape []Step
	for _, s := range e.trace.Spans {
		for _, ev := range s.Events {
			tape = append(tape, Step{Span: s, Event: ev})
		}
	}
	// Stable: equal timestamps keep flattening order.
	slices.SortStableFunc(tape, func(a, b Step) int {
		switch {
		case a.Event.Timestamp < b.Event.Timestamp:
			return -1
		case a.Event.Timestamp > b.Event.Timestamp:
			return 1
		default:
			return 0
		}
	})
	e.tape = tape
}

// Trace returns the trace the engine replays.
func (e *Engine) Trace() *model.Trace { return e.trace }

// TotalSteps is the tape length.
func (e *Engine) TotalSteps() int { return len(e.tape) }

// Position is the current cursor position.
func (e *Engine) Position() int { return e.position }

// HasNext reports whether Step has anything left to return.
func (e *Engine) HasNext() bool { return e.position < len(e.tape) }

// HasPrev reports whether StepBack can move.
func (e *Engine) HasPrev() bool { return e.position > 0 }

// Step returns the pair at the cursor and advances. At end-of-tape it
// returns false — an expected condition, not an error.
func (e *Engine) Step() (Step, bool) {
	if !e.HasNext() {
		return Step{}, false
	}
	s := e.tape[e.position]
	e.position++
	return s, true
}

// StepBack moves the cursor back one and returns the pair now under it.
func (e *Engine) StepBack() (Step, bool) {
	if !e.HasPrev() {
		return Step{}, false
	}
	e.position--
	return e.tape[e.position], true
}

// Peek returns the pair at the cursor without moving it.
func (e *Engine) Peek() (Step, bool) {
	if !e.HasNext() {
		return Step{}, false
	}
	return e.tape[e.position], true
}

// Jump moves the cursor to target and returns the pair there. An
// out-of-range target fails with ErrOutOfRange and leaves the cursor where
// it was — no clamping.
func (e *Engine) Jump(target int) (Step, error) {
	if target < 0 || target >= len(e.tape) {
		return Step{}, fmt.Errorf("%w: %d (tape has %d steps)", ErrOutOfRange, target, len(e.tape))
	}
	e.position = target
	return e.tape[e.position], nil
}

// Reset moves the cursor back to the start.
func (e *Engine) Reset() { e.position = 0 }

// CurrentSpanEvents returns every tape entry sharing the span of the pair
// at the cursor (or at the last entry when the cursor is past the end).
// Empty when the tape is empty.
func (e *Engine) CurrentSpanEvents() []Step {
	if len(e.tape) == 0 {
		return nil
	}
	pos := min(e.position, len(e.tape)-1)
	spanID := e.tape[pos].Span.SpanID

	var steps []Step
	for _, s := range e.tape {
		if s.Span.SpanID == spanID {
			steps = append(steps, s)
		}
	}
	return steps
}

// Search returns every tape index whose span name, event type, or
// JSON-rendered payload contains query as a case-insensitive substring.
// A linear scan; traces are hundreds to low thousands of events.
func (e *Engine) Search(query string) []int {
	q := strings.ToLower(query)
	var hits []int
	for i, s := range e.tape {
		data, _ := json.Marshal(s.Event.Data)
		searchable := strings.ToLower(s.Span.Name + " " + string(s.Event.EventType) + " " + string(data))
		if strings.Contains(searchable, q) {
			hits = append(hits, i)
		}
	}
	return hits
}
