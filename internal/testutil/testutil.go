// Package testutil provides shared helpers for building traces with
// deterministic timestamps in tests.
package testutil

import (
	"github.com/ashita-ai/kiroku/internal/model"
)

// EventSpec is one event to place in a span: a kind, a payload, and an
// explicit timestamp so ordering is controlled by the test, not the clock.
type EventSpec struct {
	Type model.EventType
	Data map[string]any
	At   float64
}

// SpanSpec is one span to place in a trace.
type SpanSpec struct {
	Name   string
	Parent string // span name of the parent, resolved after all spans exist
	Events []EventSpec
}

// BuildTrace assembles a closed trace from span specs. Parent references
// are resolved by span name, so specs stay readable.
func BuildTrace(name string, spans ...SpanSpec) *model.Trace {
	tr := model.NewTrace(name)
	byName := map[string]*model.Span{}

	for _, ss := range spans {
		var opts []model.SpanOption
		if ss.Parent != "" {
			if parent, ok := byName[ss.Parent]; ok {
				opts = append(opts, model.WithParent(parent.SpanID))
			}
		}
		s := tr.AddSpan(ss.Name, opts...)
		byName[ss.Name] = s
		for _, es := range ss.Events {
			s.AddEventAt(es.Type, es.Data, es.At)
		}
	}

	tr.Close()
	return tr
}

// SingleSpanTrace is shorthand for a trace with one span holding the given
// events.
func SingleSpanTrace(traceName, spanName string, events ...EventSpec) *model.Trace {
	return BuildTrace(traceName, SpanSpec{Name: spanName, Events: events})
}
