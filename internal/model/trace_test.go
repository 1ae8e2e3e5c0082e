package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kiroku/internal/model"
)

func TestNewTrace_Defaults(t *testing.T) {
	tr := model.NewTrace("my-run")
	assert.Len(t, tr.TraceID, model.TraceIDLen)
	assert.Equal(t, "my-run", tr.Name)
	assert.NotZero(t, tr.StartTime)
	assert.Nil(t, tr.EndTime)
	assert.Empty(t, tr.Spans)
	assert.NotNil(t, tr.Metadata)
}

func TestNewTrace_EmptyNameFallsBack(t *testing.T) {
	tr := model.NewTrace("")
	assert.Equal(t, "unnamed", tr.Name)
}

func TestAddSpan_AppendsOpenSpan(t *testing.T) {
	tr := model.NewTrace("run")
	s := tr.AddSpan("step-1")

	require.Len(t, tr.Spans, 1)
	assert.Same(t, s, tr.Spans[0])
	assert.Len(t, s.SpanID, model.SpanIDLen)
	assert.Nil(t, s.ParentID)
	assert.Nil(t, s.EndTime)
}

func TestAddSpan_NoNameUniqueness(t *testing.T) {
	tr := model.NewTrace("run")
	a := tr.AddSpan("same")
	b := tr.AddSpan("same")
	assert.NotEqual(t, a.SpanID, b.SpanID)
	assert.Len(t, tr.Spans, 2)
}

func TestAddSpan_NestedViaParentReference(t *testing.T) {
	// Outer span logs, inner span records a decision. The trace stores both
	// spans flat; nesting is only the parent_id reference.
	tr := model.NewTrace("run")
	outer := tr.AddSpan("outer")
	outer.AddEvent(model.EventLog, map[string]any{"message": "starting"})

	inner := tr.AddSpan("inner", model.WithParent(outer.SpanID))
	inner.AddEvent(model.EventDecision, map[string]any{"choice": "retry"})

	require.Len(t, tr.Spans, 2)
	require.NotNil(t, tr.Spans[1].ParentID)
	assert.Equal(t, outer.SpanID, *tr.Spans[1].ParentID)
}

func TestAddEvent_Defaults(t *testing.T) {
	s := model.NewSpan("s")
	e := s.AddEvent(model.EventToolCall, nil)

	assert.Len(t, e.ID, model.EventIDLen)
	assert.NotZero(t, e.Timestamp)
	assert.NotNil(t, e.Data)
	require.Len(t, s.Events, 1)
	assert.Same(t, e, s.Events[0])
}

func TestClose_StampsOpenSpans(t *testing.T) {
	tr := model.NewTrace("run")
	open := tr.AddSpan("open")
	closed := tr.AddSpan("closed")
	closed.Close()
	was := *closed.EndTime

	tr.Close()

	require.NotNil(t, tr.EndTime)
	require.NotNil(t, open.EndTime)
	// Already-closed spans keep their end time; only the trace-level close
	// of open spans stamps anew.
	assert.Equal(t, was, *closed.EndTime)
}

func TestClose_RecloseOverwrites(t *testing.T) {
	// Re-closing is not rejected: the end time is overwritten. Callers own
	// the close-once discipline.
	s := model.NewSpan("s")
	s.Close()
	earlier := 1.0
	s.EndTime = &earlier
	s.Close()
	assert.Greater(t, *s.EndTime, earlier)

	tr := model.NewTrace("run")
	tr.Close()
	tr.EndTime = &earlier
	tr.Close()
	assert.Greater(t, *tr.EndTime, earlier)
}

func TestDuration(t *testing.T) {
	s := model.NewSpan("s")
	_, ok := s.Duration()
	assert.False(t, ok, "open span has no duration")

	s.StartTime = 10.0
	end := 12.5
	s.EndTime = &end
	d, ok := s.Duration()
	require.True(t, ok)
	assert.InDelta(t, 2.5, d, 1e-9)
}

func TestEventCount(t *testing.T) {
	tr := model.NewTrace("run")
	tr.AddSpan("a").AddEvent(model.EventLog, nil)
	b := tr.AddSpan("b")
	b.AddEvent(model.EventLog, nil)
	b.AddEvent(model.EventError, nil)
	assert.Equal(t, 3, tr.EventCount())
}

func TestAllEvents_SortedByTimestamp(t *testing.T) {
	tr := model.NewTrace("run")
	a := tr.AddSpan("a")
	b := tr.AddSpan("b")
	a.AddEventAt(model.EventLog, nil, 3.0)
	a.AddEventAt(model.EventLog, nil, 1.0)
	b.AddEventAt(model.EventLog, nil, 2.0)

	events := tr.AllEvents()
	require.Len(t, events, 3)
	assert.Equal(t, []float64{1.0, 2.0, 3.0},
		[]float64{events[0].Timestamp, events[1].Timestamp, events[2].Timestamp})
}

func TestAllEvents_StableTieBreak(t *testing.T) {
	// Equal timestamps keep flattening order: span storage order first,
	// then per-span insertion order.
	tr := model.NewTrace("run")
	a := tr.AddSpan("a")
	b := tr.AddSpan("b")
	e1 := a.AddEventAt(model.EventLog, map[string]any{"n": 1}, 5.0)
	e2 := a.AddEventAt(model.EventLog, map[string]any{"n": 2}, 5.0)
	e3 := b.AddEventAt(model.EventLog, map[string]any{"n": 3}, 5.0)

	events := tr.AllEvents()
	require.Len(t, events, 3)
	assert.Equal(t, []string{e1.ID, e2.ID, e3.ID},
		[]string{events[0].ID, events[1].ID, events[2].ID})
}

func TestSpanLookup(t *testing.T) {
	tr := model.NewTrace("run")
	s := tr.AddSpan("s")

	got, ok := tr.Span(s.SpanID)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = tr.Span("missing")
	assert.False(t, ok)
}

func TestSpanForEvent(t *testing.T) {
	tr := model.NewTrace("run")
	s := tr.AddSpan("worker")
	e := s.AddEvent(model.EventToolCall, nil)

	assert.Equal(t, "worker", tr.SpanForEvent(e.ID))
	assert.Equal(t, "unknown", tr.SpanForEvent("nope"))
}

func TestParseEventType(t *testing.T) {
	for _, s := range []string{
		"llm_request", "llm_response", "tool_call", "tool_result",
		"decision", "state_change", "error", "log",
	} {
		et, err := model.ParseEventType(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(et))
	}

	_, err := model.ParseEventType("telemetry")
	assert.Error(t, err)
}

func TestEventTypeLabel(t *testing.T) {
	assert.Equal(t, "TOOL CALL", model.EventToolCall.Label())
	assert.Equal(t, "LOG", model.EventLog.Label())
}

func TestEventUnmarshal_Defaults(t *testing.T) {
	var e model.Event
	require.NoError(t, json.Unmarshal([]byte(`{"event_type":"log","timestamp":1.5}`), &e))
	assert.Equal(t, model.EventLog, e.EventType)
	assert.NotNil(t, e.Data)
	assert.Len(t, e.ID, model.EventIDLen, "missing event_id is regenerated")
}

func TestEventUnmarshal_UnknownType(t *testing.T) {
	var e model.Event
	err := json.Unmarshal([]byte(`{"event_type":"bogus","timestamp":1.5}`), &e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestSpanUnmarshal_Defaults(t *testing.T) {
	var s model.Span
	require.NoError(t, json.Unmarshal([]byte(`{"name":"s","start_time":1.0}`), &s))
	assert.NotEmpty(t, s.SpanID)
	assert.NotNil(t, s.Events)
	assert.NotNil(t, s.Metadata)
	assert.Nil(t, s.ParentID)
	assert.Nil(t, s.EndTime)
}

func TestSpanUnmarshal_MissingName(t *testing.T) {
	var s model.Span
	err := json.Unmarshal([]byte(`{"span_id":"abc","start_time":1.0}`), &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing name")
}

func TestTraceUnmarshal_MissingTraceID(t *testing.T) {
	var tr model.Trace
	err := json.Unmarshal([]byte(`{"name":"run","start_time":1.0}`), &tr)
	assert.Error(t, err)
}

func TestTraceJSONRoundTrip(t *testing.T) {
	tr := model.NewTrace("run")
	tr.Metadata["env"] = "test"
	s := tr.AddSpan("s", model.WithSpanMetadata(map[string]any{"k": "v"}))
	s.AddEventAt(model.EventToolCall, map[string]any{"tool": "search"}, 2.0)
	tr.Close()

	b, err := json.Marshal(tr)
	require.NoError(t, err)

	var got model.Trace
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, tr.TraceID, got.TraceID)
	assert.Equal(t, tr.Name, got.Name)
	require.Len(t, got.Spans, 1)
	assert.Equal(t, s.SpanID, got.Spans[0].SpanID)
	require.Len(t, got.Spans[0].Events, 1)
	assert.Equal(t, model.EventToolCall, got.Spans[0].Events[0].EventType)
	assert.Equal(t, "search", got.Spans[0].Events[0].Data["tool"])
	assert.Equal(t, map[string]any{"k": "v"}, got.Spans[0].Metadata)
}
