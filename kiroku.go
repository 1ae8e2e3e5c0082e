// Package kiroku is the public API for recording, replaying, and diffing
// AI agent execution traces.
//
// A host program records a run through a Recorder, which populates a Trace
// (spans containing timestamped events) and persists it as a JSONL file:
//
//	rec := kiroku.NewRecorder("checkout-agent",
//	    kiroku.WithOutputPath("run.jsonl"),
//	)
//	err := rec.InSpan("plan", func(s *kiroku.Span) error {
//	    rec.LLMRequest("gpt-4", messages)
//	    rec.ToolCall("search", map[string]any{"query": "return policy"})
//	    return nil
//	})
//	_, err = rec.Finish()
//
// Saved traces are then replayed step-by-step (NewReplay) or compared
// against another run of the same task (Diff) to find the first point of
// behavioral divergence.
//
// The import graph enforces a strict no-cycle rule: kiroku (root) imports
// internal/*, but internal/* never imports the root.
package kiroku

import (
	"log/slog"

	"github.com/ashita-ai/kiroku/internal/diff"
	"github.com/ashita-ai/kiroku/internal/model"
	"github.com/ashita-ai/kiroku/internal/replay"
	"github.com/ashita-ai/kiroku/internal/storage"
)

// Recorder captures one agent run into a Trace. A Recorder is owned by a
// single recording session; it is not safe for concurrent writers.
type Recorder struct {
	trace      *model.Trace
	current    *model.Span
	outputPath string
	logger     *slog.Logger
}

// NewRecorder starts recording a run under the given trace name.
func NewRecorder(name string, opts ...Option) *Recorder {
	o := resolvedOptions{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}

	tr := model.NewTrace(name)
	if o.metadata != nil {
		tr.Metadata = o.metadata
	}
	return &Recorder{
		trace:      tr,
		outputPath: o.outputPath,
		logger:     o.logger,
	}
}

// Trace returns the trace being recorded.
func (r *Recorder) Trace() *model.Trace { return r.trace }

// InSpan runs fn inside a new named span. The span nests under the current
// one, becomes current for the duration of fn, and is closed on every exit
// path — including a panic in fn — with the previous current span restored
// afterward.
func (r *Recorder) InSpan(name string, fn func(*model.Span) error) error {
	var opts []model.SpanOption
	if r.current != nil {
		opts = append(opts, model.WithParent(r.current.SpanID))
	}
	s := r.trace.AddSpan(name, opts...)

	prev := r.current
	r.current = s
	defer func() {
		s.Close()
		r.current = prev
	}()

	return fn(s)
}

// ensureSpan lazily opens a "default" span so events recorded outside any
// InSpan call still have a home.
func (r *Recorder) ensureSpan() *model.Span {
	if r.current == nil {
		r.current = r.trace.AddSpan("default")
	}
	return r.current
}

// Event records a raw event in the current span.
func (r *Recorder) Event(et EventType, data map[string]any) *Event {
	return r.ensureSpan().AddEvent(et, data)
}

// LLMRequest records an outgoing model call.
func (r *Recorder) LLMRequest(model string, messages []any) *Event {
	if messages == nil {
		messages = []any{}
	}
	return r.Event(EventLLMRequest, map[string]any{"model": model, "messages": messages})
}

// LLMResponse records a model completion. tokens may be zero when unknown.
func (r *Recorder) LLMResponse(content string, tokens int) *Event {
	return r.Event(EventLLMResponse, map[string]any{"content": content, "tokens": tokens})
}

// ToolCall records a tool invocation.
func (r *Recorder) ToolCall(tool string, args map[string]any) *Event {
	if args == nil {
		args = map[string]any{}
	}
	return r.Event(EventToolCall, map[string]any{"tool": tool, "args": args})
}

// ToolResult records a tool's return value.
func (r *Recorder) ToolResult(tool string, result any) *Event {
	return r.Event(EventToolResult, map[string]any{"tool": tool, "result": result})
}

// Decision records a branch the agent took.
func (r *Recorder) Decision(description, choice string) *Event {
	return r.Event(EventDecision, map[string]any{"description": description, "choice": choice})
}

// StateChange records a mutation of agent state.
func (r *Recorder) StateChange(key string, old, new any) *Event {
	return r.Event(EventStateChange, map[string]any{"key": key, "old": old, "new": new})
}

// Log records a free-form log line.
func (r *Recorder) Log(message, level string) *Event {
	if level == "" {
		level = "info"
	}
	return r.Event(EventLog, map[string]any{"message": message, "level": level})
}

// Error records a failure observed during the run.
func (r *Recorder) Error(message, exception string) *Event {
	return r.Event(EventError, map[string]any{"message": message, "exception": exception})
}

// Finish closes the trace (and any still-open spans) and, when an output
// path was configured, saves it.
func (r *Recorder) Finish() (*model.Trace, error) {
	r.trace.Close()
	if r.outputPath != "" {
		if err := storage.Save(r.trace, r.outputPath); err != nil {
			return r.trace, err
		}
		r.logger.Debug("trace saved", "trace_id", r.trace.TraceID, "path", r.outputPath)
	}
	return r.trace, nil
}

// Load reads a persisted trace from a JSONL file.
func Load(path string) (*Trace, error) { return storage.Load(path) }

// Save writes a trace to a JSONL file atomically.
func Save(tr *Trace, path string) error { return storage.Save(tr, path) }

// NewReplay builds a replay engine over a trace.
func NewReplay(tr *Trace) *replay.Engine { return replay.New(tr) }

// ReplayFile loads a trace and builds a replay engine over it.
func ReplayFile(path string) (*replay.Engine, error) { return replay.FromFile(path) }

// Diff compares two traces and reports their divergences.
func Diff(a, b *Trace) *diff.Result { return diff.Traces(a, b) }
