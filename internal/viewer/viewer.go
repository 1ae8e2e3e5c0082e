// Package viewer renders traces, replay steps, and diff results as plain
// text for the terminal.
package viewer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ashita-ai/kiroku/internal/diff"
	"github.com/ashita-ai/kiroku/internal/model"
	"github.com/ashita-ai/kiroku/internal/replay"
)

// Viewer writes human-readable renderings to w.
type Viewer struct {
	w io.Writer
}

// New creates a viewer writing to w.
func New(w io.Writer) *Viewer {
	return &Viewer{w: w}
}

// ShowInfo prints a one-screen summary of a trace.
func (v *Viewer) ShowInfo(tr *model.Trace) {
	fmt.Fprintf(v.w, "%s (%s)\n", tr.Name, tr.TraceID)
	fmt.Fprintf(v.w, "  Spans:    %d\n", len(tr.Spans))
	fmt.Fprintf(v.w, "  Events:   %d\n", tr.EventCount())
	if d, ok := tr.Duration(); ok {
		fmt.Fprintf(v.w, "  Duration: %.3fs\n", d)
	} else {
		fmt.Fprintf(v.w, "  Duration: N/A\n")
	}
	fmt.Fprintf(v.w, "  Metadata: %v\n", tr.Metadata)
}

// ShowTrace prints the full trace: header, then each span with its events.
func (v *Viewer) ShowTrace(tr *model.Trace) {
	fmt.Fprintf(v.w, "=== Agent Trace: %s ===\n", tr.Name)
	fmt.Fprintf(v.w, "ID: %s\n", tr.TraceID)
	fmt.Fprintf(v.w, "Spans: %d | Events: %d\n", len(tr.Spans), tr.EventCount())
	if d, ok := tr.Duration(); ok {
		fmt.Fprintf(v.w, "Duration: %.3fs\n", d)
	} else {
		fmt.Fprintf(v.w, "Duration: running\n")
	}

	for _, s := range tr.Spans {
		v.showSpan(s)
	}
}

func (v *Viewer) showSpan(s *model.Span) {
	if d, ok := s.Duration(); ok {
		fmt.Fprintf(v.w, "\n>>> %s (%.3fs)\n", s.Name, d)
	} else {
		fmt.Fprintf(v.w, "\n>>> %s\n", s.Name)
	}
	for _, e := range s.Events {
		fmt.Fprintf(v.w, "  %-13s %s\n", e.EventType.Label(), eventSummary(e))
	}
}

// eventSummary renders the payload fields an operator cares about for each
// event kind, previews truncated.
func eventSummary(e *model.Event) string {
	data := e.Data
	switch e.EventType {
	case model.EventLLMRequest:
		msgs := 0
		if m, ok := data["messages"].([]any); ok {
			msgs = len(m)
		}
		return fmt.Sprintf("model=%v messages=%d", data["model"], msgs)
	case model.EventLLMResponse:
		content, _ := data["content"].(string)
		out := fmt.Sprintf("%q", preview(content, 80))
		if tokens, ok := data["tokens"]; ok && tokens != nil {
			out += fmt.Sprintf(" (%v tokens)", tokens)
		}
		return out
	case model.EventToolCall:
		return fmt.Sprintf("%v(%v)", data["tool"], data["args"])
	case model.EventToolResult:
		return fmt.Sprintf("%v -> %s", data["tool"], preview(fmt.Sprint(data["result"]), 60))
	case model.EventDecision:
		return fmt.Sprintf("%v -> %v", data["description"], data["choice"])
	case model.EventError:
		return fmt.Sprint(data["message"])
	default:
		if msg, ok := data["message"]; ok {
			return fmt.Sprint(msg)
		}
		return preview(fmt.Sprint(data), 80)
	}
}

func preview(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

// ShowTree prints the span hierarchy, reconstructed from parent_id
// references via an on-demand index.
func (v *Viewer) ShowTree(tr *model.Trace) {
	fmt.Fprintf(v.w, "%s (%s)\n", tr.Name, tr.TraceID)

	children := map[string][]*model.Span{}
	var roots []*model.Span
	for _, s := range tr.Spans {
		if s.ParentID == nil {
			roots = append(roots, s)
			continue
		}
		if _, ok := tr.Span(*s.ParentID); !ok {
			// Orphaned parent reference; show at top level.
			roots = append(roots, s)
			continue
		}
		children[*s.ParentID] = append(children[*s.ParentID], s)
	}

	visited := map[string]bool{}
	var walk func(s *model.Span, depth int)
	walk = func(s *model.Span, depth int) {
		if visited[s.SpanID] {
			return
		}
		visited[s.SpanID] = true
		indent := strings.Repeat("  ", depth+1)
		if d, ok := s.Duration(); ok {
			fmt.Fprintf(v.w, "%s%s [%.3fs]\n", indent, s.Name, d)
		} else {
			fmt.Fprintf(v.w, "%s%s\n", indent, s.Name)
		}
		for _, e := range s.Events {
			fmt.Fprintf(v.w, "%s  - %s\n", indent, e.EventType)
		}
		for _, c := range children[s.SpanID] {
			walk(c, depth+1)
		}
	}
	for _, s := range roots {
		walk(s, 0)
	}
	// Spans caught in a parent_id cycle are reachable from no root; show
	// them at top level like orphans rather than dropping them.
	for _, s := range tr.Spans {
		if !visited[s.SpanID] {
			walk(s, 0)
		}
	}
}

// ShowStep prints the tape entry under the replay cursor.
func (v *Viewer) ShowStep(e *replay.Engine) {
	step, ok := e.Peek()
	if !ok {
		fmt.Fprintln(v.w, "End of trace")
		return
	}
	fmt.Fprintf(v.w, "[%d/%d] %s %s %s\n",
		e.Position()+1, e.TotalSteps(),
		step.Span.Name, step.Event.EventType.Label(), eventSummary(step.Event))
}

// ShowDiff prints a diff result with a divergence table.
func (v *Viewer) ShowDiff(r *diff.Result) {
	fmt.Fprintf(v.w, "Trace A: %s\n", r.TraceAID)
	fmt.Fprintf(v.w, "Trace B: %s\n", r.TraceBID)
	fmt.Fprintf(v.w, "%s\n", r.Summary)
	if len(r.Divergences) == 0 {
		return
	}

	fmt.Fprintln(v.w)
	tw := tabwriter.NewWriter(v.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSEVERITY\tPOSITION\tDESCRIPTION")
	for i, d := range r.Divergences {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", i+1, strings.ToUpper(string(d.Severity)), d.Position, d.Description)
	}
	tw.Flush()
}
