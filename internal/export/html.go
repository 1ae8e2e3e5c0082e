package export

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/ashita-ai/kiroku/internal/model"
)

// eventColors is the per-type palette used by the HTML timeline.
var eventColors = map[model.EventType]string{
	model.EventLLMRequest:  "#06b6d4",
	model.EventLLMResponse: "#22c55e",
	model.EventToolCall:    "#eab308",
	model.EventToolResult:  "#3b82f6",
	model.EventDecision:    "#a855f7",
	model.EventStateChange: "#6b7280",
	model.EventError:       "#ef4444",
	model.EventLog:         "#9ca3af",
}

type htmlEvent struct {
	Color    template.CSS
	Label    string
	SpanName string
	Time     string
	Data     string
}

type htmlPage struct {
	Name     string
	TraceID  string
	Spans    int
	Events   int
	Duration string
	Items    []htmlEvent
}

var htmlTmpl = template.Must(template.New("timeline").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Agent Trace: {{.Name}}</title>
<style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body { font-family: 'SF Mono', 'Fira Code', monospace; background: #0d1117; color: #c9d1d9; padding: 2rem; }
    h1 { color: #58a6ff; margin-bottom: 0.5rem; }
    .meta { color: #8b949e; margin-bottom: 2rem; font-size: 0.9rem; }
    .event { background: #161b22; border-radius: 6px; padding: 1rem; margin-bottom: 0.75rem; }
    .event-header { display: flex; gap: 1rem; align-items: center; margin-bottom: 0.5rem; }
    .event-type { font-weight: bold; font-size: 0.85rem; }
    .event-span { color: #e3b341; font-size: 0.8rem; }
    .event-time { color: #8b949e; font-size: 0.8rem; margin-left: auto; }
    .event-data { color: #8b949e; font-size: 0.8rem; white-space: pre-wrap; max-height: 200px; overflow-y: auto; }
</style>
</head>
<body>
    <h1>{{.Name}}</h1>
    <div class="meta">
        ID: {{.TraceID}} | Spans: {{.Spans}} | Events: {{.Events}} | Duration: {{.Duration}}
    </div>
{{- range .Items}}
    <div class="event" style="border-left: 4px solid {{.Color}};">
        <div class="event-header">
            <span class="event-type" style="color: {{.Color}};">{{.Label}}</span>
            <span class="event-span">{{.SpanName}}</span>
            <span class="event-time">{{.Time}}</span>
        </div>
        <pre class="event-data">{{.Data}}</pre>
    </div>
{{- end}}
</body>
</html>
`))

// HTML writes the trace as a self-contained HTML timeline. Events appear in
// span-storage order, matching the recorded structure rather than the
// replay tape.
func HTML(tr *model.Trace, w io.Writer) error {
	page := htmlPage{
		Name:     tr.Name,
		TraceID:  tr.TraceID,
		Spans:    len(tr.Spans),
		Events:   tr.EventCount(),
		Duration: "running",
	}
	if d, ok := tr.Duration(); ok {
		page.Duration = fmt.Sprintf("%.3fs", d)
	}

	for _, s := range tr.Spans {
		for _, e := range s.Events {
			color, ok := eventColors[e.EventType]
			if !ok {
				color = "#6b7280"
			}
			data, err := json.MarshalIndent(e.Data, "", "  ")
			if err != nil {
				data = []byte(fmt.Sprint(e.Data))
			}
			ts := time.Unix(0, int64(e.Timestamp*1e9))
			page.Items = append(page.Items, htmlEvent{
				Color:    template.CSS(color),
				Label:    e.EventType.Label(),
				SpanName: s.Name,
				Time:     ts.Format("15:04:05.000"),
				Data:     string(data),
			})
		}
	}

	if err := htmlTmpl.Execute(w, page); err != nil {
		return fmt.Errorf("export: render html: %w", err)
	}
	return nil
}
