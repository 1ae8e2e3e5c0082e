// Package export renders traces to external formats: a single indented JSON
// document, a self-contained HTML timeline, and an OTLP bridge that replays
// a recorded trace into an OpenTelemetry collector.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ashita-ai/kiroku/internal/model"
)

// JSON writes the trace as one indented JSON document.
func JSON(tr *model.Trace, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tr); err != nil {
		return fmt.Errorf("export: encode json: %w", err)
	}
	return nil
}
