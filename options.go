package kiroku

import "log/slog"

// Option configures a Recorder.
type Option func(*resolvedOptions)

// resolvedOptions holds all settings after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	metadata   map[string]any
	outputPath string
	logger     *slog.Logger
}

// WithMetadata attaches trace-level metadata to the recording.
func WithMetadata(md map[string]any) Option {
	return func(o *resolvedOptions) { o.metadata = md }
}

// WithOutputPath makes Finish save the trace to the given JSONL path.
func WithOutputPath(path string) Option {
	return func(o *resolvedOptions) { o.outputPath = path }
}

// WithLogger sets the structured logger for the Recorder.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}
