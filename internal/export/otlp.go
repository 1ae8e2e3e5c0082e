package export

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/kiroku/internal/model"
)

// OTLPConfig configures the OTLP trace bridge.
type OTLPConfig struct {
	Endpoint    string // host:port of the OTLP HTTP receiver
	Insecure    bool
	ServiceName string
}

// OTLP replays a recorded trace into an OpenTelemetry collector. Each span
// becomes an OTel span with its recorded start/end timestamps, nested under
// its parent where one exists; events become OTel span events. Kiroku's own
// span and event ids travel as attributes since OTel assigns fresh ids.
//
// The bridge uses a private tracer provider and flushes it before
// returning; it never touches the global OTel state.
func OTLP(ctx context.Context, tr *model.Trace, cfg OTLPConfig) error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("export: otlp endpoint not configured")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "kiroku"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
		),
	)
	if err != nil {
		return fmt.Errorf("export: create resource: %w", err)
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("export: create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	tracer := tp.Tracer("github.com/ashita-ai/kiroku")

	rootCtx, root := tracer.Start(ctx, tr.Name,
		oteltrace.WithTimestamp(toTime(tr.StartTime)),
		oteltrace.WithAttributes(
			attribute.String("kiroku.trace_id", tr.TraceID),
			attribute.Int("kiroku.event_count", tr.EventCount()),
		),
	)

	// Spans nest by parent_id reference; emit each one under its parent's
	// context, falling back to the root for orphans.
	ctxs := map[string]context.Context{}
	visiting := map[string]bool{}
	var emit func(s *model.Span) context.Context
	emit = func(s *model.Span) context.Context {
		if c, ok := ctxs[s.SpanID]; ok {
			return c
		}
		parent := rootCtx
		// visiting breaks parent_id cycles; a span caught in one is
		// emitted under the root.
		if s.ParentID != nil && !visiting[s.SpanID] {
			visiting[s.SpanID] = true
			if ps, ok := tr.Span(*s.ParentID); ok && ps.SpanID != s.SpanID {
				parent = emit(ps)
			}
			delete(visiting, s.SpanID)
			// The recursion may already have emitted this span as part
			// of a cycle.
			if c, ok := ctxs[s.SpanID]; ok {
				return c
			}
		}

		spanCtx, span := tracer.Start(parent, s.Name,
			oteltrace.WithTimestamp(toTime(s.StartTime)),
			oteltrace.WithAttributes(attrsFromMap("kiroku.meta.", s.Metadata,
				attribute.String("kiroku.span_id", s.SpanID))...),
		)
		for _, e := range s.Events {
			span.AddEvent(string(e.EventType),
				oteltrace.WithTimestamp(toTime(e.Timestamp)),
				oteltrace.WithAttributes(attrsFromMap("", e.Data,
					attribute.String("kiroku.event_id", e.ID))...),
			)
		}
		end := s.StartTime
		if s.EndTime != nil {
			end = *s.EndTime
		}
		span.End(oteltrace.WithTimestamp(toTime(end)))

		ctxs[s.SpanID] = spanCtx
		return spanCtx
	}
	for _, s := range tr.Spans {
		emit(s)
	}

	rootEnd := tr.StartTime
	if tr.EndTime != nil {
		rootEnd = *tr.EndTime
	}
	root.End(oteltrace.WithTimestamp(toTime(rootEnd)))
	return nil
}

func toTime(ts float64) time.Time {
	return time.Unix(0, int64(ts*1e9))
}

// attrsFromMap flattens a payload map into OTel attributes, prefixing keys
// and stringifying anything without a native attribute type.
func attrsFromMap(prefix string, m map[string]any, extra ...attribute.KeyValue) []attribute.KeyValue {
	attrs := extra
	for k, v := range m {
		key := prefix + k
		switch tv := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(key, tv))
		case bool:
			attrs = append(attrs, attribute.Bool(key, tv))
		case int:
			attrs = append(attrs, attribute.Int(key, tv))
		case int64:
			attrs = append(attrs, attribute.Int64(key, tv))
		case float64:
			attrs = append(attrs, attribute.Float64(key, tv))
		default:
			attrs = append(attrs, attribute.String(key, fmt.Sprint(tv)))
		}
	}
	return attrs
}
