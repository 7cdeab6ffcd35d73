// Package telemetry installs the OpenTelemetry tracer provider. Finished
// spans are written to the structured log.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/agenthands/ticketkg/internal/config"
)

// NewTracerProvider returns a provider that samples cfg.SampleRatio of new
// traces and exports every finished span through exporter as soon as it
// ends.
func NewTracerProvider(cfg config.TracingConfig, exporter sdktrace.SpanExporter, logger *slog.Logger) *sdktrace.TracerProvider {
	name := cfg.ServiceName
	if name == "" {
		name = "ticketkg"
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(semconv.ServiceNameKey.String(name)))
	if err != nil {
		logger.Warn("failed to create resource, using default", "error", err)
		res = resource.Default()
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)
}

// LogExporter writes spans to a slog.Logger.
type LogExporter struct {
	logger *slog.Logger
}

func NewLogExporter(logger *slog.Logger) *LogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExporter{logger: logger}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		args := []any{
			"span", s.Name(),
			"trace_id", s.SpanContext().TraceID().String(),
			"span_id", s.SpanContext().SpanID().String(),
			"duration", s.EndTime().Sub(s.StartTime()),
			"status", s.Status().Code.String(),
		}
		if p := s.Parent(); p.IsValid() {
			args = append(args, "parent_id", p.SpanID().String())
		}
		if d := s.Status().Description; d != "" {
			args = append(args, "error", d)
		}
		if attrs := s.Attributes(); len(attrs) > 0 {
			args = append(args, slog.Group("attrs", attrArgs(attrs)...))
		}
		e.logger.InfoContext(ctx, "span", args...)
	}
	return nil
}

func (e *LogExporter) Shutdown(context.Context) error { return nil }

func attrArgs(attrs []attribute.KeyValue) []any {
	out := make([]any, 0, len(attrs))
	for _, kv := range attrs {
		out = append(out, slog.Any(string(kv.Key), kv.Value.AsInterface()))
	}
	return out
}
