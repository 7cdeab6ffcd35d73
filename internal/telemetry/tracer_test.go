package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/agenthands/ticketkg/internal/config"
)

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestLogExporter_WritesFinishedSpans(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	tp := NewTracerProvider(config.TracingConfig{ServiceName: "kg-test", SampleRatio: 1}, NewLogExporter(logger), logger)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := tp.Tracer("test")
	ctx, root := tracer.Start(context.Background(), "retrieval.Search")
	_, child := tracer.Start(ctx, "retrieval.knn")
	child.SetAttributes(attribute.Int("hits", 0))
	child.RecordError(errors.New("index unavailable"))
	child.SetStatus(codes.Error, "index unavailable")
	child.End()
	root.End()

	recs := records(t, &buf)
	require.Len(t, recs, 2)

	knn, search := recs[0], recs[1]
	assert.Equal(t, "retrieval.knn", knn["span"])
	assert.Equal(t, "Error", knn["status"])
	assert.Equal(t, "index unavailable", knn["error"])
	assert.Equal(t, map[string]any{"hits": float64(0)}, knn["attrs"])
	assert.Equal(t, search["span_id"], knn["parent_id"])
	assert.Equal(t, search["trace_id"], knn["trace_id"])

	assert.Equal(t, "retrieval.Search", search["span"])
	assert.Equal(t, "Unset", search["status"])
	assert.NotContains(t, search, "parent_id")
}

func TestNewTracerProvider_ZeroRatioSamplesNothing(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	tp := NewTracerProvider(config.TracingConfig{SampleRatio: 0}, NewLogExporter(logger), logger)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "retrieval.Search")
	span.End()

	assert.Empty(t, buf.String())
}
