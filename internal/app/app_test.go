package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/agenthands/ticketkg/internal/cache"
	"github.com/agenthands/ticketkg/internal/config"
	"github.com/agenthands/ticketkg/internal/core/model"
	"github.com/agenthands/ticketkg/internal/search"
)

func testAWS() aws.Config {
	return aws.Config{Region: "us-east-1", Credentials: aws.AnonymousCredentials{}}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"), quiet())
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Search.Backend)
	assert.Equal(t, cfg.Store.Region, cfg.LLM.Region)
}

func TestLoadConfig_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport="), 0o644))
	_, err := LoadConfig(path, quiet())
	assert.Error(t, err)
}

func TestNewBackend_Memory(t *testing.T) {
	backend, local, err := NewBackend(context.Background(), config.Defaults(), testAWS())
	require.NoError(t, err)
	require.NotNil(t, local)
	assert.Same(t, local, backend.(*search.Memory))
}

func TestNewBackend_OpenSearch(t *testing.T) {
	cfg := config.Defaults()
	cfg.Search.Backend = "opensearch"
	cfg.Search.Host = "https://search-tickets.us-east-1.es.amazonaws.com"

	backend, local, err := NewBackend(context.Background(), cfg, testAWS())
	require.NoError(t, err)
	assert.Nil(t, local)
	assert.IsType(t, &search.OpenSearch{}, backend)
}

func TestNewResultCache(t *testing.T) {
	cfg := config.Defaults()
	c, closer := newResultCache(context.Background(), cfg, quiet())
	assert.IsType(t, &cache.LRU[[]model.Hit]{}, c)
	assert.Nil(t, closer)

	mr := miniredis.RunT(t)
	cfg.Cache.RedisURL = "redis://" + mr.Addr()
	c, closer = newResultCache(context.Background(), cfg, quiet())
	require.NotNil(t, closer)
	defer closer()
	assert.IsType(t, &cache.Redis[[]model.Hit]{}, c)

	cfg.Cache.RedisURL = "redis://127.0.0.1:1"
	_, closer = newResultCache(context.Background(), cfg, quiet())
	assert.Nil(t, closer)
}

func TestNew_LocalOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"ticketId": "1", "subject": "VPN not connecting", "resolutionSteps": ["Restart VPN client"]},
		{"ticketId": "2", "subject": "VPN not connecting again"}
	]`), 0o644))

	cfg := config.Defaults()
	cfg.Store.LocalPath = path
	cfg.Embedding.Model = ""
	a, err := New(context.Background(), cfg, quiet())
	require.NoError(t, err)
	defer a.Close(context.Background())

	res := a.KB.Refresh(context.Background())
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, path, res.Source)

	hits, err := a.KB.Similar(context.Background(), "VPN not connecting", 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "1", hits[0].TicketID)

	out, err := a.KB.Suggest(context.Background(), map[string]any{"subject": "VPN broken"}, 3)
	require.NoError(t, err)
	assert.True(t, out.Synthesized)
}

func TestNew_TracingEnabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"ticketId": "1", "subject": "VPN not connecting"}]`), 0o644))

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	cfg := config.Defaults()
	cfg.Store.LocalPath = path
	cfg.Embedding.Model = ""
	cfg.Tracing.Enabled = true

	a, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, a.Tracer)
	assert.Same(t, a.Tracer, otel.GetTracerProvider())

	a.KB.Refresh(context.Background())
	_, err = a.KB.Similar(context.Background(), "VPN not connecting", 3)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"span":"retrieval.lexical"`)
	assert.Contains(t, buf.String(), `"span":"retrieval.Search"`)

	a.Close(context.Background())
	buf.Reset()
	_, span := a.Tracer.Tracer("after-close").Start(context.Background(), "late")
	span.End()
	assert.NotContains(t, buf.String(), `"span":"late"`)
}

func TestNew_TracingDisabledLeavesGlobalProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	cfg := config.Defaults()
	cfg.Store.LocalPath = filepath.Join(t.TempDir(), "absent.json")
	cfg.Embedding.Model = ""

	a, err := New(context.Background(), cfg, quiet())
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Nil(t, a.Tracer)
	assert.Equal(t, prev, otel.GetTracerProvider())
}

type failingIndexDriver struct {
	indexErr error
}

func (d *failingIndexDriver) ExecuteQuery(context.Context, string, map[string]any) (neo4j.EagerResult, error) {
	return neo4j.EagerResult{}, nil
}

func (d *failingIndexDriver) BuildIndices(context.Context) error { return d.indexErr }

func (d *failingIndexDriver) Close(context.Context) error { return nil }

func TestNewExporter_LogsIndexFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	e := newExporter(context.Background(), &failingIndexDriver{indexErr: errors.New("permission denied")}, logger)

	require.NotNil(t, e)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"msg":"memgraph index creation failed"`)
	assert.Contains(t, buf.String(), `"error":"permission denied"`)

	buf.Reset()
	newExporter(context.Background(), &failingIndexDriver{}, logger)
	assert.Empty(t, buf.String())
}
