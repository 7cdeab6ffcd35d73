// Package app wires configuration into the running components shared by
// the server and the reindex command.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/opensearchserverless"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/agenthands/ticketkg/internal/blob"
	"github.com/agenthands/ticketkg/internal/cache"
	"github.com/agenthands/ticketkg/internal/config"
	"github.com/agenthands/ticketkg/internal/core"
	"github.com/agenthands/ticketkg/internal/core/community"
	"github.com/agenthands/ticketkg/internal/core/indexing"
	"github.com/agenthands/ticketkg/internal/core/model"
	"github.com/agenthands/ticketkg/internal/core/summary"
	"github.com/agenthands/ticketkg/internal/driver"
	"github.com/agenthands/ticketkg/internal/llm"
	"github.com/agenthands/ticketkg/internal/retrieval"
	"github.com/agenthands/ticketkg/internal/search"
	"github.com/agenthands/ticketkg/internal/store"
	"github.com/agenthands/ticketkg/internal/telemetry"
)

// LoadConfig reads path over the defaults and applies environment
// overrides. A missing file is not an error.
func LoadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("config file not found, using defaults", "path", path)
		cfg, err = config.Defaults(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if cfg.LLM.Region == "" {
		cfg.LLM.Region = cfg.Store.Region
	}
	return cfg, nil
}

// NewLogger returns a text logger at the level named by LOG_LEVEL.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func AWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// NewBackend returns the configured search backend. For the memory backend
// the second result is the same index, which the caller must populate.
func NewBackend(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (search.Backend, *search.Memory, error) {
	if cfg.Search.Backend != "opensearch" {
		mem := search.NewMemory(cfg.Search.VectorField)
		return mem, mem, nil
	}

	opts := search.EndpointOptions{
		Host:    cfg.Search.Host,
		Region:  cfg.Region(),
		Service: cfg.Search.Service,
		Collections: func(region string) search.CollectionGetter {
			c := awsCfg.Copy()
			c.Region = region
			return opensearchserverless.NewFromConfig(c)
		},
	}
	if v, ok := cfg.ServerlessMode(); ok {
		opts.Serverless = &v
	}
	ep, err := search.ResolveEndpoint(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	signing := awsCfg.Copy()
	if ep.Region != "" {
		signing.Region = ep.Region
	}
	client, err := search.NewOpenSearch(search.OpenSearchOptions{
		Endpoint:    ep,
		Port:        cfg.Search.Port,
		Index:       cfg.Search.Index,
		VectorField: cfg.Search.VectorField,
		AWS:         &signing,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, nil, nil
}

// NewEmbedder returns the embedding collaborator, or nil when none is
// configured or it cannot be built.
func NewEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) llm.EmbedderClient {
	emb, err := llm.NewEmbedder(ctx, cfg, logger)
	if err != nil {
		logger.Warn("embeddings disabled", "error", err)
		return nil
	}
	if emb == nil {
		return nil
	}
	return emb
}

func newResultCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Cache[[]model.Hit], func() error) {
	if cfg.Cache.RedisURL != "" {
		client, err := cache.DialRedis(ctx, cfg.Cache.RedisURL)
		if err == nil {
			return cache.NewRedis[[]model.Hit](client, "ticketkg:hits:", cfg.Cache.TTL.Duration, logger), client.Close
		}
		logger.Warn("redis unavailable, using in-process cache", "error", err)
	}
	return cache.NewLRU[[]model.Hit](cfg.Cache.Size, cfg.Cache.TTL.Duration), nil
}

type App struct {
	Config *config.Config
	Store  *store.Store
	KB     *core.KnowledgeBase
	// Tracer is nil unless tracing is enabled.
	Tracer *sdktrace.TracerProvider

	closers []func(context.Context) error
}

// New builds every component described by cfg. Optional collaborators that
// fail to start (Redis, Memgraph, embeddings, the LLM) are logged and left
// out rather than failing startup.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg}

	if cfg.Tracing.Enabled {
		a.Tracer = telemetry.NewTracerProvider(cfg.Tracing, telemetry.NewLogExporter(logger), logger)
		otel.SetTracerProvider(a.Tracer)
		a.closers = append(a.closers, a.Tracer.Shutdown)
		logger.Info("tracing enabled", "service", cfg.Tracing.ServiceName, "sample_ratio", cfg.Tracing.SampleRatio)
	}

	awsCfg, err := AWSConfig(ctx, cfg.Region())
	if err != nil {
		return nil, err
	}

	storeOpts := store.Options{
		Bucket:    cfg.Store.S3Bucket,
		Key:       cfg.Store.S3Key,
		LocalPath: cfg.Store.LocalPath,
		Logger:    logger,
	}
	if cfg.Store.S3Bucket != "" {
		storeOpts.Remote = blob.NewS3Fetcher(awsCfg)
	}
	a.Store = store.New(storeOpts)

	backend, local, err := NewBackend(ctx, cfg, awsCfg)
	if err != nil {
		return nil, fmt.Errorf("search backend: %w", err)
	}

	var embedder llm.EmbedderClient
	if cfg.VectorEnabled() {
		embedder = NewEmbedder(ctx, cfg, logger)
	}

	hits, closeCache := newResultCache(ctx, cfg, logger)
	if closeCache != nil {
		a.closers = append(a.closers, func(context.Context) error { return closeCache() })
	}
	engineOpts := retrieval.Options{
		Index:       backend,
		Embedder:    embedder,
		Vector:      embedder != nil,
		VectorField: cfg.Search.VectorField,
		Cache:       hits,
		Logger:      logger,
	}
	if a.Tracer != nil {
		engineOpts.TracerProvider = a.Tracer
	}
	engine := retrieval.NewEngine(engineOpts)

	llmClient, _, err := llm.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		logger.Warn("llm disabled, suggestions will be synthesized", "error", err)
		llmClient = nil
	}

	opts := core.Options{
		Store:     a.Store,
		Retriever: engine,
		Suggester: summary.NewSuggester(engine, llmClient, cfg.Summary, logger),
		Detector:  community.NewDetector(cfg.Graph.ClusterMethod),
		Logger:    logger,
	}
	if local != nil {
		opts.LocalIndex = local
		opts.Reindexer = &indexing.Reindexer{
			Index:       local,
			Embedder:    embedder,
			VectorField: cfg.Search.VectorField,
			ChunkSize:   cfg.Concurrency.BulkChunk,
			Concurrency: cfg.Concurrency.BulkIngest,
			Logger:      logger,
		}
	}
	if cfg.Memgraph.Export && cfg.Memgraph.URI != "" {
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, logger)
		if err != nil {
			logger.Warn("memgraph export disabled", "error", err)
		} else {
			opts.Exporter = newExporter(ctx, d, logger)
			a.closers = append(a.closers, d.Close)
		}
	}

	a.KB = core.New(opts)
	return a, nil
}

// newExporter prepares the export target. Index creation failures are
// logged; exports still run without the indices.
func newExporter(ctx context.Context, d driver.GraphDriver, logger *slog.Logger) *driver.Exporter {
	if err := d.BuildIndices(ctx); err != nil {
		logger.Warn("memgraph index creation failed", "error", err)
	}
	return driver.NewExporter(d, logger)
}

// Close releases resources in reverse order of acquisition, so the tracer
// provider flushes last.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i](ctx)
	}
}
