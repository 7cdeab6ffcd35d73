// Command reindex loads the ticket collection into the configured search
// index, computing embeddings when a model is configured.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/agenthands/ticketkg/internal/app"
	"github.com/agenthands/ticketkg/internal/blob"
	"github.com/agenthands/ticketkg/internal/core/indexing"
	"github.com/agenthands/ticketkg/internal/llm"
	"github.com/agenthands/ticketkg/internal/store"
)

func main() {
	var (
		cfgPath      = flag.String("config", "config/config.toml", "path to the TOML config file")
		chunkSize    = flag.Int("chunk-size", 0, "documents per bulk request (default from config)")
		noEmbeddings = flag.Bool("no-embeddings", false, "index without vectors")
		dryRun       = flag.Bool("dry-run", false, "load tickets and report without writing to the index")
	)
	flag.Parse()

	logger := app.NewLogger()
	_ = godotenv.Load()

	cfg, err := app.LoadConfig(*cfgPath, logger)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Search.Backend != "opensearch" {
		logger.Error("reindex needs search.backend = \"opensearch\" (or OPENSEARCH_HOST)")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := app.AWSConfig(ctx, cfg.Region())
	if err != nil {
		logger.Error("aws configuration", "error", err)
		os.Exit(1)
	}

	opts := store.Options{Bucket: cfg.Store.S3Bucket, Key: cfg.Store.S3Key, LocalPath: cfg.Store.LocalPath, Logger: logger}
	if cfg.Store.S3Bucket != "" {
		opts.Remote = blob.NewS3Fetcher(awsCfg)
	}
	st := store.New(opts)
	status := st.Reload(ctx)
	if status.Count == 0 {
		logger.Info("no tickets found, exiting", "source", status.Source)
		return
	}

	var embedder llm.EmbedderClient
	if !*noEmbeddings {
		embedder = app.NewEmbedder(ctx, cfg, logger)
	}

	if *dryRun {
		fmt.Printf("would index %d tickets from %s into %q (embeddings: %t)\n", status.Count, status.Source, cfg.Search.Index, embedder != nil)
		return
	}

	backend, _, err := app.NewBackend(ctx, cfg, awsCfg)
	if err != nil {
		logger.Error("search backend", "error", err)
		os.Exit(1)
	}

	chunk := cfg.Concurrency.BulkChunk
	if *chunkSize > 0 {
		chunk = *chunkSize
	}
	r := &indexing.Reindexer{
		Index:       backend,
		Embedder:    embedder,
		VectorField: cfg.Search.VectorField,
		ChunkSize:   chunk,
		Concurrency: cfg.Concurrency.BulkIngest,
		Logger:      logger,
	}
	res, err := r.Run(ctx, st.Tickets())
	if err != nil {
		logger.Error("reindex failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("indexed %d tickets, %d failed\n", res.Succeeded, res.Failed)
	if res.Failed > 0 {
		os.Exit(1)
	}
}
