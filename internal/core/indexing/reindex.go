package indexing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/ticketkg/internal/llm"
	"github.com/agenthands/ticketkg/internal/search"
	"github.com/agenthands/ticketkg/internal/ticket"
)

const (
	DefaultDimension   = 1024
	DefaultChunkSize   = 200
	DefaultConcurrency = 4
)

// Reindexer embeds tickets and bulk loads them into an index. With a nil
// Embedder documents are indexed without vectors and the mapping carries no
// vector field.
type Reindexer struct {
	Index       search.Indexer
	Embedder    llm.EmbedderClient
	VectorField string
	ChunkSize   int
	Concurrency int
	Logger      *slog.Logger
}

// Run creates the index if needed and loads every ticket. Per-ticket
// embedding failures and per-chunk bulk failures are counted, not fatal.
func (r *Reindexer) Run(ctx context.Context, tickets []ticket.Ticket) (search.BulkResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var result search.BulkResult
	if len(tickets) == 0 {
		logger.Info("no tickets to index")
		return result, nil
	}

	dim := r.probeDimension(ctx, tickets[0], logger)
	if err := r.Index.EnsureIndex(ctx, dim); err != nil {
		return result, fmt.Errorf("ensure index: %w", err)
	}

	vectors, err := r.embedAll(ctx, tickets, logger)
	if err != nil {
		return result, err
	}

	field := r.VectorField
	if field == "" {
		field = "embedding"
	}
	docs := make([]search.BulkDoc, len(tickets))
	for i, t := range tickets {
		body := StructureTicket(t)
		if vec := vectors[i]; len(vec) > 0 && dim > 0 {
			body[field] = fitDimension(vec, dim)
		}
		docs[i] = search.BulkDoc{ID: docID(t), Body: body}
	}

	chunk := r.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	for start := 0; start < len(docs); start += chunk {
		end := min(start+chunk, len(docs))
		res, err := r.Index.Bulk(ctx, docs[start:end])
		if err != nil {
			logger.Error("bulk chunk failed", "from", start, "to", end, "error", err)
			result.Failed += end - start
			continue
		}
		result.Succeeded += res.Succeeded
		result.Failed += res.Failed
	}

	if err := r.Index.Refresh(ctx); err != nil {
		logger.Warn("refresh after reindex failed", "error", err)
	}
	logger.Info("reindex complete", "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

func (r *Reindexer) probeDimension(ctx context.Context, sample ticket.Ticket, logger *slog.Logger) int {
	if r.Embedder == nil {
		return 0
	}
	vec, err := r.Embedder.Embed(ctx, EmbedText(sample))
	if err != nil || len(vec) == 0 {
		logger.Warn("sample embedding unavailable, using default dimension", "dimension", DefaultDimension, "error", err)
		return DefaultDimension
	}
	logger.Info("embedding dimension detected", "dimension", len(vec))
	return len(vec)
}

func (r *Reindexer) embedAll(ctx context.Context, tickets []ticket.Ticket, logger *slog.Logger) ([][]float32, error) {
	vectors := make([][]float32, len(tickets))
	if r.Embedder == nil {
		return vectors, nil
	}

	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, t := range tickets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vec, err := r.Embedder.Embed(gctx, EmbedText(t))
			if err != nil {
				logger.Warn("embedding failed, indexing without vector", "ticket", t.DisplayID(), "error", err)
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embed tickets: %w", err)
	}
	return vectors, nil
}

// fitDimension pads with zeros or truncates vec to dim.
func fitDimension(vec []float32, dim int) []float32 {
	out := make([]float32, dim)
	copy(out, vec)
	return out
}

func docID(t ticket.Ticket) string {
	if id := t.FirstString("ticketId", "displayId"); id != "" {
		return id
	}
	return uuid.NewString()
}
