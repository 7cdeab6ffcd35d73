// Package retrieval ranks historical tickets against a free-text query.
// It prefers semantic nearest neighbours, then a boosted hybrid text query,
// and always has a lexical fallback.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agenthands/ticketkg/internal/cache"
	"github.com/agenthands/ticketkg/internal/core/model"
	"github.com/agenthands/ticketkg/internal/llm"
	"github.com/agenthands/ticketkg/internal/search"
	"github.com/agenthands/ticketkg/internal/ticket"
)

// ErrEmptyQuery is returned when Search is called without query text.
var ErrEmptyQuery = errors.New("query text is required")

const DefaultTopK = 3

type Options struct {
	Index       search.Searcher
	Embedder    llm.EmbedderClient // nil disables vector search
	Vector      bool
	VectorField string
	// Cache memoizes final results per (query, topK, vector). Entries
	// written before the last Invalidate are never served again.
	Cache cache.Cache[[]model.Hit]
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
	Logger         *slog.Logger
}

type Engine struct {
	index       search.Searcher
	embedder    llm.EmbedderClient
	vector      bool
	vectorField string
	cache       cache.Cache[[]model.Hit]
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
	generation  atomic.Uint64
}

func NewEngine(opts Options) *Engine {
	c := opts.Cache
	if c == nil {
		c = cache.NewLRU[[]model.Hit](1024, 0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	vf := opts.VectorField
	if vf == "" {
		vf = "embedding"
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Engine{
		index:       opts.Index,
		embedder:    opts.Embedder,
		vector:      opts.Vector && opts.Embedder != nil,
		vectorField: vf,
		cache:       c,
		logger:      logger,
		tracer:      tp.Tracer("github.com/agenthands/ticketkg/internal/retrieval"),
		now:         time.Now,
	}
}

// VectorEnabled reports whether the kNN and hybrid stages run.
func (e *Engine) VectorEnabled() bool { return e.vector }

// Invalidate retires every cached result. Call it after the index content
// changes.
func (e *Engine) Invalidate() { e.generation.Add(1) }

// Search returns up to topK hits for query. Collaborator failures degrade
// to the next stage and finally to an empty list; only an empty query is an
// error.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]model.Hit, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	key := fmt.Sprintf("%d|%s|%d|%t", e.generation.Load(), q, topK, e.vector)
	if hits, ok := e.cache.Get(ctx, key); ok {
		return hits, nil
	}

	ctx, span := e.tracer.Start(ctx, "retrieval.Search", trace.WithAttributes(
		attribute.Int("top_k", topK),
		attribute.Bool("vector", e.vector),
	))
	defer span.End()

	terms := Expand(q, MaxTerms)

	if e.vector {
		vec, err := e.embedder.Embed(ctx, q)
		if err != nil {
			e.logger.Debug("no query embedding, using lexical retrieval", "error", err)
		}
		if err == nil && len(vec) > 0 {
			if hits, err := e.run(ctx, "knn", knnRequest(e.vectorField, vec, topK)); err == nil && len(hits) > 0 {
				span.SetAttributes(attribute.String("stage", "knn"))
				e.cache.Set(ctx, key, hits)
				return hits, nil
			}
			if hits, err := e.run(ctx, "hybrid", hybridRequest(q, terms, topK, e.now())); err == nil && len(hits) > 0 {
				span.SetAttributes(attribute.String("stage", "hybrid"))
				e.cache.Set(ctx, key, hits)
				return hits, nil
			}
		}
	}

	hits, err := e.run(ctx, "lexical", lexicalRequest(q, terms, topK))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return []model.Hit{}, nil
	}
	span.SetAttributes(attribute.String("stage", "lexical"))
	e.cache.Set(ctx, key, hits)
	return hits, nil
}

func (e *Engine) run(ctx context.Context, stage string, req search.Request) ([]model.Hit, error) {
	ctx, span := e.tracer.Start(ctx, "retrieval."+stage)
	defer span.End()

	resp, err := e.index.Search(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("retrieval stage failed", "stage", stage, "error", err)
		return nil, err
	}

	hits := make([]model.Hit, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		hit, err := formatHit(h)
		if err != nil {
			e.logger.Warn("skipping undecodable hit", "id", h.ID, "error", err)
			continue
		}
		hits = append(hits, hit)
	}
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, nil
}

func formatHit(h search.Hit) (model.Hit, error) {
	var src ticket.Ticket
	if len(h.Source) > 0 {
		if err := json.Unmarshal(h.Source, &src); err != nil {
			return model.Hit{}, err
		}
	}

	matched := []string{}
	for field, fragments := range h.Highlight {
		if len(fragments) > 0 {
			matched = append(matched, field)
		}
	}
	sort.Strings(matched)

	return model.Hit{
		Score:           h.Score,
		TicketID:        src.String("ticketId"),
		DisplayID:       src.String("displayId"),
		Subject:         src.String("subject"),
		Requester:       person(src, "requester_name", "requester"),
		Technician:      person(src, "technician_name", "technician"),
		Status:          src.String("status"),
		Priority:        src.String("priority"),
		ResolutionSteps: ticket.Strings(src.List("resolutionSteps")),
		MatchedFields:   matched,
	}, nil
}

// person reads a flattened name field, falling back to a raw field that may
// hold either a name or an object with one.
func person(src ticket.Ticket, flat, raw string) string {
	if s := src.FirstString(flat, raw); s != "" {
		return s
	}
	return src.Name(raw)
}
