// Package core ties the ticket store to the derived views served over HTTP:
// the knowledge graph, the local search index, ticket clusters and the
// optional graph export.
package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/agenthands/ticketkg/internal/core/community"
	"github.com/agenthands/ticketkg/internal/core/indexing"
	"github.com/agenthands/ticketkg/internal/core/kg"
	"github.com/agenthands/ticketkg/internal/core/model"
	"github.com/agenthands/ticketkg/internal/search"
	"github.com/agenthands/ticketkg/internal/store"
	"github.com/agenthands/ticketkg/internal/ticket"
)

var ErrNotFound = errors.New("not found")

// Retriever ranks past tickets against free text.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]model.Hit, error)
}

// Suggester proposes resolution steps for a new ticket.
type Suggester interface {
	Suggest(ctx context.Context, t ticket.Ticket, topK int) (model.Suggestion, error)
}

// Exporter mirrors a built graph into an external graph database.
type Exporter interface {
	Export(ctx context.Context, g model.Graph) error
}

type Options struct {
	Store     *store.Store
	Retriever Retriever
	Suggester Suggester
	Detector  community.CommunityDetector

	// LocalIndex, when set, is rebuilt on every reload through Reindexer
	// into a staging index that replaces it only when the rebuild succeeds.
	LocalIndex *search.Memory
	Reindexer  *indexing.Reindexer

	Exporter Exporter
	Logger   *slog.Logger
}

type KnowledgeBase struct {
	store     *store.Store
	graph     *kg.Cache
	retriever Retriever
	suggester Suggester
	detector  community.CommunityDetector
	local     *search.Memory
	reindexer *indexing.Reindexer
	exporter  Exporter
	logger    *slog.Logger
}

// RefreshResult is the outcome of a reload: the store status plus the size
// of the rebuilt graph.
type RefreshResult struct {
	store.Status
	Nodes     int        `json:"kg_nodes"`
	Edges     int        `json:"kg_edges"`
	LastBuilt *time.Time `json:"kg_last_built"`
}

func New(opts Options) *KnowledgeBase {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	detector := opts.Detector
	if detector == nil {
		detector = community.NewLabelPropagationDetector()
	}
	kb := &KnowledgeBase{
		store:     opts.Store,
		graph:     kg.NewCache(),
		retriever: opts.Retriever,
		suggester: opts.Suggester,
		detector:  detector,
		local:     opts.LocalIndex,
		reindexer: opts.Reindexer,
		exporter:  opts.Exporter,
		logger:    logger,
	}
	opts.Store.Subscribe(kb.onReload)
	return kb
}

func (kb *KnowledgeBase) onReload(ctx context.Context, tickets []ticket.Ticket) {
	// A reload runs to completion even when the request that started it is
	// gone.
	ctx = context.WithoutCancel(ctx)

	g := kb.graph.Rebuild(tickets)
	kb.logger.Info("knowledge graph rebuilt", "nodes", len(g.Nodes), "edges", len(g.Edges))

	if kb.local != nil && kb.reindexer != nil {
		kb.rebuildLocalIndex(ctx, tickets)
	}

	if kb.exporter != nil {
		if err := kb.exporter.Export(ctx, g); err != nil {
			kb.logger.Error("graph export failed", "error", err)
		}
	}
}

// invalidator is implemented by retrievers that cache results.
type invalidator interface {
	Invalidate()
}

// rebuildLocalIndex indexes tickets into a fresh index and swaps it in. On
// failure the previous index keeps serving.
func (kb *KnowledgeBase) rebuildLocalIndex(ctx context.Context, tickets []ticket.Ticket) {
	staging := search.NewMemory(kb.local.VectorField())
	r := *kb.reindexer
	r.Index = staging

	res, err := r.Run(ctx, tickets)
	if err != nil {
		kb.logger.Error("local index rebuild failed, keeping previous index", "error", err, "documents", kb.local.Len())
		return
	}
	kb.local.Replace(staging)
	if inv, ok := kb.retriever.(invalidator); ok {
		inv.Invalidate()
	}
	kb.logger.Info("local index replaced", "documents", res.Succeeded, "failed", res.Failed)
}

// Refresh reloads the store; the graph and local index follow through the
// reload subscription before Refresh returns. Cancelling ctx does not abort
// the reload.
func (kb *KnowledgeBase) Refresh(ctx context.Context) RefreshResult {
	st := kb.store.Reload(context.WithoutCancel(ctx))
	g := kb.graph.Snapshot()
	return RefreshResult{Status: st, Nodes: len(g.Nodes), Edges: len(g.Edges), LastBuilt: g.LastBuilt}
}

func (kb *KnowledgeBase) Status() store.Status { return kb.store.Status() }

func (kb *KnowledgeBase) Graph() model.Graph { return kb.graph.Snapshot() }

// Node returns a node with every edge touching it.
func (kb *KnowledgeBase) Node(id string) (model.Node, []model.Edge, error) {
	n, ok := kb.graph.FindNode(id)
	if !ok {
		return model.Node{}, nil, ErrNotFound
	}
	return n, kb.graph.FindEdges(id), nil
}

func (kb *KnowledgeBase) SearchNodes(query string, topK int) []model.Node {
	return kb.graph.SearchNodes(query, topK)
}

func (kb *KnowledgeBase) Clusters() ([]model.Cluster, error) {
	nodes, edges := kb.graph.Tickets()
	return kb.detector.Detect(nodes, edges)
}

func (kb *KnowledgeBase) Tickets() []ticket.Ticket { return kb.store.Tickets() }

func (kb *KnowledgeBase) Ticket(id string) (ticket.Ticket, error) {
	t, ok := kb.store.FindByID(id)
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (kb *KnowledgeBase) SearchTickets(query string, topK int) []ticket.Ticket {
	return kb.store.SearchByText(query, topK)
}

func (kb *KnowledgeBase) Similar(ctx context.Context, query string, topK int) ([]model.Hit, error) {
	return kb.retriever.Search(ctx, query, topK)
}

func (kb *KnowledgeBase) Suggest(ctx context.Context, t ticket.Ticket, topK int) (model.Suggestion, error) {
	return kb.suggester.Suggest(ctx, t, topK)
}
