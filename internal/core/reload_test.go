package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/ticketkg/internal/core/indexing"
	"github.com/agenthands/ticketkg/internal/core/model"
	"github.com/agenthands/ticketkg/internal/retrieval"
	"github.com/agenthands/ticketkg/internal/search"
	"github.com/agenthands/ticketkg/internal/store"
	"github.com/agenthands/ticketkg/internal/ticket"
)

// gatedEmbedder blocks every call while a gate is installed.
type gatedEmbedder struct {
	mu      sync.Mutex
	gate    chan struct{}
	entered chan struct{}
}

func (g *gatedEmbedder) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate = make(chan struct{})
	g.entered = make(chan struct{}, 1)
}

func (g *gatedEmbedder) open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gate != nil {
		close(g.gate)
	}
	g.gate = nil
}

func (g *gatedEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	g.mu.Lock()
	gate, entered := g.gate, g.entered
	g.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []float32{1, 0}, nil
}

type reloadFixture struct {
	kb       *KnowledgeBase
	fetcher  *MockFetcher
	local    *search.Memory
	embedder *gatedEmbedder
}

func newReloadFixture(t *testing.T) *reloadFixture {
	t.Helper()
	f := &reloadFixture{
		fetcher:  &MockFetcher{Tickets: printerTickets()},
		local:    search.NewMemory("embedding"),
		embedder: &gatedEmbedder{},
	}
	st := store.New(store.Options{Bucket: "kb", Key: "tickets.json", Remote: f.fetcher, Logger: quiet()})
	engine := retrieval.NewEngine(retrieval.Options{Index: f.local, Logger: quiet()})
	f.kb = New(Options{
		Store:      st,
		Retriever:  engine,
		LocalIndex: f.local,
		Reindexer:  &indexing.Reindexer{Index: f.local, Embedder: f.embedder, Logger: quiet()},
		Logger:     quiet(),
	})
	return f
}

func withVPNDropTicket() []ticket.Ticket {
	return append(printerTickets(), ticket.Ticket{"ticketId": "4", "displayId": "INC-4", "subject": "VPN drops every hour"})
}

func hitIDs(hits []model.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.TicketID
	}
	return out
}

func waitEntered(t *testing.T, g *gatedEmbedder) {
	t.Helper()
	g.mu.Lock()
	entered := g.entered
	g.mu.Unlock()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("reindex never reached the embedder")
	}
}

func TestRefresh_SearchDuringRebuildSeesPreviousIndex(t *testing.T) {
	f := newReloadFixture(t)
	ctx := context.Background()
	f.kb.Refresh(ctx)
	require.Equal(t, 3, f.local.Len())

	f.fetcher.Tickets = withVPNDropTicket()
	f.embedder.close()
	done := make(chan RefreshResult)
	go func() { done <- f.kb.Refresh(ctx) }()
	waitEntered(t, f.embedder)

	hits, err := f.kb.Similar(ctx, "VPN", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, hitIDs(hits))
	assert.Equal(t, 3, f.local.Len())

	f.embedder.open()
	res := <-done
	assert.Equal(t, 4, res.Count)
	assert.Equal(t, 4, f.local.Len())

	// results cached during the rebuild are not served afterwards
	hits, err = f.kb.Similar(ctx, "VPN", 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"3", "4"}, hitIDs(hits))
}

func TestRefresh_CanceledCallerStillCompletes(t *testing.T) {
	f := newReloadFixture(t)
	f.kb.Refresh(context.Background())

	f.fetcher.Tickets = withVPNDropTicket()
	f.embedder.close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan RefreshResult)
	go func() { done <- f.kb.Refresh(ctx) }()
	waitEntered(t, f.embedder)

	cancel()
	f.embedder.open()
	res := <-done

	assert.Equal(t, 4, res.Count)
	assert.Equal(t, 4, f.local.Len())
	hits, err := f.kb.Similar(context.Background(), "VPN drops", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "4", hits[0].TicketID)
}

func TestRebuildLocalIndex_FailureKeepsPreviousIndex(t *testing.T) {
	f := newReloadFixture(t)
	f.kb.Refresh(context.Background())
	require.Equal(t, 3, f.local.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.kb.rebuildLocalIndex(ctx, withVPNDropTicket())

	assert.Equal(t, 3, f.local.Len())
	hits, err := f.kb.Similar(context.Background(), "printer jam", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}
