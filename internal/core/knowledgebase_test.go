package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/ticketkg/internal/core/indexing"
	"github.com/agenthands/ticketkg/internal/core/kg"
	"github.com/agenthands/ticketkg/internal/core/model"
	"github.com/agenthands/ticketkg/internal/search"
	"github.com/agenthands/ticketkg/internal/store"
	"github.com/agenthands/ticketkg/internal/ticket"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func printerTickets() []ticket.Ticket {
	return []ticket.Ticket{
		{"ticketId": "1", "displayId": "INC-1", "subject": "Printer jam on floor 3", "technician": "Ana",
			"resolutionSteps": []any{"Clear paper tray", "Restart printer"}},
		{"ticketId": "2", "displayId": "INC-2", "subject": "Printer jam again", "technician": "Ana",
			"resolutionSteps": []any{"Clear paper tray"}},
		{"ticketId": "3", "displayId": "INC-3", "subject": "VPN not connecting"},
	}
}

type fixture struct {
	kb       *KnowledgeBase
	fetcher  *MockFetcher
	exporter *MockExporter
	local    *search.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		fetcher:  &MockFetcher{Tickets: printerTickets()},
		exporter: &MockExporter{},
		local:    search.NewMemory("embedding"),
	}
	st := store.New(store.Options{Bucket: "kb", Key: "tickets.json", Remote: f.fetcher, Logger: quiet()})
	f.kb = New(Options{
		Store:      st,
		Retriever:  &MockRetriever{Hits: []model.Hit{{DisplayID: "INC-1"}}},
		Suggester:  &MockSuggester{},
		LocalIndex: f.local,
		Reindexer:  &indexing.Reindexer{Index: f.local, Logger: quiet()},
		Exporter:   f.exporter,
		Logger:     quiet(),
	})
	return f
}

func TestRefresh_RebuildsDerivedViews(t *testing.T) {
	f := newFixture(t)

	res := f.kb.Refresh(context.Background())

	assert.Equal(t, 3, res.Count)
	assert.Equal(t, "s3://kb/tickets.json", res.Source)
	g := f.kb.Graph()
	assert.Equal(t, len(g.Nodes), res.Nodes)
	assert.Equal(t, len(g.Edges), res.Edges)
	require.NotNil(t, res.LastBuilt)
	assert.Equal(t, 3, f.local.Len())
	require.Len(t, f.exporter.Graphs, 1)
	assert.Len(t, f.exporter.Graphs[0].Nodes, res.Nodes)
}

func TestRefresh_ReplacesLocalIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.kb.Refresh(ctx)

	f.fetcher.Tickets = printerTickets()[:1]
	res := f.kb.Refresh(ctx)

	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 1, f.local.Len())
	assert.Len(t, f.exporter.Graphs, 2)
}

func TestRefresh_ExportFailureIsAbsorbed(t *testing.T) {
	f := newFixture(t)
	f.exporter.Err = errors.New("memgraph down")

	res := f.kb.Refresh(context.Background())
	assert.Equal(t, 3, res.Count)
	assert.NotEmpty(t, f.kb.Graph().Nodes)
}

func TestRefresh_StoreFailureGivesEmptyGraph(t *testing.T) {
	f := newFixture(t)
	f.fetcher.Err = errors.New("access denied")

	res := f.kb.Refresh(context.Background())
	assert.Equal(t, 0, res.Count)
	assert.Contains(t, res.Source, "s3-error:")
	assert.Empty(t, f.kb.Graph().Nodes)
	assert.NotNil(t, f.kb.Graph().Nodes)
}

func TestNode(t *testing.T) {
	f := newFixture(t)
	f.kb.Refresh(context.Background())

	id := kg.MakeID("ticket", "1")
	n, edges, err := f.kb.Node(id)
	require.NoError(t, err)
	assert.Equal(t, model.NodeTicket, n.Type)
	assert.Equal(t, "INC-1", n.Label)
	assert.NotEmpty(t, edges)
	for _, e := range edges {
		assert.True(t, e.Source == id || e.Target == id)
	}

	_, _, err = f.kb.Node("ticket:nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchNodesAndTickets(t *testing.T) {
	f := newFixture(t)
	f.kb.Refresh(context.Background())

	nodes := f.kb.SearchNodes("printer", 20)
	require.NotEmpty(t, nodes)
	assert.Equal(t, model.NodeStep, nodes[0].Type)
	assert.Equal(t, "Restart printer", nodes[0].Label)

	found := f.kb.SearchTickets("vpn", 10)
	require.Len(t, found, 1)
	assert.Equal(t, "3", found[0].ID())

	tk, err := f.kb.Ticket("inc-2")
	require.NoError(t, err)
	assert.Equal(t, "2", tk.ID())
	_, err = f.kb.Ticket("INC-404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, f.kb.Tickets(), 3)
}

func TestClusters(t *testing.T) {
	f := newFixture(t)
	f.kb.Refresh(context.Background())

	clusters, err := f.kb.Clusters()
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.ElementsMatch(t, []string{kg.MakeID("ticket", "1"), kg.MakeID("ticket", "2")}, clusters[0].Tickets)
}

func TestSimilarAndSuggest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hits, err := f.kb.Similar(ctx, "printer", 3)
	require.NoError(t, err)
	assert.Equal(t, "INC-1", hits[0].DisplayID)

	out, err := f.kb.Suggest(ctx, ticket.Ticket{"subject": "jam"}, 3)
	require.NoError(t, err)
	assert.Equal(t, "Reboot", out.RecommendedSteps[0].Step)
}
