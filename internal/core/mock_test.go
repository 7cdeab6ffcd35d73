package core

import (
	"context"
	"errors"

	"github.com/agenthands/ticketkg/internal/core/model"
	"github.com/agenthands/ticketkg/internal/ticket"
)

type MockFetcher struct {
	Tickets []ticket.Ticket
	Err     error
}

func (m *MockFetcher) FetchTickets(context.Context, string, string) ([]ticket.Ticket, error) {
	return m.Tickets, m.Err
}

type MockExporter struct {
	Graphs []model.Graph
	Err    error
}

func (m *MockExporter) Export(_ context.Context, g model.Graph) error {
	m.Graphs = append(m.Graphs, g)
	return m.Err
}

type MockRetriever struct {
	Hits []model.Hit
}

func (m *MockRetriever) Search(_ context.Context, query string, _ int) ([]model.Hit, error) {
	if query == "" {
		return nil, errors.New("empty query")
	}
	return m.Hits, nil
}

type MockSuggester struct {
	Got ticket.Ticket
}

func (m *MockSuggester) Suggest(_ context.Context, t ticket.Ticket, _ int) (model.Suggestion, error) {
	m.Got = t
	return model.Suggestion{RecommendedSteps: []model.RecommendedStep{{Step: "Reboot"}}}, nil
}
