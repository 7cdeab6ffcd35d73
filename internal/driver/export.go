package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/agenthands/ticketkg/internal/core/model"
)

const DefaultBatchSize = 500

// Exporter mirrors a built graph into Memgraph, replacing whatever an earlier
// export wrote. Node metadata is stored as a JSON string property.
type Exporter struct {
	Driver    GraphDriver
	BatchSize int
	Logger    *slog.Logger
}

func NewExporter(d GraphDriver, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{Driver: d, BatchSize: DefaultBatchSize, Logger: logger}
}

func (e *Exporter) Export(ctx context.Context, g model.Graph) error {
	if _, err := e.Driver.ExecuteQuery(ctx, ClearGraphQuery, nil); err != nil {
		return fmt.Errorf("clear graph: %w", err)
	}

	nodes := make([]any, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		meta, err := json.Marshal(n.Meta)
		if err != nil {
			return fmt.Errorf("encode meta of %s: %w", n.ID, err)
		}
		nodes = append(nodes, map[string]any{
			"id":    n.ID,
			"type":  string(n.Type),
			"label": n.Label,
			"meta":  string(meta),
		})
	}
	if err := e.batched(ctx, SaveNodesQuery, "nodes", nodes); err != nil {
		return fmt.Errorf("save nodes: %w", err)
	}

	var order []model.EdgeType
	byType := make(map[model.EdgeType][]any)
	for _, edge := range g.Edges {
		if _, ok := byType[edge.Type]; !ok {
			order = append(order, edge.Type)
		}
		byType[edge.Type] = append(byType[edge.Type], map[string]any{
			"source": edge.Source,
			"target": edge.Target,
			"weight": edge.Weight,
		})
	}
	for _, t := range order {
		if err := e.batched(ctx, SaveEdgesQuery(t), "edges", byType[t]); err != nil {
			return fmt.Errorf("save %s edges: %w", t, err)
		}
	}

	e.Logger.Info("graph exported", "nodes", len(g.Nodes), "edges", len(g.Edges))
	return nil
}

func (e *Exporter) batched(ctx context.Context, query, param string, rows []any) error {
	size := e.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		if _, err := e.Driver.ExecuteQuery(ctx, query, map[string]any{param: rows[start:end]}); err != nil {
			return err
		}
	}
	return nil
}
