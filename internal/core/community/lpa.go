package community

import (
	"github.com/agenthands/ticketkg/internal/core/model"
)

// LabelPropagationDetector implements community detection using Label Propagation Algorithm (LPA).
type LabelPropagationDetector struct {
	MaxIterations int
}

func NewLabelPropagationDetector() *LabelPropagationDetector {
	return &LabelPropagationDetector{
		MaxIterations: 20,
	}
}

// Detect runs label propagation weighted by similarity score. Nodes are
// visited in id order; a node keeps its label when it is among the heaviest,
// otherwise it takes the lexicographically largest heaviest label.
func (d *LabelPropagationDetector) Detect(nodes []model.Node, edges []model.Edge) ([]model.Cluster, error) {
	if len(nodes) == 0 {
		return []model.Cluster{}, nil
	}
	g := newGraph(nodes, edges)

	labels := make(map[string]string, len(g.ids))
	for _, id := range g.ids {
		labels[id] = id
	}

	for iter := 0; iter < d.MaxIterations; iter++ {
		changed := 0
		for _, u := range g.ids {
			if len(g.adj[u]) == 0 {
				continue
			}

			weights := make(map[string]float64)
			for v, w := range g.adj[u] {
				weights[labels[v]] += w
			}

			best, bestWeight := "", 0.0
			for label, w := range weights {
				if w > bestWeight || (w == bestWeight && label > best) {
					best, bestWeight = label, w
				}
			}
			if weights[labels[u]] == bestWeight {
				continue
			}
			labels[u] = best
			changed++
		}
		if changed == 0 {
			break
		}
	}

	groups := make(map[string][]string)
	for _, id := range g.ids {
		groups[labels[id]] = append(groups[labels[id]], id)
	}
	return g.clusters(groups), nil
}
