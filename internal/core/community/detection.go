// Package community groups tickets into clusters of mutually similar work
// using the similarity edges of the knowledge graph.
package community

import (
	"fmt"
	"sort"

	"github.com/agenthands/ticketkg/internal/core/model"
)

type CommunityDetector interface {
	Detect(nodes []model.Node, edges []model.Edge) ([]model.Cluster, error)
}

// NewDetector returns the detector for method: "components" for connected
// components, anything else for label propagation.
func NewDetector(method string) CommunityDetector {
	if method == "components" {
		return &ComponentsDetector{}
	}
	return NewLabelPropagationDetector()
}

// ComponentsDetector treats every connected component as a cluster.
type ComponentsDetector struct{}

func (d *ComponentsDetector) Detect(nodes []model.Node, edges []model.Edge) ([]model.Cluster, error) {
	g := newGraph(nodes, edges)
	visited := make(map[string]bool, len(g.ids))
	groups := make(map[string][]string)

	for _, start := range g.ids {
		if visited[start] {
			continue
		}
		visited[start] = true
		queue := []string{start}
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			groups[start] = append(groups[start], u)
			for _, v := range g.neighbors(u) {
				if !visited[v] {
					visited[v] = true
					queue = append(queue, v)
				}
			}
		}
	}
	return g.clusters(groups), nil
}

// graph is an undirected weighted view over the nodes it was built from.
// Edges touching unknown nodes and self loops are dropped.
type graph struct {
	ids    []string
	labels map[string]string
	adj    map[string]map[string]float64
}

func newGraph(nodes []model.Node, edges []model.Edge) *graph {
	g := &graph{labels: make(map[string]string, len(nodes)), adj: make(map[string]map[string]float64, len(nodes))}
	for _, n := range nodes {
		if _, dup := g.adj[n.ID]; dup {
			continue
		}
		g.ids = append(g.ids, n.ID)
		g.labels[n.ID] = n.Label
		g.adj[n.ID] = make(map[string]float64)
	}
	sort.Strings(g.ids)

	for _, e := range edges {
		if e.Source == e.Target {
			continue
		}
		if _, ok := g.adj[e.Source]; !ok {
			continue
		}
		if _, ok := g.adj[e.Target]; !ok {
			continue
		}
		w := e.Weight
		if w <= 0 {
			w = 1
		}
		g.adj[e.Source][e.Target] += w
		g.adj[e.Target][e.Source] += w
	}
	return g
}

// neighbors returns the neighbours of u in id order.
func (g *graph) neighbors(u string) []string {
	out := make([]string, 0, len(g.adj[u]))
	for v := range g.adj[u] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// clusters turns groups of node ids into clusters of at least two members,
// largest first, then by smallest member id.
func (g *graph) clusters(groups map[string][]string) []model.Cluster {
	var members [][]string
	for _, m := range groups {
		if len(m) < 2 {
			continue
		}
		sort.Strings(m)
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if len(members[i]) != len(members[j]) {
			return len(members[i]) > len(members[j])
		}
		return members[i][0] < members[j][0]
	})

	out := make([]model.Cluster, 0, len(members))
	for i, m := range members {
		labels := make([]string, len(m))
		for j, id := range m {
			labels[j] = g.labels[id]
		}
		out = append(out, model.Cluster{
			ID:      fmt.Sprintf("cluster-%d", i+1),
			Size:    len(m),
			Tickets: m,
			Labels:  labels,
		})
	}
	return out
}
