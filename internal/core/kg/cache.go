package kg

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agenthands/ticketkg/internal/core/model"
	"github.com/agenthands/ticketkg/internal/ticket"
)

// Cache holds the latest built graph. Rebuild computes a new graph outside the
// lock and swaps it in; readers receive copies and never see a partial build.
type Cache struct {
	mu        sync.RWMutex
	nodes     []model.Node
	edges     []model.Edge
	byID      map[string]int
	lastBuilt *time.Time
	now       func() time.Time
}

func NewCache() *Cache {
	return &Cache{byID: map[string]int{}, now: time.Now}
}

// Rebuild replaces the cached graph with one built from tickets.
func (c *Cache) Rebuild(tickets []ticket.Ticket) model.Graph {
	nodes, edges := Build(tickets)
	byID := make(map[string]int, len(nodes))
	for i, n := range nodes {
		byID[n.ID] = i
	}
	built := c.now().UTC()

	c.mu.Lock()
	c.nodes, c.edges, c.byID, c.lastBuilt = nodes, edges, byID, &built
	c.mu.Unlock()

	return model.Graph{Nodes: nodes, Edges: edges, LastBuilt: &built}
}

// Snapshot returns a copy of the current graph.
func (c *Cache) Snapshot() model.Graph {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g := model.Graph{
		Nodes: append([]model.Node(nil), c.nodes...),
		Edges: append([]model.Edge(nil), c.edges...),
	}
	if c.lastBuilt != nil {
		t := *c.lastBuilt
		g.LastBuilt = &t
	}
	if g.Nodes == nil {
		g.Nodes = []model.Node{}
	}
	if g.Edges == nil {
		g.Edges = []model.Edge{}
	}
	return g
}

// FindNode returns the node with id, or false.
func (c *Cache) FindNode(id string) (model.Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return model.Node{}, false
	}
	return c.nodes[i], true
}

// FindEdges returns every edge touching id in either direction.
func (c *Cache) FindEdges(id string) []model.Edge {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := []model.Edge{}
	for _, e := range c.edges {
		if e.Source == id || e.Target == id {
			out = append(out, e)
		}
	}
	return out
}

const (
	labelMatchWeight = 10
	metaMatchWeight  = 3
)

// SearchNodes ranks nodes by case-insensitive substring matches on the label
// and on the JSON form of meta. Ties keep insertion order.
func (c *Cache) SearchNodes(query string, topK int) []model.Node {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || topK <= 0 {
		return []model.Node{}
	}
	c.mu.RLock()
	nodes := c.nodes
	c.mu.RUnlock()

	type scored struct {
		node  model.Node
		score int
	}
	var hits []scored
	for _, n := range nodes {
		score := 0
		if strings.Contains(strings.ToLower(n.Label), q) {
			score += labelMatchWeight
		}
		if raw, err := json.Marshal(n.Meta); err == nil && strings.Contains(strings.ToLower(string(raw)), q) {
			score += metaMatchWeight
		}
		if score > 0 {
			hits = append(hits, scored{node: n, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]model.Node, len(hits))
	for i, h := range hits {
		out[i] = h.node
	}
	return out
}

// Tickets returns every Ticket node paired with the similarity edges between
// them, the input used for cluster detection.
func (c *Cache) Tickets() ([]model.Node, []model.Edge) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var nodes []model.Node
	for _, n := range c.nodes {
		if n.Type == model.NodeTicket {
			nodes = append(nodes, n)
		}
	}
	var edges []model.Edge
	for _, e := range c.edges {
		if e.Type == model.EdgeSimilarTo {
			edges = append(edges, e)
		}
	}
	return nodes, edges
}
