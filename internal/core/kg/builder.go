package kg

import (
	"github.com/agenthands/ticketkg/internal/core/extraction"
	"github.com/agenthands/ticketkg/internal/core/model"
	"github.com/agenthands/ticketkg/internal/core/similarity"
	"github.com/agenthands/ticketkg/internal/ticket"
)

const maxStepLabel = 140

// builder accumulates nodes (deduplicated by id, insertion ordered) and edges
// (not deduplicated) for one build.
type builder struct {
	nodes map[string]int
	order []model.Node
	edges []model.Edge
}

func (b *builder) addNode(id string, typ model.NodeType, label string, meta map[string]any) {
	if _, ok := b.nodes[id]; ok {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	b.nodes[id] = len(b.order)
	b.order = append(b.order, model.Node{ID: id, Type: typ, Label: label, Meta: meta})
}

func (b *builder) addEdge(src, dst string, typ model.EdgeType, weight float64) {
	b.edges = append(b.edges, model.Edge{Source: src, Target: dst, Type: typ, Weight: weight})
}

// Build derives the knowledge graph from a ticket list. It is a pure
// function of its input: node ids are content derived, so the same tickets
// always produce the same nodes. Tickets without any identifier are skipped.
func Build(tickets []ticket.Ticket) ([]model.Node, []model.Edge) {
	b := &builder{nodes: make(map[string]int)}

	// Ticket nodes first so relationships may reference any ticket.
	for _, t := range tickets {
		id := t.ID()
		if id == "" {
			continue
		}
		nodeID := MakeID("ticket", id)
		label := t.FirstString("displayId", "ticketId", "subject")
		if label == "" {
			label = nodeID
		}
		b.addNode(nodeID, model.NodeTicket, label, map[string]any{"ticket": map[string]any(t)})
	}

	for _, t := range tickets {
		id := t.ID()
		if id == "" {
			continue
		}
		b.addRelations(MakeID("ticket", id), t)
	}

	b.addSimilarity(tickets)

	return b.order, b.edges
}

func (b *builder) addRelations(ticketID string, t ticket.Ticket) {
	if ref, ok := extraction.Technician(t); ok {
		id := MakeID("technician", ref.ID)
		b.addNode(id, model.NodeTechnician, ref.Label, map[string]any{"raw": ref.Raw})
		b.addEdge(id, ticketID, model.EdgeResolved, 1.0)
	}

	if cat, ok := extraction.TicketCategory(t); ok {
		id := MakeID("category", cat.Key())
		meta := map[string]any{"category": cat.Category, "subcategory": nil}
		if cat.Subcategory != "" {
			meta["subcategory"] = cat.Subcategory
		}
		b.addNode(id, model.NodeCategory, cat.Label(), meta)
		b.addEdge(ticketID, id, model.EdgeCategory, 1.0)
	}

	if rc := extraction.RootCause(t); rc != "" {
		id := MakeID("rootcause", rc)
		b.addNode(id, model.NodeRootCause, rc, map[string]any{"raw": rc})
		b.addEdge(ticketID, id, model.EdgeRootCause, 1.0)
	}

	if ref, ok := extraction.Asset(t); ok {
		id := MakeID("asset", ref.ID)
		b.addNode(id, model.NodeAsset, ref.Label, map[string]any{"raw": ref.Raw})
		b.addEdge(ticketID, id, model.EdgeAsset, 1.0)
	}

	for _, step := range extraction.ExtractSteps(t) {
		id := MakeID("step", HashText(step))
		b.addNode(id, model.NodeStep, truncateLabel(step), map[string]any{"step": step})
		b.addEdge(ticketID, id, model.EdgeStep, 1.0)
	}

	if ref, ok := extraction.Client(t); ok {
		id := MakeID("client", ref.ID)
		b.addNode(id, model.NodeClient, ref.Label, nil)
		b.addEdge(ticketID, id, model.EdgeClientSite, 1.0)
	}

	if impact := extraction.Impact(t); impact != "" {
		id := MakeID("impact", impact)
		b.addNode(id, model.NodeImpact, impact, nil)
		b.addEdge(ticketID, id, model.EdgeImpact, 1.0)
	}
}

// addSimilarity links tickets from explicit hints and, independently, from
// subject token overlap. Both passes always run.
func (b *builder) addSimilarity(tickets []ticket.Ticket) {
	idMap := make(map[string]string)
	var subjects []similarity.Subject
	for _, t := range tickets {
		id := t.ID()
		if id == "" {
			continue
		}
		idMap[id] = MakeID("ticket", id)
		subjects = append(subjects, similarity.Subject{ID: id, Tokens: similarity.Tokens(t.String("subject"))})
	}

	for _, t := range tickets {
		id := t.ID()
		if id == "" {
			continue
		}
		src := idMap[id]
		for _, sid := range extraction.SimilarIDs(t) {
			dst, ok := idMap[sid]
			if !ok {
				continue
			}
			b.addEdge(src, dst, model.EdgeSimilarTo, 1.0)
			b.addEdge(dst, src, model.EdgeSimilarTo, 1.0)
		}
	}

	for _, p := range similarity.Pairs(subjects) {
		a, b2 := idMap[p.A], idMap[p.B]
		b.addEdge(a, b2, model.EdgeSimilarTo, p.Score)
		b.addEdge(b2, a, model.EdgeSimilarTo, p.Score)
	}
}

func truncateLabel(s string) string {
	r := []rune(s)
	if len(r) <= maxStepLabel {
		return s
	}
	return string(r[:maxStepLabel]) + "..."
}
