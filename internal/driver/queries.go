package driver

import (
	"fmt"
	"strings"

	"github.com/agenthands/ticketkg/internal/core/model"
)

var IndexQueries = []string{
	"CREATE INDEX ON :KGNode(id);",
	"CREATE INDEX ON :KGNode(type);",
}

const (
	ClearGraphQuery = `MATCH (n:KGNode) DETACH DELETE n`

	SaveNodesQuery = `
		UNWIND $nodes AS node
		MERGE (n:KGNode {id: node.id})
		SET n.type = node.type,
			n.label = node.label,
			n.meta = node.meta
	`

	CountNodesQuery = `MATCH (n:KGNode) RETURN count(n) AS count`
)

// SaveEdgesQuery creates edges of one type. Relationship types cannot be
// query parameters, so the type is rendered into the query from the fixed
// edge vocabulary.
func SaveEdgesQuery(t model.EdgeType) string {
	return fmt.Sprintf(`
		UNWIND $edges AS edge
		MATCH (s:KGNode {id: edge.source})
		MATCH (t:KGNode {id: edge.target})
		CREATE (s)-[:%s {weight: edge.weight}]->(t)
	`, RelationshipType(t))
}

// RelationshipType maps an edge type to its Cypher relationship name, e.g.
// similar_to becomes SIMILAR_TO. Unknown types become RELATED.
func RelationshipType(t model.EdgeType) string {
	switch t {
	case model.EdgeResolved, model.EdgeCategory, model.EdgeRootCause, model.EdgeAsset,
		model.EdgeStep, model.EdgeClientSite, model.EdgeImpact, model.EdgeSimilarTo:
		return strings.ToUpper(string(t))
	}
	return "RELATED"
}
