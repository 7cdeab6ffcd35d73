// Package driver mirrors the in-memory ticket graph into a Bolt-compatible
// graph database (Memgraph or Neo4j) for ad-hoc Cypher exploration.
package driver

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphDriver runs Cypher against the export target.
type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error)
	// BuildIndices creates the lookup indices used by exported graphs.
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}
