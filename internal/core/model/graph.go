package model

import "time"

// Graph is a built knowledge graph snapshot. LastBuilt is nil until the
// first build completes.
type Graph struct {
	Nodes     []Node     `json:"nodes"`
	Edges     []Edge     `json:"edges"`
	LastBuilt *time.Time `json:"last_built"`
}

// Cluster is a group of tickets connected by similarity edges.
type Cluster struct {
	ID      string   `json:"id"`
	Size    int      `json:"size"`
	Tickets []string `json:"tickets"`
	Labels  []string `json:"labels"`
}
