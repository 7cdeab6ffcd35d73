package model

// EdgeType names a directed relationship between two nodes.
type EdgeType string

const (
	EdgeResolved   EdgeType = "resolved"    // Technician -> Ticket
	EdgeCategory   EdgeType = "category"    // Ticket -> Category
	EdgeRootCause  EdgeType = "root_cause"  // Ticket -> RootCause
	EdgeAsset      EdgeType = "asset"       // Ticket -> Asset
	EdgeStep       EdgeType = "step"        // Ticket -> Step
	EdgeClientSite EdgeType = "client_site" // Ticket -> Client
	EdgeImpact     EdgeType = "impact"      // Ticket -> Impact
	EdgeSimilarTo  EdgeType = "similar_to"  // Ticket <-> Ticket, added in both directions
)

type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`
	Weight float64  `json:"weight"`
}
