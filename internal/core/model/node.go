package model

// NodeType is the fixed vocabulary of knowledge-graph node kinds.
type NodeType string

const (
	NodeTicket     NodeType = "Ticket"
	NodeTechnician NodeType = "Technician"
	NodeCategory   NodeType = "Category"
	NodeRootCause  NodeType = "RootCause"
	NodeAsset      NodeType = "Asset"
	NodeStep       NodeType = "Step"
	NodeClient     NodeType = "Client"
	NodeImpact     NodeType = "Impact"
)

type Node struct {
	ID    string         `json:"id"`
	Type  NodeType       `json:"type"`
	Label string         `json:"label"`
	Meta  map[string]any `json:"meta"`
}
