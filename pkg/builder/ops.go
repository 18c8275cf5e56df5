package builder

import "github.com/fideliza/fideliza/pkg/models"

// Op is one editor mutation. Exactly one field is set.
type Op struct {
	AddNode          *AddNodeOp          `json:"add_node,omitempty"`
	RemoveNode       *RemoveNodeOp       `json:"remove_node,omitempty"`
	Connect          *ConnectOp          `json:"connect,omitempty"`
	Disconnect       *DisconnectOp       `json:"disconnect,omitempty"`
	UpdateNodeConfig *UpdateNodeConfigOp `json:"update_node_config,omitempty"`
}

type AddNodeOp struct {
	Kind     models.NodeKind `json:"kind"`
	Type     string          `json:"type"`
	Config   map[string]any  `json:"config"`
	Position models.Position `json:"position"`
}

// RemoveNodeOp cascades: incident edges are removed with the node.
type RemoveNodeOp struct {
	NodeID string `json:"node_id"`
}

type ConnectOp struct {
	SourceID     string  `json:"source_id"`
	TargetID     string  `json:"target_id"`
	SourceHandle *string `json:"source_handle,omitempty"`
	TargetHandle *string `json:"target_handle,omitempty"`
}

type DisconnectOp struct {
	EdgeID string `json:"edge_id"`
}

type UpdateNodeConfigOp struct {
	NodeID  string         `json:"node_id"`
	Partial map[string]any `json:"partial"`
}
