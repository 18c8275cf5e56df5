package models

// NodeKind is the tagged discriminant of a node. Every kind is handled
// exhaustively by the validator and the engine.
type NodeKind string

const (
	NodeKindTrigger   NodeKind = "trigger"
	NodeKindCondition NodeKind = "condition"
	NodeKindAction    NodeKind = "action"
)

// Built-in node types. The registry is the source of truth; these constants
// exist so the engine and tests never spell a registry key by hand.
const (
	NodeTypeInactivityTrigger     = "trigger:inactivity"
	NodeTypeConditionSubscription = "condition:has_active_subscription"
	NodeTypeConditionTag          = "condition:has_tag"
	NodeTypeActionEmail           = "action:send_email"
	NodeTypeActionSMS             = "action:send_sms"
	NodeTypeActionPush            = "action:send_push"
	NodeTypeActionDiscount        = "action:apply_discount"
	NodeTypeActionCall            = "action:schedule_call"
)

// Position is the editor's canvas placement. Cosmetic only; round-tripped
// byte-for-byte, never interpreted server-side.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a vertex of the flow graph. Type must be registered for Kind and
// Config must validate against that type's schema.
type Node struct {
	ID       string         `json:"id"       validate:"required"`
	Kind     NodeKind       `json:"kind"     validate:"required"`
	Type     string         `json:"type"     validate:"required"`
	Config   map[string]any `json:"config"`
	Position Position       `json:"position"`
}

func (n *Node) IsTrigger() bool {
	return n.Kind == NodeKindTrigger
}

func (n *Node) IsCondition() bool {
	return n.Kind == NodeKindCondition
}

func (n *Node) IsAction() bool {
	return n.Kind == NodeKindAction
}
