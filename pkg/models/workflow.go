// Package models defines the core domain models for retention-flow automation.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Validated, eligible for trigger evaluation
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Temporarily excluded from trigger evaluation
	WorkflowStatusArchived WorkflowStatus = "archived" // Soft-deleted; historical runs retained
)

// Workflow is the persisted flow document the editor round-trips. Editing an
// active workflow never mutates it in place: a new Version is written so
// in-flight runs keep executing against the version they started with.
type Workflow struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"    validate:"required,min=3"`
	Status    WorkflowStatus `json:"status"  validate:"required"`
	Version   int            `json:"version"`
	Nodes     []*Node        `json:"nodes"`
	Edges     []*Edge        `json:"edges"`
	ABTest    *ABTestConfig  `json:"ab_test,omitempty"`
	EditCount int            `json:"edit_count"` // Bumped by every builder mutation, checked at save time
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
}

// ABTestConfig is stored on the workflow and handed to the experimentation
// subsystem; the engine itself never interprets it.
type ABTestConfig struct {
	VariantName   string  `json:"variant_name"   validate:"required"`
	TrafficSplit  float64 `json:"traffic_split"  validate:"gte=0,lte=1"`
	SuccessMetric string  `json:"success_metric" validate:"required"`
}

// NodeByID returns the node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}

// EdgeByID returns the edge with the given id, or nil.
func (w *Workflow) EdgeByID(id string) *Edge {
	for _, e := range w.Edges {
		if e.ID == id {
			return e
		}
	}

	return nil
}

// OutgoingEdges returns the edges leaving the given node.
func (w *Workflow) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge

	for _, e := range w.Edges {
		if e.SourceID == nodeID {
			out = append(out, e)
		}
	}

	return out
}

// TriggerNodes returns every trigger node in the workflow.
func (w *Workflow) TriggerNodes() []*Node {
	var triggers []*Node

	for _, n := range w.Nodes {
		if n.Kind == NodeKindTrigger {
			triggers = append(triggers, n)
		}
	}

	return triggers
}

// Clone returns a deep copy. The builder mutates only clones so a failed
// validation leaves the caller's workflow untouched.
func (w *Workflow) Clone() *Workflow {
	clone := *w

	clone.Nodes = make([]*Node, len(w.Nodes))
	for i, n := range w.Nodes {
		nc := *n
		nc.Config = cloneConfig(n.Config)
		clone.Nodes[i] = &nc
	}

	clone.Edges = make([]*Edge, len(w.Edges))
	for i, e := range w.Edges {
		ec := *e
		clone.Edges[i] = &ec
	}

	if w.ABTest != nil {
		ab := *w.ABTest
		clone.ABTest = &ab
	}

	return &clone
}

func cloneConfig(config map[string]any) map[string]any {
	if config == nil {
		return nil
	}

	out := make(map[string]any, len(config))
	for k, v := range config {
		out[k] = v
	}

	return out
}
