// Package testutil provides graph fixtures shared across test suites.
package testutil

import (
	"time"

	"github.com/fideliza/fideliza/pkg/models"
)

// FlowBuilder assembles workflow fixtures without repeating struct literals
// in every test.
type FlowBuilder struct {
	workflow *models.Workflow
}

func NewFlow(id, name string) *FlowBuilder {
	now := time.Now().UTC()

	return &FlowBuilder{
		workflow: &models.Workflow{
			ID:        id,
			Name:      name,
			Status:    models.WorkflowStatusDraft,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func (b *FlowBuilder) Status(status models.WorkflowStatus) *FlowBuilder {
	b.workflow.Status = status

	return b
}

func (b *FlowBuilder) Node(id string, kind models.NodeKind, nodeType string, config map[string]any) *FlowBuilder {
	b.workflow.Nodes = append(b.workflow.Nodes, &models.Node{
		ID:     id,
		Kind:   kind,
		Type:   nodeType,
		Config: config,
	})

	return b
}

func (b *FlowBuilder) Trigger(id string, days int) *FlowBuilder {
	return b.Node(id, models.NodeKindTrigger, models.NodeTypeInactivityTrigger,
		map[string]any{"days": days})
}

func (b *FlowBuilder) SubscriptionCondition(id string) *FlowBuilder {
	return b.Node(id, models.NodeKindCondition, models.NodeTypeConditionSubscription, nil)
}

func (b *FlowBuilder) TagCondition(id, tag string) *FlowBuilder {
	return b.Node(id, models.NodeKindCondition, models.NodeTypeConditionTag,
		map[string]any{"tag": tag})
}

func (b *FlowBuilder) EmailAction(id, template string) *FlowBuilder {
	return b.Node(id, models.NodeKindAction, models.NodeTypeActionEmail,
		map[string]any{"template": template})
}

func (b *FlowBuilder) SMSAction(id, message string) *FlowBuilder {
	return b.Node(id, models.NodeKindAction, models.NodeTypeActionSMS,
		map[string]any{"message": message})
}

// Edge adds an edge with the classification derived from the handle, the way
// the builder would have created it.
func (b *FlowBuilder) Edge(id, sourceID, targetID string, sourceHandle *string) *FlowBuilder {
	b.workflow.Edges = append(b.workflow.Edges, &models.Edge{
		ID:             id,
		SourceID:       sourceID,
		TargetID:       targetID,
		SourceHandle:   sourceHandle,
		Classification: models.ClassifyHandle(sourceHandle),
	})

	return b
}

func (b *FlowBuilder) DirectEdge(id, sourceID, targetID string) *FlowBuilder {
	return b.Edge(id, sourceID, targetID, nil)
}

func (b *FlowBuilder) ConditionalEdge(id, sourceID, targetID string) *FlowBuilder {
	return b.Edge(id, sourceID, targetID, Handle(models.HandleConditional))
}

func (b *FlowBuilder) ErrorEdge(id, sourceID, targetID string) *FlowBuilder {
	return b.Edge(id, sourceID, targetID, Handle(models.HandleError))
}

func (b *FlowBuilder) DelayEdge(id, sourceID, targetID string) *FlowBuilder {
	return b.Edge(id, sourceID, targetID, Handle(models.HandleDelay))
}

func (b *FlowBuilder) Build() *models.Workflow {
	return b.workflow
}

// Handle returns a pointer for the edge handle literals tests pass around.
func Handle(s string) *string {
	return &s
}
