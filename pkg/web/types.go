// Package web provides HTTP request and response types for the flow API.
package web

import (
	"time"

	"github.com/fideliza/fideliza/pkg/models"
)

// CreateWorkflowRequest represents the request body for creating a new flow.
// The document arrives complete; the editor owns node and edge placement.
type CreateWorkflowRequest struct {
	Name  string         `json:"name"  validate:"required,min=3"`
	Nodes []*models.Node `json:"nodes"`
	Edges []*models.Edge `json:"edges"`
}

// UpdateWorkflowRequest replaces the stored document. ExpectedVersion is the
// version the editor loaded; a stale editor receives a 409 and must refetch.
type UpdateWorkflowRequest struct {
	Name            string         `json:"name"             validate:"required,min=3"`
	Nodes           []*models.Node `json:"nodes"`
	Edges           []*models.Edge `json:"edges"`
	ExpectedVersion int            `json:"expected_version" validate:"required,min=1"`
}

// ABTestRequest attaches an experiment variant to a flow.
type ABTestRequest struct {
	VariantName   string  `json:"variant_name"   validate:"required"`
	TrafficSplit  float64 `json:"traffic_split"  validate:"gte=0,lte=1"`
	SuccessMetric string  `json:"success_metric" validate:"required"`
}

// CancelRunRequest carries the optional operator-supplied reason.
type CancelRunRequest struct {
	Reason string `json:"reason,omitempty"`
}

// WorkflowSummary is the listing row: enough for the flow index page without
// shipping whole documents.
type WorkflowSummary struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Status    models.WorkflowStatus `json:"status"`
	Version   int                   `json:"version"`
	NodeCount int                   `json:"node_count"`
	EdgeCount int                   `json:"edge_count"`
	HasABTest bool                  `json:"has_ab_test"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// TransformWorkflowSummary builds the listing row for a workflow.
func TransformWorkflowSummary(workflow *models.Workflow) WorkflowSummary {
	return WorkflowSummary{
		ID:        workflow.ID,
		Name:      workflow.Name,
		Status:    workflow.Status,
		Version:   workflow.Version,
		NodeCount: len(workflow.Nodes),
		EdgeCount: len(workflow.Edges),
		HasABTest: workflow.ABTest != nil,
		UpdatedAt: workflow.UpdatedAt,
	}
}
