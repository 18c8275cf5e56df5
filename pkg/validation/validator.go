// Package validation enforces the structural rules of the flow graph. The
// same rules run on every builder mutation and before draft activation.
package validation

import (
	"fmt"

	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/registry"
)

// Issue codes surfaced to the editor.
const (
	CodeSelfLoop             = "SELF_LOOP"
	CodeOutDegreeExceeded    = "OUT_DEGREE_EXCEEDED"
	CodeDanglingEdge         = "DANGLING_EDGE"
	CodeClassificationForged = "CLASSIFICATION_MISMATCH"
	CodeDuplicateID          = "DUPLICATE_ID"
	CodeNoTrigger            = "NO_TRIGGER"
	CodeUnreachableNode      = "UNREACHABLE_NODE"
	CodeConfigSchema         = "CONFIG_SCHEMA"
)

type Validator struct {
	registry *registry.Registry
}

func NewValidator(reg *registry.Registry) *Validator {
	return &Validator{registry: reg}
}

// Validate applies every structural rule to the workflow. Reachability
// produces warnings so staged editing stays possible; everything else is an
// error. The trigger-presence rule applies only to active workflows (and is
// re-checked by the activation path).
func (v *Validator) Validate(workflow *models.Workflow) models.ValidationResult {
	result := models.ValidationResult{OK: true}

	nodeIDs := make(map[string]bool, len(workflow.Nodes))

	for _, node := range workflow.Nodes {
		if nodeIDs[node.ID] {
			result.Add(models.Issue{
				Severity: models.SeverityError,
				Code:     CodeDuplicateID,
				Message:  fmt.Sprintf("duplicate node id %s", node.ID),
				NodeID:   node.ID,
			})
		}

		nodeIDs[node.ID] = true

		if err := v.registry.ValidateConfig(node); err != nil {
			result.Add(models.Issue{
				Severity: models.SeverityError,
				Code:     CodeConfigSchema,
				Message:  err.Error(),
				NodeID:   node.ID,
			})
		}
	}

	edgeIDs := make(map[string]bool, len(workflow.Edges))
	outDegree := make(map[string]int)

	for _, edge := range workflow.Edges {
		if edgeIDs[edge.ID] {
			result.Add(models.Issue{
				Severity: models.SeverityError,
				Code:     CodeDuplicateID,
				Message:  fmt.Sprintf("duplicate edge id %s", edge.ID),
				EdgeID:   edge.ID,
			})
		}

		edgeIDs[edge.ID] = true

		if edge.SourceID == edge.TargetID {
			result.Add(models.Issue{
				Severity: models.SeverityError,
				Code:     CodeSelfLoop,
				Message:  fmt.Sprintf("edge %s connects node %s to itself", edge.ID, edge.SourceID),
				EdgeID:   edge.ID,
			})
		}

		if !nodeIDs[edge.SourceID] || !nodeIDs[edge.TargetID] {
			result.Add(models.Issue{
				Severity: models.SeverityError,
				Code:     CodeDanglingEdge,
				Message:  fmt.Sprintf("edge %s references a node that does not exist", edge.ID),
				EdgeID:   edge.ID,
			})
		}

		// A forged payload must not relabel an edge: the classification is
		// recomputed from the handle and compared.
		if derived := models.ClassifyHandle(edge.SourceHandle); edge.Classification != derived {
			result.Add(models.Issue{
				Severity: models.SeverityError,
				Code:     CodeClassificationForged,
				Message: fmt.Sprintf(
					"edge %s is classified %s but its handle derives %s",
					edge.ID, edge.Classification, derived,
				),
				EdgeID: edge.ID,
			})
		}

		outDegree[edge.SourceID]++
	}

	for nodeID, degree := range outDegree {
		if degree > models.MaxOutDegree {
			result.Add(models.Issue{
				Severity: models.SeverityError,
				Code:     CodeOutDegreeExceeded,
				Message:  fmt.Sprintf("node %s has %d outgoing edges, maximum is %d", nodeID, degree, models.MaxOutDegree),
				NodeID:   nodeID,
			})
		}
	}

	triggers := workflow.TriggerNodes()

	if workflow.Status == models.WorkflowStatusActive && len(triggers) == 0 {
		result.Add(models.Issue{
			Severity: models.SeverityError,
			Code:     CodeNoTrigger,
			Message:  "an active workflow needs at least one trigger node",
		})
	}

	for _, issue := range v.unreachableNodes(workflow, triggers) {
		result.Add(issue)
	}

	return result
}

// ValidateForActivation runs the full rule set with the trigger-presence
// rule forced on, regardless of the workflow's current status.
func (v *Validator) ValidateForActivation(workflow *models.Workflow) models.ValidationResult {
	candidate := workflow.Clone()
	candidate.Status = models.WorkflowStatusActive

	return v.Validate(candidate)
}

// unreachableNodes flags non-trigger nodes not reachable from any trigger.
// Warnings only: a coach may park half-built branches in a draft.
func (v *Validator) unreachableNodes(workflow *models.Workflow, triggers []*models.Node) []models.Issue {
	if len(triggers) == 0 {
		return nil
	}

	reachable := make(map[string]bool)

	var walk func(nodeID string)
	walk = func(nodeID string) {
		if reachable[nodeID] {
			return
		}

		reachable[nodeID] = true

		for _, edge := range workflow.OutgoingEdges(nodeID) {
			walk(edge.TargetID)
		}
	}

	for _, trigger := range triggers {
		walk(trigger.ID)
	}

	var issues []models.Issue

	for _, node := range workflow.Nodes {
		if node.IsTrigger() || reachable[node.ID] {
			continue
		}

		issues = append(issues, models.Issue{
			Severity: models.SeverityWarning,
			Code:     CodeUnreachableNode,
			Message:  fmt.Sprintf("node %s is not reachable from any trigger", node.ID),
			NodeID:   node.ID,
		})
	}

	return issues
}
