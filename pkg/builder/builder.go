// Package builder is the mutation API behind the flow editor. Every
// operation goes through a single pure reducer: build a candidate graph,
// validate it, and commit only if valid. Nothing is ever partially applied.
package builder

import (
	"errors"
	"fmt"

	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/validation"
	"github.com/google/uuid"
)

var (
	// ErrInvalidConnection is returned when a connect would violate a
	// structural rule post-insertion.
	ErrInvalidConnection = errors.New("invalid connection")

	// ErrSelfLoop is an invalid connection from a node to itself.
	ErrSelfLoop = fmt.Errorf("%w: self loop", ErrInvalidConnection)

	// ErrOutDegreeExceeded is an invalid connection past the per-node cap.
	ErrOutDegreeExceeded = fmt.Errorf("%w: out-degree exceeded", ErrInvalidConnection)

	ErrNodeNotFound   = errors.New("node not found")
	ErrEdgeNotFound   = errors.New("edge not found")
	ErrInvalidConfig  = errors.New("invalid node config")
	ErrEmptyOperation = errors.New("operation has no fields set")
)

type Builder struct {
	validator *validation.Validator
}

func NewBuilder(validator *validation.Validator) *Builder {
	return &Builder{validator: validator}
}

// Apply runs one mutation against the workflow and returns the mutated copy
// plus its validation result. The input workflow is never modified; same
// input and op always yield the same output graph (edge and node IDs aside).
// On error the returned workflow is nil and nothing was applied.
func (b *Builder) Apply(workflow *models.Workflow, op Op) (*models.Workflow, models.ValidationResult, error) {
	candidate := workflow.Clone()

	var err error

	switch {
	case op.AddNode != nil:
		err = b.applyAddNode(candidate, op.AddNode)
	case op.RemoveNode != nil:
		err = b.applyRemoveNode(candidate, op.RemoveNode)
	case op.Connect != nil:
		err = b.applyConnect(candidate, op.Connect)
	case op.Disconnect != nil:
		err = b.applyDisconnect(candidate, op.Disconnect)
	case op.UpdateNodeConfig != nil:
		err = b.applyUpdateNodeConfig(candidate, op.UpdateNodeConfig)
	default:
		err = ErrEmptyOperation
	}

	if err != nil {
		return nil, models.ValidationResult{}, err
	}

	result := b.validator.Validate(candidate)
	if !result.OK {
		// Structural errors reject the whole mutation; the editor shows the
		// issues and the caller keeps its previous graph.
		if op.Connect != nil {
			return nil, result, connectError(result)
		}

		return nil, result, fmt.Errorf("mutation rejected: %d validation errors", len(result.Errors))
	}

	candidate.EditCount++

	return candidate, result, nil
}

func (b *Builder) applyAddNode(workflow *models.Workflow, op *AddNodeOp) error {
	node := &models.Node{
		ID:       uuid.New().String(),
		Kind:     op.Kind,
		Type:     op.Type,
		Config:   op.Config,
		Position: op.Position,
	}

	workflow.Nodes = append(workflow.Nodes, node)

	return nil
}

func (b *Builder) applyRemoveNode(workflow *models.Workflow, op *RemoveNodeOp) error {
	idx := -1

	for i, node := range workflow.Nodes {
		if node.ID == op.NodeID {
			idx = i
			break
		}
	}

	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, op.NodeID)
	}

	workflow.Nodes = append(workflow.Nodes[:idx], workflow.Nodes[idx+1:]...)

	// Cascade: drop edges touching the removed node.
	kept := workflow.Edges[:0]

	for _, edge := range workflow.Edges {
		if edge.SourceID != op.NodeID && edge.TargetID != op.NodeID {
			kept = append(kept, edge)
		}
	}

	workflow.Edges = kept

	return nil
}

func (b *Builder) applyConnect(workflow *models.Workflow, op *ConnectOp) error {
	if op.SourceID == op.TargetID {
		return ErrSelfLoop
	}

	if workflow.NodeByID(op.SourceID) == nil {
		return fmt.Errorf("%w: source %s", ErrNodeNotFound, op.SourceID)
	}

	if workflow.NodeByID(op.TargetID) == nil {
		return fmt.Errorf("%w: target %s", ErrNodeNotFound, op.TargetID)
	}

	if len(workflow.OutgoingEdges(op.SourceID)) >= models.MaxOutDegree {
		return ErrOutDegreeExceeded
	}

	edge := &models.Edge{
		ID:             uuid.New().String(),
		SourceID:       op.SourceID,
		TargetID:       op.TargetID,
		SourceHandle:   op.SourceHandle,
		TargetHandle:   op.TargetHandle,
		Classification: models.ClassifyHandle(op.SourceHandle),
	}

	workflow.Edges = append(workflow.Edges, edge)

	return nil
}

func (b *Builder) applyDisconnect(workflow *models.Workflow, op *DisconnectOp) error {
	for i, edge := range workflow.Edges {
		if edge.ID == op.EdgeID {
			workflow.Edges = append(workflow.Edges[:i], workflow.Edges[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrEdgeNotFound, op.EdgeID)
}

func (b *Builder) applyUpdateNodeConfig(workflow *models.Workflow, op *UpdateNodeConfigOp) error {
	node := workflow.NodeByID(op.NodeID)
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, op.NodeID)
	}

	if node.Config == nil {
		node.Config = make(map[string]any, len(op.Partial))
	}

	for k, v := range op.Partial {
		node.Config[k] = v
	}

	return nil
}

// connectError maps a failed post-insertion validation to the most specific
// connect sentinel so the editor can tell degree caps from generic rejects.
func connectError(result models.ValidationResult) error {
	for _, issue := range result.Errors {
		switch issue.Code {
		case validation.CodeOutDegreeExceeded:
			return ErrOutDegreeExceeded
		case validation.CodeSelfLoop:
			return ErrSelfLoop
		}
	}

	return fmt.Errorf("%w: %d validation errors", ErrInvalidConnection, len(result.Errors))
}
