package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fideliza/fideliza/pkg/dispatch"
	"github.com/fideliza/fideliza/pkg/entities"
	"github.com/fideliza/fideliza/pkg/events"
	"github.com/fideliza/fideliza/pkg/gateways"
	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// walk drives the run forward from its cursor until it parks or reaches a
// terminal state. The run is persisted once on the way out; a park or a
// terminal transition is always the last thing walk does.
func (e *Engine) walk(ctx context.Context, run *models.Run, workflow *models.Workflow) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "run_walk",
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.WorkflowIDKey, run.WorkflowID),
		attribute.Int(otelhelper.WorkflowVersionKey, run.WorkflowVersion),
	)
	defer span.End()

	for run.State == models.RunStateRunning {
		node := workflow.NodeByID(run.Cursor)
		if node == nil {
			e.failRun(ctx, run, run.Cursor, fmt.Sprintf("node %s not found in workflow version %d", run.Cursor, run.WorkflowVersion))

			break
		}

		var err error

		switch {
		case node.IsTrigger():
			err = e.stepTrigger(ctx, run, workflow, node)
		case node.IsCondition():
			err = e.stepCondition(ctx, run, workflow, node)
		case node.IsAction():
			err = e.stepAction(ctx, run, workflow, node)
		default:
			e.failRun(ctx, run, node.ID, fmt.Sprintf("unknown node kind %q", node.Kind))
		}

		if err != nil {
			// Infrastructure failure, not a run outcome: persist what we
			// have and surface the error so the message is retried.
			otelhelper.SetError(span, err)

			if saveErr := e.persistence.RunRepository().Save(ctx, run); saveErr != nil {
				return errors.Join(err, saveErr)
			}

			return err
		}
	}

	return e.persistence.RunRepository().Save(ctx, run)
}

// stepTrigger records the entry point and advances. Trigger matching already
// happened in the evaluator; by the time a run exists the trigger is a fact.
func (e *Engine) stepTrigger(ctx context.Context, run *models.Run, workflow *models.Workflow, node *models.Node) error {
	run.AppendStep(node.ID, models.StepSuccess, "")
	e.advance(ctx, run, workflow, node)

	return nil
}

func (e *Engine) stepCondition(ctx context.Context, run *models.Run, workflow *models.Workflow, node *models.Node) error {
	snapshot, err := e.snapshot(ctx, run, node)
	if err != nil || snapshot == nil {
		return err
	}

	matched, err := evaluateCondition(node, snapshot)
	if err != nil {
		e.failRun(ctx, run, node.ID, err.Error())

		return nil
	}

	run.AppendStep(node.ID, models.StepSuccess, fmt.Sprintf("evaluated %t", matched))

	wanted := models.EdgeDirect
	if matched {
		wanted = models.EdgeConditional
	}

	next := findEdge(workflow.OutgoingEdges(node.ID), wanted)
	if next == nil {
		// No edge for this outcome means the flow simply ends here.
		e.completeRun(ctx, run)

		return nil
	}

	run.Cursor = next.TargetID

	return nil
}

func (e *Engine) stepAction(ctx context.Context, run *models.Run, workflow *models.Workflow, node *models.Node) error {
	snapshot, err := e.snapshot(ctx, run, node)
	if err != nil || snapshot == nil {
		return err
	}

	if snapshot.Unsubscribed {
		e.cancelInline(ctx, run, node.ID, "entity unsubscribed from communications")

		return nil
	}

	channel, err := channelForAction(node.Type)
	if err != nil {
		e.failRun(ctx, run, node.ID, err.Error())

		return nil
	}

	result, err := e.dispatcher.Dispatch(ctx, run.WorkflowID, gateways.Message{
		Channel:  channel,
		EntityID: run.EntityID,
		Payload:  node.Config,
	})

	// Each burned attempt is its own history entry.
	for _, attemptErr := range result.AttemptErrors {
		run.AppendStep(node.ID, models.StepFailure, attemptErr.Error())
	}

	switch {
	case err == nil:
		run.AppendStep(node.ID, models.StepSuccess, "provider "+result.Receipt.ProviderID)
		e.advance(ctx, run, workflow, node)

		return nil
	case dispatch.IsRateLimited(err):
		// Over-limit delays the send, it never fails the run. The cursor
		// stays put so the resume retries the same node.
		e.parkRun(ctx, run, e.now().UTC().Add(rateLimitRetryDelay))

		return nil
	case dispatch.IsDispatchFailed(err):
		if errorEdge := findEdge(workflow.OutgoingEdges(node.ID), models.EdgeError); errorEdge != nil {
			run.Cursor = errorEdge.TargetID

			return nil
		}

		e.failRun(ctx, run, node.ID, err.Error())

		return nil
	default:
		return err
	}
}

// snapshot loads the entity state a step needs. A missing entity fails the
// run; the returned snapshot is nil in that case with a nil error.
func (e *Engine) snapshot(ctx context.Context, run *models.Run, node *models.Node) (*entities.Snapshot, error) {
	snapshot, err := e.source.GetByID(ctx, run.EntityID)
	if errors.Is(err, entities.ErrEntityNotFound) {
		e.failRun(ctx, run, node.ID, fmt.Sprintf("entity %s not found", run.EntityID))

		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load entity %s: %w", run.EntityID, err)
	}

	return snapshot, nil
}

// advance moves past a node that finished successfully. A delay edge wins
// over a direct edge when a node carries both; no outgoing edge completes
// the run.
func (e *Engine) advance(ctx context.Context, run *models.Run, workflow *models.Workflow, node *models.Node) {
	edges := workflow.OutgoingEdges(node.ID)

	if delayEdge := findEdge(edges, models.EdgeDelay); delayEdge != nil {
		run.Cursor = delayEdge.TargetID
		e.parkRun(ctx, run, e.now().UTC().Add(delayFor(node)))

		return
	}

	if direct := findEdge(edges, models.EdgeDirect); direct != nil {
		run.Cursor = direct.TargetID

		return
	}

	e.completeRun(ctx, run)
}

func (e *Engine) parkRun(ctx context.Context, run *models.Run, resumeAt time.Time) {
	run.State = models.RunStateWaitingDelay
	run.ResumeAt = &resumeAt

	e.publishEvent(ctx, events.RunDelayed{
		BaseEvent: e.baseEvent(events.RunDelayedEvent, run.WorkflowID),
		RunID:     run.ID,
		ResumeAt:  resumeAt,
	})

	e.logger.InfoContext(ctx, "Run parked",
		"run_id", run.ID, "resume_at", resumeAt)
}

func (e *Engine) completeRun(ctx context.Context, run *models.Run) {
	now := e.now().UTC()
	run.State = models.RunStateCompleted
	run.FinishedAt = &now

	e.publishEvent(ctx, events.RunCompleted{
		BaseEvent:  e.baseEvent(events.RunCompletedEvent, run.WorkflowID),
		RunID:      run.ID,
		EntityID:   run.EntityID,
		Duration:   now.Sub(run.StartedAt),
		StepsTaken: len(run.History),
	})

	e.logger.InfoContext(ctx, "Run completed",
		"run_id", run.ID, "steps", len(run.History))
}

func (e *Engine) failRun(ctx context.Context, run *models.Run, nodeID, detail string) {
	run.AppendStep(nodeID, models.StepFailure, detail)

	now := e.now().UTC()
	run.State = models.RunStateFailed
	run.FinishedAt = &now

	e.publishEvent(ctx, events.RunFailed{
		BaseEvent: e.baseEvent(events.RunFailedEvent, run.WorkflowID),
		RunID:     run.ID,
		EntityID:  run.EntityID,
		Error:     detail,
	})

	e.logger.WarnContext(ctx, "Run failed",
		"run_id", run.ID, "node_id", nodeID, "detail", detail)
}

// cancelInline terminates a running walk, as opposed to CancelRun which acts
// on a parked run from the outside.
func (e *Engine) cancelInline(ctx context.Context, run *models.Run, nodeID, reason string) {
	run.AppendStep(nodeID, models.StepSkipped, reason)

	now := e.now().UTC()
	run.State = models.RunStateCancelled
	run.FinishedAt = &now

	e.publishEvent(ctx, events.RunCancelled{
		BaseEvent: e.baseEvent(events.RunCancelledEvent, run.WorkflowID),
		RunID:     run.ID,
		Reason:    reason,
	})
}

func evaluateCondition(node *models.Node, snapshot *entities.Snapshot) (bool, error) {
	switch node.Type {
	case models.NodeTypeConditionSubscription:
		return snapshot.SubscriptionActive, nil
	case models.NodeTypeConditionTag:
		tag, ok := node.Config["tag"].(string)
		if !ok {
			return false, fmt.Errorf("condition %s: config key %q missing or not a string", node.ID, "tag")
		}

		return snapshot.HasTag(tag), nil
	default:
		return false, fmt.Errorf("unknown condition type %q", node.Type)
	}
}

func channelForAction(nodeType string) (gateways.Channel, error) {
	switch nodeType {
	case models.NodeTypeActionEmail:
		return gateways.ChannelEmail, nil
	case models.NodeTypeActionSMS:
		return gateways.ChannelSMS, nil
	case models.NodeTypeActionPush:
		return gateways.ChannelPush, nil
	case models.NodeTypeActionCall:
		return gateways.ChannelCall, nil
	case models.NodeTypeActionDiscount:
		return gateways.ChannelDiscount, nil
	default:
		return "", fmt.Errorf("unknown action type %q", nodeType)
	}
}

func findEdge(edges []*models.Edge, classification models.EdgeClassification) *models.Edge {
	for _, edge := range edges {
		if edge.Classification == classification {
			return edge
		}
	}

	return nil
}

// delayFor reads the wait duration off the node taking the delay exit.
// Accepts delay_days and delay_hours, additive; defaults to 24h.
func delayFor(node *models.Node) time.Duration {
	var d time.Duration

	if days, ok := configNumber(node.Config, "delay_days"); ok {
		d += time.Duration(days) * 24 * time.Hour
	}

	if hours, ok := configNumber(node.Config, "delay_hours"); ok {
		d += time.Duration(hours) * time.Hour
	}

	if d <= 0 {
		return defaultDelay
	}

	return d
}

func configNumber(config map[string]any, key string) (int, bool) {
	switch v := config[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
