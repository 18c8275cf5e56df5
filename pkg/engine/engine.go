// Package engine executes runs: it consumes trigger events, walks the
// workflow graph per the run state machine, evaluates conditions,
// dispatches actions and records run history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fideliza/fideliza/pkg/dispatch"
	"github.com/fideliza/fideliza/pkg/entities"
	"github.com/fideliza/fideliza/pkg/eventbus"
	"github.com/fideliza/fideliza/pkg/events"
	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/otelhelper"
	"github.com/fideliza/fideliza/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrRunTerminal indicates an operation against a completed, failed
	// or cancelled run.
	ErrRunTerminal = errors.New("run is in a terminal state")

	// ErrWorkflowNotActive indicates a trigger event for a workflow that
	// is no longer active.
	ErrWorkflowNotActive = errors.New("workflow is not active")
)

const (
	// defaultDelay applies when a delay edge's source node does not
	// configure one.
	defaultDelay = 24 * time.Hour

	// rateLimitRetryDelay is how long a run parks when dispatch is rate
	// limited. Over-limit delays dispatch, it never fails it.
	rateLimitRetryDelay = time.Minute
)

type Engine struct {
	persistence persistence.Persistence
	source      entities.Source
	dispatcher  *dispatch.Dispatcher
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer

	now func() time.Time
}

func NewEngine(
	p persistence.Persistence,
	source entities.Source,
	dispatcher *dispatch.Dispatcher,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	tracer trace.Tracer,
) *Engine {
	return &Engine{
		persistence: p,
		source:      source,
		dispatcher:  dispatcher,
		publisher:   publisher,
		logger:      logger.With("module", "execution_engine"),
		tracer:      tracer,
		now:         time.Now,
	}
}

// Subscribe wires the engine onto the event bus: every TriggerFired event
// starts a run.
func (e *Engine) Subscribe(bus eventbus.EventBus) error {
	return bus.Handle(events.TriggerFiredEvent, func(ctx context.Context, event any) error {
		fired, ok := event.(*events.TriggerFired)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", event)
		}

		_, err := e.ExecuteTrigger(ctx, fired.Trigger)
		if errors.Is(err, ErrWorkflowNotActive) {
			// The workflow was paused or archived between evaluation and
			// consumption; drop the event.
			e.logger.InfoContext(ctx, "Dropping trigger for inactive workflow",
				"workflow_id", fired.Trigger.WorkflowID)

			return nil
		}

		return err
	})
}

// ExecuteTrigger creates a run for the trigger event and drives it until
// it parks or terminates. The run captures the workflow version current at
// creation; later edits never touch it.
func (e *Engine) ExecuteTrigger(ctx context.Context, trigger models.TriggerEvent) (*models.Run, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "execute_trigger",
		attribute.String(otelhelper.WorkflowIDKey, trigger.WorkflowID),
		attribute.String(otelhelper.EntityIDKey, trigger.EntityID),
	)
	defer span.End()

	workflow, err := e.persistence.WorkflowRepository().GetByID(ctx, trigger.WorkflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load workflow %s: %w", trigger.WorkflowID, err)
	}

	if workflow.Status != models.WorkflowStatusActive {
		return nil, ErrWorkflowNotActive
	}

	now := e.now().UTC()

	run := &models.Run{
		ID:              uuid.New().String(),
		WorkflowID:      workflow.ID,
		WorkflowVersion: workflow.Version,
		EntityID:        trigger.EntityID,
		State:           models.RunStatePending,
		Cursor:          trigger.NodeID,
		StartedAt:       now,
	}

	if err := e.persistence.RunRepository().Save(ctx, run); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	e.publishEvent(ctx, events.RunStarted{
		BaseEvent:       e.baseEvent(events.RunStartedEvent, run.WorkflowID),
		RunID:           run.ID,
		WorkflowVersion: run.WorkflowVersion,
		EntityID:        run.EntityID,
	})

	run.State = models.RunStateRunning

	if err := e.walk(ctx, run, workflow); err != nil {
		return run, err
	}

	return run, nil
}

// ResumeRun picks a waiting_delay run back up. Called by the delay
// scheduler sweep; no worker was held across the delay.
func (e *Engine) ResumeRun(ctx context.Context, runID string) error {
	run, err := e.persistence.RunRepository().GetByID(ctx, runID)
	if err != nil {
		return err
	}

	if run.State.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrRunTerminal, run.ID)
	}

	if run.State != models.RunStateWaitingDelay {
		return fmt.Errorf("run %s is %s, expected %s", run.ID, run.State, models.RunStateWaitingDelay)
	}

	workflow, err := e.persistence.WorkflowRepository().GetVersion(ctx, run.WorkflowID, run.WorkflowVersion)
	if err != nil {
		return fmt.Errorf("failed to load workflow version %s/%d: %w", run.WorkflowID, run.WorkflowVersion, err)
	}

	run.State = models.RunStateRunning
	run.ResumeAt = nil

	e.publishEvent(ctx, events.RunResumed{
		BaseEvent: e.baseEvent(events.RunResumedEvent, run.WorkflowID),
		RunID:     run.ID,
	})

	return e.walk(ctx, run, workflow)
}

// CancelRun terminates a run on explicit external request (e.g. the entity
// unsubscribed). Pre-empts waiting_delay; terminal runs stay untouched.
func (e *Engine) CancelRun(ctx context.Context, runID, reason string) error {
	run, err := e.persistence.RunRepository().GetByID(ctx, runID)
	if err != nil {
		return err
	}

	if run.State.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrRunTerminal, run.ID)
	}

	now := e.now().UTC()
	run.State = models.RunStateCancelled
	run.ResumeAt = nil
	run.FinishedAt = &now

	if err := e.persistence.RunRepository().Save(ctx, run); err != nil {
		return err
	}

	e.publishEvent(ctx, events.RunCancelled{
		BaseEvent: e.baseEvent(events.RunCancelledEvent, run.WorkflowID),
		RunID:     run.ID,
		Reason:    reason,
	})

	e.logger.InfoContext(ctx, "Run cancelled", "run_id", run.ID, "reason", reason)

	return nil
}

func (e *Engine) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  e.now().UTC(),
		WorkflowID: workflowID,
	}
}

func (e *Engine) publishEvent(ctx context.Context, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, uuid.New().String(), event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish run event",
			"event_type", event.GetType(), "error", err)
	}
}
