// Package evaluator is the scheduled batch process that matches live
// entity state against the trigger nodes of active workflows and emits
// deduplicated trigger events.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fideliza/fideliza/pkg/dedupe"
	"github.com/fideliza/fideliza/pkg/entities"
	"github.com/fideliza/fideliza/pkg/eventbus"
	"github.com/fideliza/fideliza/pkg/events"
	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/persistence"
	"github.com/robfig/cron/v3"
)

const defaultWorkers = 8

// Config tunes the batch sweep.
type Config struct {
	// Interval between batches, cron "@every" syntax under the hood.
	Interval time.Duration

	// Workers bounds concurrent entity evaluations within a batch.
	Workers int

	// DedupeTTL is how long a claimed trigger episode stays claimed.
	DedupeTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:  15 * time.Minute,
		Workers:   defaultWorkers,
		DedupeTTL: 30 * 24 * time.Hour,
	}
}

type Evaluator struct {
	persistence persistence.Persistence
	source      entities.Source
	dedupe      dedupe.Store
	publisher   eventbus.EventPublisher
	config      Config
	logger      *slog.Logger

	cron *cron.Cron
	now  func() time.Time
}

func NewEvaluator(
	p persistence.Persistence,
	source entities.Source,
	store dedupe.Store,
	publisher eventbus.EventPublisher,
	config Config,
	logger *slog.Logger,
) *Evaluator {
	if config.Workers <= 0 {
		config.Workers = defaultWorkers
	}

	return &Evaluator{
		persistence: p,
		source:      source,
		dedupe:      store,
		publisher:   publisher,
		config:      config,
		logger:      logger.With("module", "trigger_evaluator"),
		now:         time.Now,
	}
}

// Start schedules the batch sweep. The first batch runs on the first tick,
// not immediately.
func (e *Evaluator) Start(ctx context.Context) error {
	e.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	spec := fmt.Sprintf("@every %s", e.config.Interval)

	_, err := e.cron.AddFunc(spec, func() {
		if err := e.RunBatch(ctx); err != nil {
			e.logger.ErrorContext(ctx, "Trigger batch failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule trigger batch: %w", err)
	}

	e.cron.Start()
	e.logger.InfoContext(ctx, "Trigger evaluator started", "interval", e.config.Interval)

	return nil
}

func (e *Evaluator) Stop(ctx context.Context) error {
	if e.cron != nil {
		e.cron.Stop()
	}

	e.logger.InfoContext(ctx, "Trigger evaluator stopped")

	return nil
}

// RunBatch evaluates every entity against every trigger node of every
// active workflow. Evaluation is a pure read over snapshots; emitting
// trigger events is the only side effect, idempotent via the dedupe store.
func (e *Evaluator) RunBatch(ctx context.Context) error {
	status := models.WorkflowStatusActive

	workflows, err := e.persistence.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{Status: &status})
	if err != nil {
		return fmt.Errorf("failed to list active workflows: %w", err)
	}

	snapshots, err := e.source.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entity snapshots: %w", err)
	}

	e.logger.InfoContext(ctx, "Starting trigger batch",
		"workflows", len(workflows), "entities", len(snapshots))

	sem := make(chan struct{}, e.config.Workers)

	var wg sync.WaitGroup

	for _, snapshot := range snapshots {
		wg.Add(1)
		sem <- struct{}{}

		go func(snapshot *entities.Snapshot) {
			defer wg.Done()
			defer func() { <-sem }()

			// A single entity's failure is logged and skipped; the batch
			// carries on for everyone else.
			if err := e.evaluateEntity(ctx, workflows, snapshot); err != nil {
				e.logger.WarnContext(ctx, "Entity evaluation failed",
					"entity_id", snapshot.EntityID, "error", err)
			}
		}(snapshot)
	}

	wg.Wait()

	return nil
}

func (e *Evaluator) evaluateEntity(ctx context.Context, workflows []*models.Workflow, snapshot *entities.Snapshot) error {
	for _, workflow := range workflows {
		for _, trigger := range workflow.TriggerNodes() {
			matched, windowStart, err := e.matches(trigger, snapshot)
			if err != nil {
				return err
			}

			if !matched {
				continue
			}

			if err := e.emit(ctx, workflow, trigger, snapshot, windowStart); err != nil {
				return err
			}
		}
	}

	return nil
}

// matches reports whether the snapshot satisfies the trigger node, and the
// window anchor identifying this episode.
func (e *Evaluator) matches(trigger *models.Node, snapshot *entities.Snapshot) (bool, time.Time, error) {
	switch trigger.Type {
	case models.NodeTypeInactivityTrigger:
		days, err := configInt(trigger.Config, "days")
		if err != nil {
			return false, time.Time{}, err
		}

		threshold := snapshot.LastActivityAt.Add(time.Duration(days) * 24 * time.Hour)
		if e.now().Before(threshold) {
			return false, time.Time{}, nil
		}

		// The episode is anchored at the moment the entity crossed the
		// threshold: the same inactivity stretch never refires.
		return true, threshold, nil
	default:
		return false, time.Time{}, fmt.Errorf("unknown trigger type %q", trigger.Type)
	}
}

func (e *Evaluator) emit(
	ctx context.Context,
	workflow *models.Workflow,
	trigger *models.Node,
	snapshot *entities.Snapshot,
	windowStart time.Time,
) error {
	key := models.DedupeKey(workflow.ID, trigger.ID, snapshot.EntityID, windowStart)

	won, err := e.dedupe.Claim(ctx, key, e.config.DedupeTTL)
	if err != nil {
		return fmt.Errorf("dedupe claim failed: %w", err)
	}

	if !won {
		// Duplicate within the window: a no-op, not an error.
		return nil
	}

	firedAt := e.now().UTC()

	event := events.TriggerFired{
		BaseEvent: events.BaseEvent{
			Type:       events.TriggerFiredEvent,
			Timestamp:  firedAt,
			WorkflowID: workflow.ID,
		},
		Trigger: models.TriggerEvent{
			WorkflowID: workflow.ID,
			NodeID:     trigger.ID,
			EntityID:   snapshot.EntityID,
			FiredAt:    firedAt,
			DedupeKey:  key,
		},
	}

	e.logger.InfoContext(ctx, "Trigger fired",
		"workflow_id", workflow.ID,
		"node_id", trigger.ID,
		"entity_id", snapshot.EntityID,
	)

	return e.publisher.Publish(ctx, workflow.ID, event)
}

func configInt(config map[string]any, key string) (int, error) {
	value, ok := config[key]
	if !ok {
		return 0, fmt.Errorf("config key %q missing", key)
	}

	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("config key %q is %T, want number", key, value)
	}
}
