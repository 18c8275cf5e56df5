package evaluator

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fideliza/fideliza/pkg/dedupe"
	"github.com/fideliza/fideliza/pkg/entities"
	"github.com/fideliza/fideliza/pkg/eventbus"
	"github.com/fideliza/fideliza/pkg/events"
	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/persistence/file"
	"github.com/fideliza/fideliza/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) fired() []events.TriggerFired {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []events.TriggerFired

	for _, e := range p.events {
		if fired, ok := e.(events.TriggerFired); ok {
			out = append(out, fired)
		}
	}

	return out
}

func setupEvaluator(t *testing.T, source entities.Source) (*Evaluator, *recordingPublisher, *file.Persistence) {
	t.Helper()

	p, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	publisher := &recordingPublisher{}

	config := DefaultConfig()
	config.Workers = 2

	ev := NewEvaluator(p, source, dedupe.NewMemoryStore(), publisher, config, slog.Default())

	return ev, publisher, p
}

func activeFlow(t *testing.T, p *file.Persistence, days int) *models.Workflow {
	t.Helper()

	workflow := testutil.NewFlow("wf-1", "Reactivation").
		Status(models.WorkflowStatusActive).
		Trigger("t1", days).
		EmailAction("a1", "comeback").
		DirectEdge("e1", "t1", "a1").
		Build()

	require.NoError(t, p.WorkflowRepository().Create(t.Context(), workflow))

	return workflow
}

func TestRunBatchFiresForInactiveEntity(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	source := entities.NewMemorySource(
		&entities.Snapshot{EntityID: "client-1", LastActivityAt: now.AddDate(0, 0, -20)},
		&entities.Snapshot{EntityID: "client-2", LastActivityAt: now.AddDate(0, 0, -2)},
	)

	ev, publisher, p := setupEvaluator(t, source)
	ev.now = func() time.Time { return now }

	activeFlow(t, p, 14)

	require.NoError(t, ev.RunBatch(t.Context()))

	fired := publisher.fired()
	require.Len(t, fired, 1)
	assert.Equal(t, "client-1", fired[0].Trigger.EntityID)
	assert.Equal(t, "wf-1", fired[0].Trigger.WorkflowID)
	assert.Equal(t, "t1", fired[0].Trigger.NodeID)
	assert.NotEmpty(t, fired[0].Trigger.DedupeKey)
}

func TestRunBatchIsIdempotentWithinEpisode(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	source := entities.NewMemorySource(
		&entities.Snapshot{EntityID: "client-1", LastActivityAt: now.AddDate(0, 0, -20)},
	)

	ev, publisher, p := setupEvaluator(t, source)
	ev.now = func() time.Time { return now }

	activeFlow(t, p, 14)

	// Three consecutive batches over the same inactivity stretch.
	for range 3 {
		require.NoError(t, ev.RunBatch(t.Context()))

		now = now.Add(15 * time.Minute)
	}

	assert.Len(t, publisher.fired(), 1)
}

func TestRunBatchFiresAgainForNewEpisode(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	lastActivity := now.AddDate(0, 0, -20)

	snapshot := &entities.Snapshot{EntityID: "client-1", LastActivityAt: lastActivity}
	source := entities.NewMemorySource(snapshot)

	ev, publisher, p := setupEvaluator(t, source)
	ev.now = func() time.Time { return now }

	activeFlow(t, p, 14)

	require.NoError(t, ev.RunBatch(t.Context()))
	require.Len(t, publisher.fired(), 1)

	// The client came back, then went quiet again: a new threshold crossing.
	snapshot.LastActivityAt = now.AddDate(0, 0, -15)

	require.NoError(t, ev.RunBatch(t.Context()))
	assert.Len(t, publisher.fired(), 2)
}

func TestRunBatchSkipsInactiveWorkflows(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	source := entities.NewMemorySource(
		&entities.Snapshot{EntityID: "client-1", LastActivityAt: now.AddDate(0, 0, -20)},
	)

	ev, publisher, p := setupEvaluator(t, source)
	ev.now = func() time.Time { return now }

	draft := testutil.NewFlow("wf-draft", "Draft flow").
		Trigger("t1", 14).
		Build()
	require.NoError(t, p.WorkflowRepository().Create(t.Context(), draft))

	require.NoError(t, ev.RunBatch(t.Context()))

	assert.Empty(t, publisher.fired())
}

func TestRunBatchNotYetPastThreshold(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	source := entities.NewMemorySource(
		&entities.Snapshot{EntityID: "client-1", LastActivityAt: now.AddDate(0, 0, -13)},
	)

	ev, publisher, p := setupEvaluator(t, source)
	ev.now = func() time.Time { return now }

	activeFlow(t, p, 14)

	require.NoError(t, ev.RunBatch(t.Context()))

	assert.Empty(t, publisher.fired())
}
