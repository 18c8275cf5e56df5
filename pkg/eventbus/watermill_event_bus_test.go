package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/fideliza/fideliza/pkg/channels/gochannel"
	"github.com/fideliza/fideliza/pkg/eventbus"
	"github.com/fideliza/fideliza/pkg/events"
	"github.com/fideliza/fideliza/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.TriggerFired, 1)

	require.NoError(t, bus.Handle(events.TriggerFiredEvent, func(_ context.Context, event any) error {
		fired, ok := event.(*events.TriggerFired)
		require.True(t, ok)
		received <- fired

		return nil
	}))

	require.NoError(t, bus.Subscribe(t.Context()))

	fired := events.TriggerFired{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.TriggerFiredEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: "wf-1",
		},
		Trigger: models.TriggerEvent{
			WorkflowID: "wf-1",
			NodeID:     "t1",
			EntityID:   "client-1",
			DedupeKey:  "abc123",
		},
	}

	require.NoError(t, bus.Publish(t.Context(), "wf-1", fired))

	select {
	case got := <-received:
		assert.Equal(t, "wf-1", got.WorkflowID)
		assert.Equal(t, "client-1", got.Trigger.EntityID)
		assert.Equal(t, "abc123", got.Trigger.DedupeKey)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnhandledEventTypesAreAcked(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.RunCompleted, 1)

	require.NoError(t, bus.Handle(events.RunCompletedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.RunCompleted)

		return nil
	}))

	require.NoError(t, bus.Subscribe(t.Context()))

	// No handler registered for RunStarted; the bus must not wedge on it.
	started := events.RunStarted{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.RunStartedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: "wf-1",
		},
		RunID: "run-1",
	}
	require.NoError(t, bus.Publish(t.Context(), "wf-1", started))

	completed := events.RunCompleted{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.RunCompletedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: "wf-1",
		},
		RunID: "run-1",
	}
	require.NoError(t, bus.Publish(t.Context(), "wf-1", completed))

	select {
	case got := <-received:
		assert.Equal(t, "run-1", got.RunID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
