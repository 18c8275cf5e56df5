package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyHandle(t *testing.T) {
	conditional := HandleConditional
	errHandle := HandleError
	delay := HandleDelay
	custom := "output-2"
	empty := ""

	tests := []struct {
		name   string
		handle *string
		want   EdgeClassification
	}{
		{"nil handle is direct", nil, EdgeDirect},
		{"handle a is conditional", &conditional, EdgeConditional},
		{"handle b is error", &errHandle, EdgeError},
		{"handle delay is delay", &delay, EdgeDelay},
		{"unknown handle is direct", &custom, EdgeDirect},
		{"empty handle is direct", &empty, EdgeDirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyHandle(tt.handle))
		})
	}
}

func TestClassifyHandleIsDeterministic(t *testing.T) {
	handle := HandleConditional

	first := ClassifyHandle(&handle)
	for range 100 {
		assert.Equal(t, first, ClassifyHandle(&handle))
	}
}

func TestRunStateIsTerminal(t *testing.T) {
	assert.False(t, RunStatePending.IsTerminal())
	assert.False(t, RunStateRunning.IsTerminal())
	assert.False(t, RunStateWaitingDelay.IsTerminal())

	assert.True(t, RunStateCompleted.IsTerminal())
	assert.True(t, RunStateFailed.IsTerminal())
	assert.True(t, RunStateCancelled.IsTerminal())
}

func TestWorkflowClone(t *testing.T) {
	handle := HandleConditional

	original := &Workflow{
		ID:     "wf-1",
		Name:   "Reactivation",
		Status: WorkflowStatusDraft,
		Nodes: []*Node{
			{ID: "n1", Kind: NodeKindTrigger, Type: NodeTypeInactivityTrigger, Config: map[string]any{"days": 14}},
		},
		Edges: []*Edge{
			{ID: "e1", SourceID: "n1", TargetID: "n2", SourceHandle: &handle, Classification: EdgeConditional},
		},
		ABTest: &ABTestConfig{VariantName: "b", TrafficSplit: 0.5, SuccessMetric: "reactivated"},
	}

	clone := original.Clone()

	clone.Nodes[0].Config["days"] = 30
	clone.Edges[0].TargetID = "n3"
	clone.ABTest.TrafficSplit = 0.9

	assert.Equal(t, 14, original.Nodes[0].Config["days"])
	assert.Equal(t, "n2", original.Edges[0].TargetID)
	assert.InDelta(t, 0.5, original.ABTest.TrafficSplit, 0.001)
}

func TestDedupeKeyStableWithinWindow(t *testing.T) {
	windowStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	key1 := DedupeKey("wf-1", "n1", "client-9", windowStart)
	key2 := DedupeKey("wf-1", "n1", "client-9", windowStart)

	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 64)

	other := DedupeKey("wf-1", "n1", "client-9", windowStart.Add(time.Second))
	assert.NotEqual(t, key1, other)
}
