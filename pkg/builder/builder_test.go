package builder

import (
	"log/slog"
	"testing"

	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/registry"
	"github.com/fideliza/fideliza/pkg/testutil"
	"github.com/fideliza/fideliza/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder(t *testing.T) *Builder {
	t.Helper()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaults()

	return NewBuilder(validation.NewValidator(reg))
}

func TestApplyAddNode(t *testing.T) {
	b := newBuilder(t)

	workflow := testutil.NewFlow("wf-1", "Empty").Build()

	mutated, result, err := b.Apply(workflow, Op{AddNode: &AddNodeOp{
		Kind:   models.NodeKindTrigger,
		Type:   models.NodeTypeInactivityTrigger,
		Config: map[string]any{"days": 14},
	}})

	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Len(t, mutated.Nodes, 1)
	assert.NotEmpty(t, mutated.Nodes[0].ID)
	assert.Equal(t, 1, mutated.EditCount)

	// The input graph is untouched.
	assert.Empty(t, workflow.Nodes)
	assert.Zero(t, workflow.EditCount)
}

func TestApplyConnectDerivesClassification(t *testing.T) {
	b := newBuilder(t)

	workflow := testutil.NewFlow("wf-1", "Flow").
		Trigger("t1", 14).
		SubscriptionCondition("c1").
		EmailAction("a1", "x").
		DirectEdge("e1", "t1", "c1").
		Build()

	mutated, _, err := b.Apply(workflow, Op{Connect: &ConnectOp{
		SourceID:     "c1",
		TargetID:     "a1",
		SourceHandle: testutil.Handle(models.HandleConditional),
	}})

	require.NoError(t, err)
	require.Len(t, mutated.Edges, 2)
	assert.Equal(t, models.EdgeConditional, mutated.Edges[1].Classification)
}

func TestApplyConnectRejectsSelfLoop(t *testing.T) {
	b := newBuilder(t)

	workflow := testutil.NewFlow("wf-1", "Flow").
		Trigger("t1", 14).
		Build()

	mutated, _, err := b.Apply(workflow, Op{Connect: &ConnectOp{
		SourceID: "t1",
		TargetID: "t1",
	}})

	require.ErrorIs(t, err, ErrSelfLoop)
	require.ErrorIs(t, err, ErrInvalidConnection)
	assert.Nil(t, mutated)
}

func TestApplyConnectRejectsFourthEdge(t *testing.T) {
	b := newBuilder(t)

	builder := testutil.NewFlow("wf-1", "Fanout").
		Trigger("t1", 14)

	for _, id := range []string{"a1", "a2", "a3", "a4"} {
		builder.EmailAction(id, "x")
	}

	workflow := builder.
		DirectEdge("e1", "t1", "a1").
		ConditionalEdge("e2", "t1", "a2").
		DelayEdge("e3", "t1", "a3").
		Build()

	mutated, _, err := b.Apply(workflow, Op{Connect: &ConnectOp{
		SourceID: "t1",
		TargetID: "a4",
	}})

	require.ErrorIs(t, err, ErrOutDegreeExceeded)
	assert.Nil(t, mutated)
	// The original still has its three edges.
	assert.Len(t, workflow.Edges, 3)
}

func TestApplyConnectRejectsMissingNodes(t *testing.T) {
	b := newBuilder(t)

	workflow := testutil.NewFlow("wf-1", "Flow").
		Trigger("t1", 14).
		Build()

	_, _, err := b.Apply(workflow, Op{Connect: &ConnectOp{
		SourceID: "t1",
		TargetID: "ghost",
	}})

	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestApplyRemoveNodeCascadesEdges(t *testing.T) {
	b := newBuilder(t)

	workflow := testutil.NewFlow("wf-1", "Flow").
		Trigger("t1", 14).
		SubscriptionCondition("c1").
		EmailAction("a1", "x").
		DirectEdge("e1", "t1", "c1").
		ConditionalEdge("e2", "c1", "a1").
		Build()

	mutated, _, err := b.Apply(workflow, Op{RemoveNode: &RemoveNodeOp{NodeID: "c1"}})

	require.NoError(t, err)
	assert.Len(t, mutated.Nodes, 2)
	assert.Empty(t, mutated.Edges, "both incident edges should be removed")
}

func TestApplyUpdateNodeConfigRevalidates(t *testing.T) {
	b := newBuilder(t)

	workflow := testutil.NewFlow("wf-1", "Flow").
		Trigger("t1", 14).
		Build()

	mutated, _, err := b.Apply(workflow, Op{UpdateNodeConfig: &UpdateNodeConfigOp{
		NodeID:  "t1",
		Partial: map[string]any{"days": 30},
	}})

	require.NoError(t, err)
	assert.Equal(t, 30, mutated.NodeByID("t1").Config["days"])

	// An out-of-range value is rejected and nothing is applied.
	rejected, result, err := b.Apply(workflow, Op{UpdateNodeConfig: &UpdateNodeConfigOp{
		NodeID:  "t1",
		Partial: map[string]any{"days": 9000},
	}})

	require.Error(t, err)
	assert.Nil(t, rejected)
	assert.False(t, result.OK)
	assert.Equal(t, 14, workflow.NodeByID("t1").Config["days"])
}

func TestApplyDisconnect(t *testing.T) {
	b := newBuilder(t)

	workflow := testutil.NewFlow("wf-1", "Flow").
		Trigger("t1", 14).
		EmailAction("a1", "x").
		DirectEdge("e1", "t1", "a1").
		Build()

	mutated, _, err := b.Apply(workflow, Op{Disconnect: &DisconnectOp{EdgeID: "e1"}})

	require.NoError(t, err)
	assert.Empty(t, mutated.Edges)

	_, _, err = b.Apply(workflow, Op{Disconnect: &DisconnectOp{EdgeID: "ghost"}})
	require.ErrorIs(t, err, ErrEdgeNotFound)
}

func TestApplyEmptyOperation(t *testing.T) {
	b := newBuilder(t)

	workflow := testutil.NewFlow("wf-1", "Flow").Build()

	_, _, err := b.Apply(workflow, Op{})
	require.ErrorIs(t, err, ErrEmptyOperation)
}

func TestEditCountAccumulates(t *testing.T) {
	b := newBuilder(t)

	workflow := testutil.NewFlow("wf-1", "Flow").
		Trigger("t1", 14).
		Build()

	mutated, _, err := b.Apply(workflow, Op{AddNode: &AddNodeOp{
		Kind:   models.NodeKindAction,
		Type:   models.NodeTypeActionEmail,
		Config: map[string]any{"template": "x"},
	}})
	require.NoError(t, err)

	mutated, _, err = b.Apply(mutated, Op{Connect: &ConnectOp{
		SourceID: "t1",
		TargetID: mutated.Nodes[1].ID,
	}})
	require.NoError(t, err)

	assert.Equal(t, 2, mutated.EditCount)
}
