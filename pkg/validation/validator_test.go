package validation

import (
	"log/slog"
	"testing"

	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/registry"
	"github.com/fideliza/fideliza/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaults()

	return NewValidator(reg)
}

func hasIssue(issues []models.Issue, code string) bool {
	for _, issue := range issues {
		if issue.Code == code {
			return true
		}
	}

	return false
}

func TestValidateAcceptsWellFormedFlow(t *testing.T) {
	v := newValidator(t)

	workflow := testutil.NewFlow("wf-1", "Reactivation").
		Trigger("t1", 14).
		SubscriptionCondition("c1").
		EmailAction("a1", "comeback").
		DirectEdge("e1", "t1", "c1").
		ConditionalEdge("e2", "c1", "a1").
		Build()

	result := v.Validate(workflow)

	assert.True(t, result.OK)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateRejectsSelfLoop(t *testing.T) {
	v := newValidator(t)

	workflow := testutil.NewFlow("wf-1", "Loop").
		Trigger("t1", 14).
		EmailAction("a1", "x").
		DirectEdge("e1", "t1", "a1").
		DirectEdge("e2", "a1", "a1").
		Build()

	result := v.Validate(workflow)

	require.False(t, result.OK)
	assert.True(t, hasIssue(result.Errors, CodeSelfLoop))
}

func TestValidateRejectsExcessOutDegree(t *testing.T) {
	v := newValidator(t)

	b := testutil.NewFlow("wf-1", "Fanout").
		Trigger("t1", 14)

	for _, id := range []string{"a1", "a2", "a3", "a4"} {
		b.EmailAction(id, "x")
	}

	workflow := b.
		DirectEdge("e1", "t1", "a1").
		ConditionalEdge("e2", "t1", "a2").
		ErrorEdge("e3", "t1", "a3").
		DelayEdge("e4", "t1", "a4").
		Build()

	result := v.Validate(workflow)

	require.False(t, result.OK)
	assert.True(t, hasIssue(result.Errors, CodeOutDegreeExceeded))
}

func TestValidateRejectsDanglingEdge(t *testing.T) {
	v := newValidator(t)

	workflow := testutil.NewFlow("wf-1", "Dangling").
		Trigger("t1", 14).
		DirectEdge("e1", "t1", "ghost").
		Build()

	result := v.Validate(workflow)

	require.False(t, result.OK)
	assert.True(t, hasIssue(result.Errors, CodeDanglingEdge))
}

func TestValidateRejectsForgedClassification(t *testing.T) {
	v := newValidator(t)

	workflow := testutil.NewFlow("wf-1", "Forged").
		Trigger("t1", 14).
		EmailAction("a1", "x").
		Build()

	// A payload claiming conditional without the matching handle.
	workflow.Edges = append(workflow.Edges, &models.Edge{
		ID:             "e1",
		SourceID:       "t1",
		TargetID:       "a1",
		Classification: models.EdgeConditional,
	})

	result := v.Validate(workflow)

	require.False(t, result.OK)
	assert.True(t, hasIssue(result.Errors, CodeClassificationForged))
}

func TestValidateRejectsDuplicateIDs(t *testing.T) {
	v := newValidator(t)

	workflow := testutil.NewFlow("wf-1", "Dupes").
		Trigger("t1", 14).
		Trigger("t1", 7).
		Build()

	result := v.Validate(workflow)

	require.False(t, result.OK)
	assert.True(t, hasIssue(result.Errors, CodeDuplicateID))
}

func TestTriggerPresenceOnlyEnforcedWhenActive(t *testing.T) {
	v := newValidator(t)

	draft := testutil.NewFlow("wf-1", "No trigger yet").
		EmailAction("a1", "x").
		Build()

	result := v.Validate(draft)
	assert.False(t, hasIssue(result.Errors, CodeNoTrigger))

	active := testutil.NewFlow("wf-1", "No trigger yet").
		Status(models.WorkflowStatusActive).
		EmailAction("a1", "x").
		Build()

	result = v.Validate(active)
	assert.True(t, hasIssue(result.Errors, CodeNoTrigger))
}

func TestValidateForActivationForcesTriggerRule(t *testing.T) {
	v := newValidator(t)

	draft := testutil.NewFlow("wf-1", "Draft").
		EmailAction("a1", "x").
		Build()

	result := v.ValidateForActivation(draft)

	require.False(t, result.OK)
	assert.True(t, hasIssue(result.Errors, CodeNoTrigger))
	// The candidate is a clone; the draft itself stays a draft.
	assert.Equal(t, models.WorkflowStatusDraft, draft.Status)
}

func TestUnreachableNodeIsWarningNotError(t *testing.T) {
	v := newValidator(t)

	workflow := testutil.NewFlow("wf-1", "Stranded").
		Trigger("t1", 14).
		EmailAction("a1", "x").
		EmailAction("stranded", "y").
		DirectEdge("e1", "t1", "a1").
		Build()

	result := v.Validate(workflow)

	assert.True(t, result.OK)
	assert.True(t, hasIssue(result.Warnings, CodeUnreachableNode))
	assert.False(t, hasIssue(result.Errors, CodeUnreachableNode))
}

func TestValidateRejectsBadNodeConfig(t *testing.T) {
	v := newValidator(t)

	workflow := testutil.NewFlow("wf-1", "Bad config").
		Trigger("t1", 500).
		Build()

	result := v.Validate(workflow)

	require.False(t, result.OK)
	assert.True(t, hasIssue(result.Errors, CodeConfigSchema))
}
