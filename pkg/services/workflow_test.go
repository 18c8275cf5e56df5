package services_test

import (
	"log/slog"
	"testing"

	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/persistence"
	"github.com/fideliza/fideliza/pkg/persistence/file"
	"github.com/fideliza/fideliza/pkg/registry"
	"github.com/fideliza/fideliza/pkg/services"
	"github.com/fideliza/fideliza/pkg/testutil"
	"github.com/fideliza/fideliza/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupWorkflowService(t *testing.T) (*services.Workflow, *file.Persistence) {
	t.Helper()

	p, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaults()

	return services.NewWorkflow(p, validation.NewValidator(reg)), p
}

func validFlow(name string) *models.Workflow {
	return testutil.NewFlow("ignored", name).
		Trigger("t1", 14).
		EmailAction("a1", "comeback_offer").
		DirectEdge("e1", "t1", "a1").
		Build()
}

func TestCreateAssignsIdentityAndDefaults(t *testing.T) {
	service, _ := setupWorkflowService(t)

	created, result, err := service.Create(t.Context(), validFlow("Reactivation"))
	require.NoError(t, err)
	assert.True(t, result.OK)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, models.WorkflowStatusDraft, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestCreateRejectsNilWorkflow(t *testing.T) {
	service, _ := setupWorkflowService(t)

	_, _, err := service.Create(t.Context(), nil)
	require.ErrorIs(t, err, services.ErrWorkflowNil)
}

func TestCreateRejectsInvalidGraph(t *testing.T) {
	service, _ := setupWorkflowService(t)

	flow := validFlow("Broken")
	flow.Edges = append(flow.Edges, &models.Edge{
		ID: "e-loop", SourceID: "a1", TargetID: "a1",
		Classification: models.EdgeDirect,
	})

	_, result, err := service.Create(t.Context(), flow)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
	assert.False(t, result.OK)

	var issuesErr *services.ValidationIssuesError
	require.ErrorAs(t, err, &issuesErr)
	assert.NotEmpty(t, issuesErr.Issues)
}

func TestUpdatePreservesStatusAndCreatedAt(t *testing.T) {
	service, _ := setupWorkflowService(t)

	created, _, err := service.Create(t.Context(), validFlow("Reactivation"))
	require.NoError(t, err)

	replacement := validFlow("Reactivation renamed")
	replacement.Status = models.WorkflowStatusActive // ignored: status is not editable here

	updated, _, err := service.Update(t.Context(), created.ID, replacement, created.Version)
	require.NoError(t, err)

	assert.Equal(t, "Reactivation renamed", updated.Name)
	assert.Equal(t, models.WorkflowStatusDraft, updated.Status)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestUpdateUnknownWorkflow(t *testing.T) {
	service, _ := setupWorkflowService(t)

	_, _, err := service.Update(t.Context(), "ghost", validFlow("x"), 1)
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestActivateFlipsDraft(t *testing.T) {
	service, _ := setupWorkflowService(t)

	created, _, err := service.Create(t.Context(), validFlow("Reactivation"))
	require.NoError(t, err)

	activated, result, err := service.Activate(t.Context(), created.ID)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, models.WorkflowStatusActive, activated.Status)

	// Activating again is a no-op, not an error.
	again, _, err := service.Activate(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusActive, again.Status)
}

func TestActivateRejectsArchived(t *testing.T) {
	service, _ := setupWorkflowService(t)

	created, _, err := service.Create(t.Context(), validFlow("Reactivation"))
	require.NoError(t, err)
	require.NoError(t, service.Archive(t.Context(), created.ID))

	_, _, err = service.Activate(t.Context(), created.ID)
	require.ErrorIs(t, err, services.ErrNotActivatable)
	assert.True(t, services.IsConflictError(err))
}

func TestActivateInvalidDraftKeepsDraft(t *testing.T) {
	service, _ := setupWorkflowService(t)

	// No trigger node: fine as a draft, blocked at activation.
	flow := testutil.NewFlow("ignored", "Actions only").
		EmailAction("a1", "comeback_offer").
		Build()

	created, _, err := service.Create(t.Context(), flow)
	require.NoError(t, err)

	_, result, err := service.Activate(t.Context(), created.ID)
	require.Error(t, err)
	assert.False(t, result.OK)

	current, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusDraft, current.Status)
}

func TestListWorkflowsRejectsUnknownStatus(t *testing.T) {
	service, _ := setupWorkflowService(t)

	bogus := models.WorkflowStatus("bogus")

	_, err := service.ListWorkflows(t.Context(), services.ListWorkflowsRequest{Status: &bogus})
	require.ErrorIs(t, err, services.ErrInvalidStatus)
}

func TestAttachABTestValidatesConfig(t *testing.T) {
	service, _ := setupWorkflowService(t)

	created, _, err := service.Create(t.Context(), validFlow("Reactivation"))
	require.NoError(t, err)

	updated, err := service.AttachABTest(t.Context(), created.ID, &models.ABTestConfig{
		VariantName:   "aggressive-discount",
		TrafficSplit:  0.25,
		SuccessMetric: "reactivation_rate",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ABTest)
	assert.Equal(t, "aggressive-discount", updated.ABTest.VariantName)

	_, err = service.AttachABTest(t.Context(), created.ID, &models.ABTestConfig{
		TrafficSplit: 0.25,
	})
	require.ErrorIs(t, err, services.ErrInvalidABTest)
}

func TestMetricsAggregatesRunStates(t *testing.T) {
	service, p := setupWorkflowService(t)

	created, _, err := service.Create(t.Context(), validFlow("Reactivation"))
	require.NoError(t, err)

	for i, state := range []models.RunState{
		models.RunStateCompleted,
		models.RunStateFailed,
		models.RunStateCompleted,
	} {
		require.NoError(t, p.RunRepository().Save(t.Context(), &models.Run{
			ID:         string(rune('a' + i)),
			WorkflowID: created.ID,
			State:      state,
		}))
	}

	metrics, err := service.Metrics(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, metrics.Total)
	assert.Equal(t, 2, metrics.ByState[models.RunStateCompleted])

	_, err = service.Metrics(t.Context(), "ghost")
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestCancelRun(t *testing.T) {
	_, p := setupWorkflowService(t)

	runs := services.NewRuns(p, nil)

	require.NoError(t, p.RunRepository().Save(t.Context(), &models.Run{
		ID: "run-1", WorkflowID: "wf-1", State: models.RunStateWaitingDelay,
	}))

	cancelled, err := runs.Cancel(t.Context(), "run-1", "client opted out")
	require.NoError(t, err)
	assert.Equal(t, models.RunStateCancelled, cancelled.State)
	assert.Nil(t, cancelled.ResumeAt)
	require.NotNil(t, cancelled.FinishedAt)

	_, err = runs.Cancel(t.Context(), "run-1", "")
	require.ErrorIs(t, err, services.ErrRunAlreadyFinished)

	_, err = runs.Cancel(t.Context(), "ghost", "")
	require.ErrorIs(t, err, services.ErrRunNotFound)
}
