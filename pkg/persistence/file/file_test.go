package file

import (
	"testing"
	"time"

	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/persistence"
	"github.com/fideliza/fideliza/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *WorkflowRepository {
	t.Helper()

	repo, err := NewWorkflowRepository(t.TempDir())
	require.NoError(t, err)

	return repo
}

func draft(id string) *models.Workflow {
	return testutil.NewFlow(id, "Flow "+id).
		Trigger("t1", 14).
		Build()
}

func TestCreateAndGet(t *testing.T) {
	repo := newRepo(t)

	workflow := draft("wf-1")
	require.NoError(t, repo.Create(t.Context(), workflow))

	loaded, err := repo.GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", loaded.ID)
	assert.Equal(t, 1, loaded.Version)

	_, err = repo.GetByID(t.Context(), "ghost")
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestCreateRejectsDuplicate(t *testing.T) {
	repo := newRepo(t)

	require.NoError(t, repo.Create(t.Context(), draft("wf-1")))
	require.Error(t, repo.Create(t.Context(), draft("wf-1")))
}

func TestUpdateDraftStaysInPlace(t *testing.T) {
	repo := newRepo(t)

	workflow := draft("wf-1")
	require.NoError(t, repo.Create(t.Context(), workflow))

	workflow.Name = "Renamed"
	require.NoError(t, repo.Update(t.Context(), workflow, 1))
	assert.Equal(t, 1, workflow.Version)

	_, err := repo.GetVersion(t.Context(), "wf-1", 2)
	require.ErrorIs(t, err, persistence.ErrWorkflowVersionNotFound)
}

func TestUpdateActiveIsCopyOnWrite(t *testing.T) {
	repo := newRepo(t)

	workflow := draft("wf-1")
	workflow.Status = models.WorkflowStatusActive
	require.NoError(t, repo.Create(t.Context(), workflow))

	edited := workflow.Clone()
	edited.Name = "Edited"
	require.NoError(t, repo.Update(t.Context(), edited, 1))
	assert.Equal(t, 2, edited.Version)

	// Both versions stay readable.
	v1, err := repo.GetVersion(t.Context(), "wf-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "Flow wf-1", v1.Name)

	current, err := repo.GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Edited", current.Name)
	assert.Equal(t, 2, current.Version)
}

func TestUpdateRejectsStaleVersion(t *testing.T) {
	repo := newRepo(t)

	workflow := draft("wf-1")
	workflow.Status = models.WorkflowStatusActive
	require.NoError(t, repo.Create(t.Context(), workflow))

	first := workflow.Clone()
	require.NoError(t, repo.Update(t.Context(), first, 1))

	// A second editor still holding version 1.
	stale := workflow.Clone()
	stale.Name = "Stale edit"

	err := repo.Update(t.Context(), stale, 1)
	require.ErrorIs(t, err, persistence.ErrVersionConflict)
	assert.True(t, persistence.IsVersionConflict(err))

	// Nothing was written for the losing editor.
	current, err := repo.GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)
	assert.NotEqual(t, "Stale edit", current.Name)
}

func TestArchiveIsIdempotentSoftDelete(t *testing.T) {
	repo := newRepo(t)

	require.NoError(t, repo.Create(t.Context(), draft("wf-1")))
	require.NoError(t, repo.Archive(t.Context(), "wf-1"))
	require.NoError(t, repo.Archive(t.Context(), "wf-1"))

	archived, err := repo.GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusArchived, archived.Status)
	require.NotNil(t, archived.DeletedAt)

	// Writes against an archived workflow are rejected.
	err = repo.Update(t.Context(), archived, archived.Version)
	require.ErrorIs(t, err, persistence.ErrWorkflowArchived)
}

func TestWorkflowsSurviveReload(t *testing.T) {
	dir := t.TempDir()

	repo, err := NewWorkflowRepository(dir)
	require.NoError(t, err)

	workflow := draft("wf-1")
	workflow.Status = models.WorkflowStatusActive
	require.NoError(t, repo.Create(t.Context(), workflow))

	edited := workflow.Clone()
	require.NoError(t, repo.Update(t.Context(), edited, 1))

	reloaded, err := NewWorkflowRepository(dir)
	require.NoError(t, err)

	current, err := reloaded.GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)

	_, err = reloaded.GetVersion(t.Context(), "wf-1", 1)
	require.NoError(t, err)
}

func TestListFiltersByStatus(t *testing.T) {
	repo := newRepo(t)

	active := draft("wf-active")
	active.Status = models.WorkflowStatusActive
	require.NoError(t, repo.Create(t.Context(), active))
	require.NoError(t, repo.Create(t.Context(), draft("wf-draft")))

	status := models.WorkflowStatusActive

	out, err := repo.List(t.Context(), persistence.ListWorkflowsOptions{Status: &status})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "wf-active", out[0].ID)
}

func TestRunRepositoryDueDelayed(t *testing.T) {
	repo, err := NewRunRepository(t.TempDir())
	require.NoError(t, err)

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	due := now.Add(-time.Minute)
	later := now.Add(time.Hour)

	require.NoError(t, repo.Save(t.Context(), &models.Run{
		ID: "run-due", WorkflowID: "wf-1", State: models.RunStateWaitingDelay, ResumeAt: &due,
	}))
	require.NoError(t, repo.Save(t.Context(), &models.Run{
		ID: "run-later", WorkflowID: "wf-1", State: models.RunStateWaitingDelay, ResumeAt: &later,
	}))
	require.NoError(t, repo.Save(t.Context(), &models.Run{
		ID: "run-done", WorkflowID: "wf-1", State: models.RunStateCompleted,
	}))

	ready, err := repo.DueDelayed(t.Context(), now)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, "run-due", ready[0].ID)
}

func TestRunRepositoryCountByState(t *testing.T) {
	repo, err := NewRunRepository(t.TempDir())
	require.NoError(t, err)

	for i, state := range []models.RunState{
		models.RunStateCompleted,
		models.RunStateCompleted,
		models.RunStateFailed,
		models.RunStateCancelled,
	} {
		require.NoError(t, repo.Save(t.Context(), &models.Run{
			ID:         string(rune('a' + i)),
			WorkflowID: "wf-1",
			State:      state,
		}))
	}

	require.NoError(t, repo.Save(t.Context(), &models.Run{
		ID: "other", WorkflowID: "wf-2", State: models.RunStateCompleted,
	}))

	counts, err := repo.CountByState(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.RunStateCompleted])
	assert.Equal(t, 1, counts[models.RunStateFailed])
	assert.Equal(t, 1, counts[models.RunStateCancelled])
}
