package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/persistence"
)

// RunRepository stores runs as one JSON file each, mirrored in memory.
type RunRepository struct {
	dir string

	mu   sync.RWMutex
	runs map[string]*models.Run
}

func NewRunRepository(root string) (*RunRepository, error) {
	dir := filepath.Join(root, "runs")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}

	repo := &RunRepository{
		dir:  dir,
		runs: make(map[string]*models.Run),
	}

	if err := repo.load(); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *RunRepository) load() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			return err
		}

		var run models.Run
		if err := json.Unmarshal(data, &run); err != nil {
			return err
		}

		r.runs[run.ID] = &run
	}

	return nil
}

func cloneRun(run *models.Run) *models.Run {
	clone := *run
	clone.History = make([]models.RunStep, len(run.History))
	copy(clone.History, run.History)

	return &clone
}

func (r *RunRepository) Save(_ context.Context, run *models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneRun(run)
	r.runs[run.ID] = stored

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(r.dir, run.ID+".json"), data, 0600)
}

func (r *RunRepository) GetByID(_ context.Context, id string) (*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, persistence.ErrRunNotFound
	}

	return cloneRun(run), nil
}

func (r *RunRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Run

	for _, run := range r.runs {
		if run.WorkflowID == workflowID {
			out = append(out, cloneRun(run))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	return out, nil
}

func (r *RunRepository) DueDelayed(_ context.Context, before time.Time) ([]*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []*models.Run

	for _, run := range r.runs {
		if run.State != models.RunStateWaitingDelay || run.ResumeAt == nil {
			continue
		}

		if !run.ResumeAt.After(before) {
			due = append(due, cloneRun(run))
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ResumeAt.Before(*due[j].ResumeAt)
	})

	return due, nil
}

func (r *RunRepository) CountByState(_ context.Context, workflowID string) (map[models.RunState]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[models.RunState]int)

	for _, run := range r.runs {
		if run.WorkflowID == workflowID {
			counts[run.State]++
		}
	}

	return counts, nil
}
