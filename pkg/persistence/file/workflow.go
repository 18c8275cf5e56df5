package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/persistence"
)

// WorkflowRepository keeps every version of every workflow in memory and
// writes through to one JSON file per version. The mutex makes updates
// single-writer, which is all the optimistic version check needs in a
// single process.
type WorkflowRepository struct {
	dir string

	mu       sync.RWMutex
	versions map[string]map[int]*models.Workflow // id -> version -> document
}

func NewWorkflowRepository(root string) (*WorkflowRepository, error) {
	dir := filepath.Join(root, "workflows")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}

	repo := &WorkflowRepository{
		dir:      dir,
		versions: make(map[string]map[int]*models.Workflow),
	}

	if err := repo.load(); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *WorkflowRepository) load() error {
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

		var workflow models.Workflow
		if err := json.Unmarshal(data, &workflow); err != nil {
			return fmt.Errorf("%w: %s: %v", persistence.ErrCorruptedWorkflow, entry.Name(), err)
		}

		if r.versions[workflow.ID] == nil {
			r.versions[workflow.ID] = make(map[int]*models.Workflow)
		}

		r.versions[workflow.ID][workflow.Version] = &workflow
	}

	return nil
}

func (r *WorkflowRepository) path(id string, version int) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s.v%d.json", id, version))
}

func (r *WorkflowRepository) write(workflow *models.Workflow) error {
	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(r.path(workflow.ID, workflow.Version), data, 0600)
}

// current returns the highest stored version. Caller holds the lock.
func (r *WorkflowRepository) current(id string) *models.Workflow {
	byVersion := r.versions[id]
	if len(byVersion) == 0 {
		return nil
	}

	max := 0
	for v := range byVersion {
		if v > max {
			max = v
		}
	}

	return byVersion[max]
}

func (r *WorkflowRepository) List(_ context.Context, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Workflow

	for id := range r.versions {
		workflow := r.current(id)
		if workflow == nil {
			continue
		}

		if opts.Status != nil && workflow.Status != *opts.Status {
			continue
		}

		out = append(out, workflow.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}

		out = out[opts.Offset:]
	}

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}

	return out, nil
}

func (r *WorkflowRepository) Create(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.versions[workflow.ID] != nil {
		return persistence.NewWorkflowError("Create", workflow.ID, fmt.Errorf("workflow already exists"))
	}

	if workflow.Version == 0 {
		workflow.Version = 1
	}

	stored := workflow.Clone()
	r.versions[workflow.ID] = map[int]*models.Workflow{stored.Version: stored}

	return r.write(stored)
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflow := r.current(id)
	if workflow == nil {
		return nil, persistence.ErrWorkflowNotFound
	}

	return workflow.Clone(), nil
}

func (r *WorkflowRepository) GetVersion(_ context.Context, id string, version int) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byVersion := r.versions[id]
	if byVersion == nil {
		return nil, persistence.ErrWorkflowNotFound
	}

	workflow, ok := byVersion[version]
	if !ok {
		return nil, persistence.ErrWorkflowVersionNotFound
	}

	return workflow.Clone(), nil
}

func (r *WorkflowRepository) Update(_ context.Context, workflow *models.Workflow, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.current(workflow.ID)
	if stored == nil {
		return persistence.ErrWorkflowNotFound
	}

	if stored.DeletedAt != nil {
		return persistence.ErrWorkflowArchived
	}

	if stored.Version != expectedVersion {
		return persistence.NewWorkflowError("Update", workflow.ID, persistence.ErrVersionConflict)
	}

	next := workflow.Clone()
	next.UpdatedAt = time.Now().UTC()

	// Active workflows are copy-on-write: in-flight runs keep executing
	// against the version they started with.
	if stored.Status == models.WorkflowStatusActive {
		next.Version = expectedVersion + 1
	} else {
		next.Version = expectedVersion
	}

	r.versions[workflow.ID][next.Version] = next
	workflow.Version = next.Version
	workflow.UpdatedAt = next.UpdatedAt

	return r.write(next)
}

func (r *WorkflowRepository) Archive(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.current(id)
	if stored == nil {
		return persistence.ErrWorkflowNotFound
	}

	if stored.DeletedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	stored.Status = models.WorkflowStatusArchived
	stored.DeletedAt = &now
	stored.UpdatedAt = now

	return r.write(stored)
}
