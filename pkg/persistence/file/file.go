// Package file provides file-based persistence for dev environments and
// tests. Documents are JSON on disk, mirrored in memory behind a RWMutex.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/fideliza/fideliza/pkg/persistence"
)

type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
	runRepo      *RunRepository
}

func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	if err := os.MkdirAll(cleanRoot, 0750); err != nil {
		return nil, err
	}

	workflowRepo, err := NewWorkflowRepository(cleanRoot)
	if err != nil {
		return nil, err
	}

	runRepo, err := NewRunRepository(cleanRoot)
	if err != nil {
		return nil, err
	}

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: workflowRepo,
		runRepo:      runRepo,
	}, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) RunRepository() persistence.RunRepository {
	return p.runRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
