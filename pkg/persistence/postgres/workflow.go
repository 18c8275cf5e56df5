package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/persistence"
)

// WorkflowRepository stores the full workflow document as JSONB, one row
// per version. Optimistic concurrency rides on the (id, version) primary
// key: a conflicting writer loses the insert race inside the transaction.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	query := `
		SELECT DISTINCT ON (id) document
		FROM workflow_versions
		ORDER BY id, version DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		var workflow models.Workflow
		if err := json.Unmarshal(document, &workflow); err != nil {
			return nil, fmt.Errorf("%w: %v", persistence.ErrCorruptedWorkflow, err)
		}

		if opts.Status != nil && workflow.Status != *opts.Status {
			continue
		}

		workflows = append(workflows, &workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	// Listing volume is editor-scale; page after the status filter.
	if opts.Offset > 0 {
		if opts.Offset >= len(workflows) {
			return []*models.Workflow{}, nil
		}

		workflows = workflows[opts.Offset:]
	}

	if opts.Limit > 0 && len(workflows) > opts.Limit {
		workflows = workflows[:opts.Limit]
	}

	return workflows, nil
}

func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	if workflow.Version == 0 {
		workflow.Version = 1
	}

	return r.insertVersion(ctx, r.db, workflow)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *WorkflowRepository) insertVersion(ctx context.Context, db execer, workflow *models.Workflow) error {
	document, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	query := `
		INSERT INTO workflow_versions (id, version, name, status, document, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Version,
		workflow.Name,
		string(workflow.Status),
		document,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.DeletedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Create", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT document
		FROM workflow_versions
		WHERE id = $1
		ORDER BY version DESC
		LIMIT 1
	`

	return r.scanDocument(r.db.QueryRowContext(ctx, query, id), persistence.ErrWorkflowNotFound)
}

func (r *WorkflowRepository) GetVersion(ctx context.Context, id string, version int) (*models.Workflow, error) {
	query := `
		SELECT document
		FROM workflow_versions
		WHERE id = $1 AND version = $2
	`

	return r.scanDocument(r.db.QueryRowContext(ctx, query, id, version), persistence.ErrWorkflowVersionNotFound)
}

func (r *WorkflowRepository) scanDocument(row *sql.Row, notFound error) (*models.Workflow, error) {
	var document []byte

	err := row.Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	var workflow models.Workflow
	if err := json.Unmarshal(document, &workflow); err != nil {
		return nil, fmt.Errorf("%w: %v", persistence.ErrCorruptedWorkflow, err)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) Update(ctx context.Context, workflow *models.Workflow, expectedVersion int) error {
	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewWorkflowError("Update", workflow.ID, err)
	}

	defer func() { _ = transaction.Rollback() }()

	var (
		currentVersion int
		status         string
		deletedAt      sql.NullTime
	)

	query := `
		SELECT version, status, deleted_at
		FROM workflow_versions
		WHERE id = $1
		ORDER BY version DESC
		LIMIT 1
		FOR UPDATE
	`

	err = transaction.QueryRowContext(ctx, query, workflow.ID).Scan(&currentVersion, &status, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrWorkflowNotFound
	}

	if err != nil {
		return persistence.NewWorkflowError("Update", workflow.ID, err)
	}

	if deletedAt.Valid {
		return persistence.ErrWorkflowArchived
	}

	if currentVersion != expectedVersion {
		return persistence.NewWorkflowError("Update", workflow.ID, persistence.ErrVersionConflict)
	}

	workflow.UpdatedAt = time.Now().UTC()

	if models.WorkflowStatus(status) == models.WorkflowStatusActive {
		// Copy-on-write: the active version stays readable for in-flight
		// runs; the update lands as a new version.
		workflow.Version = expectedVersion + 1

		if err := r.insertVersion(ctx, transaction, workflow); err != nil {
			return err
		}
	} else {
		workflow.Version = expectedVersion

		document, err := json.Marshal(workflow)
		if err != nil {
			return fmt.Errorf("failed to marshal workflow: %w", err)
		}

		updateQuery := `
			UPDATE workflow_versions
			SET name = $3, status = $4, document = $5, updated_at = $6
			WHERE id = $1 AND version = $2
		`

		_, err = transaction.ExecContext(ctx, updateQuery,
			workflow.ID, workflow.Version, workflow.Name, string(workflow.Status), document, workflow.UpdatedAt)
		if err != nil {
			return persistence.NewWorkflowError("Update", workflow.ID, err)
		}
	}

	if err := transaction.Commit(); err != nil {
		return persistence.NewWorkflowError("Update", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) Archive(ctx context.Context, id string) error {
	workflow, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if workflow.DeletedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	workflow.Status = models.WorkflowStatusArchived
	workflow.DeletedAt = &now
	workflow.UpdatedAt = now

	document, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	query := `
		UPDATE workflow_versions
		SET status = $3, document = $4, updated_at = $5, deleted_at = $5
		WHERE id = $1 AND version = $2
	`

	_, err = r.db.ExecContext(ctx, query, id, workflow.Version, string(workflow.Status), document, now)
	if err != nil {
		return persistence.NewWorkflowError("Archive", id, err)
	}

	return nil
}
