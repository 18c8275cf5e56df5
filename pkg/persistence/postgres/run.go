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

type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

func (r *RunRepository) Save(ctx context.Context, run *models.Run) error {
	history, err := json.Marshal(run.History)
	if err != nil {
		return fmt.Errorf("failed to marshal run history: %w", err)
	}

	query := `
		INSERT INTO runs (id, workflow_id, workflow_version, entity_id, state, cursor, resume_at, history, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET state = EXCLUDED.state,
		    cursor = EXCLUDED.cursor,
		    resume_at = EXCLUDED.resume_at,
		    history = EXCLUDED.history,
		    finished_at = EXCLUDED.finished_at
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.WorkflowID,
		run.WorkflowVersion,
		run.EntityID,
		string(run.State),
		run.Cursor,
		run.ResumeAt,
		history,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return persistence.NewRunError("Save", run.ID, err)
	}

	return nil
}

const runColumns = `id, workflow_id, workflow_version, entity_id, state, cursor, resume_at, history, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run        models.Run
		state      string
		resumeAt   sql.NullTime
		history    []byte
		finishedAt sql.NullTime
	)

	err := row.Scan(
		&run.ID,
		&run.WorkflowID,
		&run.WorkflowVersion,
		&run.EntityID,
		&state,
		&run.Cursor,
		&resumeAt,
		&history,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.State = models.RunState(state)

	if resumeAt.Valid {
		t := resumeAt.Time
		run.ResumeAt = &t
	}

	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}

	if err := json.Unmarshal(history, &run.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run history: %w", err)
	}

	return &run, nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrRunNotFound
	}

	if err != nil {
		return nil, persistence.NewRunError("GetByID", id, err)
	}

	return run, nil
}

func (r *RunRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE workflow_id = $1 ORDER BY started_at DESC`

	return r.queryRuns(ctx, query, workflowID)
}

func (r *RunRepository) DueDelayed(ctx context.Context, before time.Time) ([]*models.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE state = $1 AND resume_at IS NOT NULL AND resume_at <= $2
		ORDER BY resume_at ASC
	`

	return r.queryRuns(ctx, query, string(models.RunStateWaitingDelay), before)
}

func (r *RunRepository) queryRuns(ctx context.Context, query string, args ...any) ([]*models.Run, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	runs := make([]*models.Run, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

func (r *RunRepository) CountByState(ctx context.Context, workflowID string) (map[models.RunState]int, error) {
	query := `SELECT state, COUNT(*) FROM runs WHERE workflow_id = $1 GROUP BY state`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	counts := make(map[models.RunState]int)

	for rows.Next() {
		var (
			state string
			count int
		)

		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan run count: %w", err)
		}

		counts[models.RunState(state)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run counts: %w", err)
	}

	return counts, nil
}
