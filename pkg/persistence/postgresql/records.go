package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/foreman-hq/foreman/pkg/models"
)

// DeliverableRepository handles deliverable database operations.
type DeliverableRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *DeliverableRepository) Save(ctx context.Context, deliverable *models.Deliverable) error {
	now := time.Now().UTC()

	if deliverable.CreatedAt.IsZero() {
		deliverable.CreatedAt = now
	}

	deliverable.UpdatedAt = now

	if deliverable.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate deliverable ID: %w", err)
		}

		deliverable.ID = id.String()
	}

	query := `
		INSERT INTO deliverables (id, team_id, work_order_id, title, description,
status, due_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			due_at = EXCLUDED.due_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		deliverable.ID,
		deliverable.TeamID,
		deliverable.WorkOrderID,
		deliverable.Title,
		deliverable.Description,
		deliverable.Status,
		deliverable.DueAt,
		deliverable.CreatedBy,
		deliverable.CreatedAt,
		deliverable.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save deliverable: %w", err)
	}

	return nil
}

func (r *DeliverableRepository) ListByWorkOrder(ctx context.Context, workOrderID string) ([]*models.Deliverable, error) {
	query := `
		SELECT
			id
		  , team_id
		  , work_order_id
		  , title
		  , description
		  , status
		  , due_at
		  , created_by
		  , created_at
		  , updated_at
		FROM deliverables
		WHERE work_order_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliverables: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	deliverables := make([]*models.Deliverable, 0)

	for rows.Next() {
		var deliverable models.Deliverable

		err := rows.Scan(
			&deliverable.ID,
			&deliverable.TeamID,
			&deliverable.WorkOrderID,
			&deliverable.Title,
			&deliverable.Description,
			&deliverable.Status,
			&deliverable.DueAt,
			&deliverable.CreatedBy,
			&deliverable.CreatedAt,
			&deliverable.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deliverable: %w", err)
		}

		deliverables = append(deliverables, &deliverable)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating deliverables: %w", err)
	}

	return deliverables, nil
}

func (r *DeliverableRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM deliverables WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deliverable: %w", err)
	}

	return nil
}

// TaskRepository handles task database operations.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()

	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	task.UpdatedAt = now

	if task.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate task ID: %w", err)
		}

		task.ID = id.String()
	}

	query := `
		INSERT INTO tasks (id, team_id, work_order_id, title, description,
status, due_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			due_at = EXCLUDED.due_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.TeamID,
		task.WorkOrderID,
		task.Title,
		task.Description,
		task.Status,
		task.DueAt,
		task.CreatedBy,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	return nil
}

func (r *TaskRepository) ListByWorkOrder(ctx context.Context, workOrderID string) ([]*models.Task, error) {
	query := `
		SELECT
			id
		  , team_id
		  , work_order_id
		  , title
		  , description
		  , status
		  , due_at
		  , created_by
		  , created_at
		  , updated_at
		FROM tasks
		WHERE work_order_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		var task models.Task

		err := rows.Scan(
			&task.ID,
			&task.TeamID,
			&task.WorkOrderID,
			&task.Title,
			&task.Description,
			&task.Status,
			&task.DueAt,
			&task.CreatedBy,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, &task)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}
