package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
)

// WorkOrderRepository handles work order database operations.
type WorkOrderRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *WorkOrderRepository) Save(ctx context.Context, workOrder *models.WorkOrder) error {
	now := time.Now().UTC()

	if workOrder.CreatedAt.IsZero() {
		workOrder.CreatedAt = now
	}

	workOrder.UpdatedAt = now

	if workOrder.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate work order ID: %w", err)
		}

		workOrder.ID = id.String()
	}

	tagsJSON, err := json.Marshal(workOrder.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		INSERT INTO work_orders (id, team_id, title, description, status,
budget_cents, tags, pm_copilot_mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			budget_cents = EXCLUDED.budget_cents,
			tags = EXCLUDED.tags,
			pm_copilot_mode = EXCLUDED.pm_copilot_mode,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workOrder.ID,
		workOrder.TeamID,
		workOrder.Title,
		workOrder.Description,
		workOrder.Status,
		workOrder.BudgetCents,
		tagsJSON,
		nullString(string(workOrder.PMCopilotMode)),
		workOrder.CreatedAt,
		workOrder.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save work order: %w", err)
	}

	return nil
}

func (r *WorkOrderRepository) GetByID(ctx context.Context, id string) (*models.WorkOrder, error) {
	query := `
		SELECT
			id
		  , team_id
		  , title
		  , description
		  , status
		  , budget_cents
		  , tags
		  , pm_copilot_mode
		  , created_at
		  , updated_at
		FROM work_orders
		WHERE id = $1
	`

	var (
		workOrder models.WorkOrder
		tagsJSON  []byte
		mode      sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&workOrder.ID,
		&workOrder.TeamID,
		&workOrder.Title,
		&workOrder.Description,
		&workOrder.Status,
		&workOrder.BudgetCents,
		&tagsJSON,
		&mode,
		&workOrder.CreatedAt,
		&workOrder.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "work_order", id, persistence.ErrWorkOrderNotFound)
		}

		return nil, fmt.Errorf("failed to scan work order: %w", err)
	}

	workOrder.PMCopilotMode = models.CopilotMode(mode.String)

	if tagsJSON != nil {
		err := json.Unmarshal(tagsJSON, &workOrder.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}

	return &workOrder, nil
}

func (r *WorkOrderRepository) UpdateCopilotMode(ctx context.Context, id string, mode models.CopilotMode) error {
	query := `UPDATE work_orders SET pm_copilot_mode = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, string(mode))
	if err != nil {
		return fmt.Errorf("failed to update copilot mode: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewStoreError("UpdateCopilotMode", "work_order", id, persistence.ErrWorkOrderNotFound)
	}

	return nil
}
