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

// TriggerRepository handles trigger-related database operations.
type TriggerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const triggerColumns = `
		id
	  , team_id
	  , chain_id
	  , name
	  , entity_type
	  , status_from
	  , status_to
	  , priority
	  , enabled
	  , trigger_conditions
	  , last_triggered_at
	  , created_at
	  , updated_at
`

func (r *TriggerRepository) Save(ctx context.Context, trigger *models.Trigger) error {
	now := time.Now().UTC()

	if trigger.CreatedAt.IsZero() {
		trigger.CreatedAt = now
	}

	trigger.UpdatedAt = now

	if trigger.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate trigger ID: %w", err)
		}

		trigger.ID = id.String()
	}

	conditionsJSON, err := json.Marshal(trigger.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger conditions: %w", err)
	}

	query := `
		INSERT INTO triggers (id, team_id, chain_id, name, entity_type,
status_from, status_to, priority, enabled, trigger_conditions, last_triggered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			team_id = EXCLUDED.team_id,
			chain_id = EXCLUDED.chain_id,
			name = EXCLUDED.name,
			entity_type = EXCLUDED.entity_type,
			status_from = EXCLUDED.status_from,
			status_to = EXCLUDED.status_to,
			priority = EXCLUDED.priority,
			enabled = EXCLUDED.enabled,
			trigger_conditions = EXCLUDED.trigger_conditions,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		trigger.ID,
		trigger.TeamID,
		nullString(trigger.ChainID),
		trigger.Name,
		trigger.EntityType,
		trigger.StatusFrom,
		trigger.StatusTo,
		trigger.Priority,
		trigger.Enabled,
		conditionsJSON,
		trigger.LastTriggeredAt,
		trigger.CreatedAt,
		trigger.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save trigger: %w", err)
	}

	return nil
}

func (r *TriggerRepository) GetByID(ctx context.Context, id string) (*models.Trigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM triggers WHERE id = $1`

	trigger, err := r.scanTrigger(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "trigger", id, persistence.ErrTriggerNotFound)
		}

		return nil, fmt.Errorf("failed to scan trigger: %w", err)
	}

	return trigger, nil
}

func (r *TriggerRepository) ListByTeam(ctx context.Context, teamID string) ([]*models.Trigger, error) {
	query := `
		SELECT ` + triggerColumns + `
		FROM triggers
		WHERE team_id = $1
		ORDER BY priority DESC, created_at ASC, id ASC
	`

	return r.queryTriggers(ctx, query, teamID)
}

// ListForEvent returns enabled triggers whose scope and status filters accept
// the transition, ordered for dispatch. NULL status columns are wildcards.
func (r *TriggerRepository) ListForEvent(ctx context.Context, teamID string, entityType models.EntityType, fromStatus, toStatus string) ([]*models.Trigger, error) {
	query := `
		SELECT ` + triggerColumns + `
		FROM triggers
		WHERE team_id = $1
		  AND entity_type = $2
		  AND enabled = true
		  AND (status_from IS NULL OR status_from = $3)
		  AND (status_to IS NULL OR status_to = $4)
		ORDER BY priority DESC, created_at ASC, id ASC
	`

	return r.queryTriggers(ctx, query, teamID, entityType, fromStatus, toStatus)
}

// MarkTriggered stamps last_triggered_at with a single UPDATE so concurrent
// firings never clobber other trigger fields.
func (r *TriggerRepository) MarkTriggered(ctx context.Context, triggerID string, firedAt time.Time) error {
	query := `UPDATE triggers SET last_triggered_at = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, triggerID, firedAt)
	if err != nil {
		return fmt.Errorf("failed to mark trigger: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewStoreError("MarkTriggered", "trigger", triggerID, persistence.ErrTriggerNotFound)
	}

	return nil
}

func (r *TriggerRepository) queryTriggers(ctx context.Context, query string, args ...any) ([]*models.Trigger, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query triggers: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	triggers := make([]*models.Trigger, 0)

	for rows.Next() {
		trigger, err := r.scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trigger: %w", err)
		}

		triggers = append(triggers, trigger)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating triggers: %w", err)
	}

	return triggers, nil
}

func (r *TriggerRepository) scanTrigger(scanner interface {
	Scan(dest ...any) error
}) (*models.Trigger, error) {
	var (
		trigger        models.Trigger
		chainID        sql.NullString
		conditionsJSON []byte
	)

	err := scanner.Scan(
		&trigger.ID,
		&trigger.TeamID,
		&chainID,
		&trigger.Name,
		&trigger.EntityType,
		&trigger.StatusFrom,
		&trigger.StatusTo,
		&trigger.Priority,
		&trigger.Enabled,
		&conditionsJSON,
		&trigger.LastTriggeredAt,
		&trigger.CreatedAt,
		&trigger.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	trigger.ChainID = chainID.String

	if conditionsJSON != nil {
		err := json.Unmarshal(conditionsJSON, &trigger.Conditions)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger conditions: %w", err)
		}
	}

	return &trigger, nil
}

// nullString maps the empty string to SQL NULL, used for optional UUID
// columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
