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

// WorkflowStateRepository handles workflow checkpoint database operations.
type WorkflowStateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const workflowStateColumns = `
		id
	  , team_id
	  , agent_id
	  , chain_id
	  , workflow_kind
	  , entity_type
	  , entity_id
	  , status
	  , current_node
	  , state_data
	  , approval_required
	  , paused_at
	  , started_at
	  , updated_at
	  , completed_at
	  , failure_reason
`

func (r *WorkflowStateRepository) Save(ctx context.Context, state *models.WorkflowState) error {
	now := time.Now().UTC()

	if state.StartedAt.IsZero() {
		state.StartedAt = now
	}

	state.UpdatedAt = now

	if state.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow state ID: %w", err)
		}

		state.ID = id.String()
	}

	stateDataJSON, err := json.Marshal(state.StateData)
	if err != nil {
		return fmt.Errorf("failed to marshal state data: %w", err)
	}

	query := `
		INSERT INTO workflow_states (id, team_id, agent_id, chain_id, workflow_kind,
entity_type, entity_id, status, current_node, state_data, approval_required,
paused_at, started_at, updated_at, completed_at, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_node = EXCLUDED.current_node,
			state_data = EXCLUDED.state_data,
			approval_required = EXCLUDED.approval_required,
			paused_at = EXCLUDED.paused_at,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at,
			failure_reason = EXCLUDED.failure_reason
	`

	_, err = r.db.ExecContext(ctx, query,
		state.ID,
		state.TeamID,
		state.AgentID,
		nullString(state.ChainID),
		state.WorkflowKind,
		state.EntityType,
		state.EntityID,
		state.Status,
		state.CurrentNode,
		stateDataJSON,
		state.ApprovalRequired,
		state.PausedAt,
		state.StartedAt,
		state.UpdatedAt,
		state.CompletedAt,
		state.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow state: %w", err)
	}

	return nil
}

func (r *WorkflowStateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowState, error) {
	query := `SELECT ` + workflowStateColumns + ` FROM workflow_states WHERE id = $1`

	state, err := r.scanWorkflowState(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "workflow_state", id, persistence.ErrWorkflowStateNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow state: %w", err)
	}

	return state, nil
}

func (r *WorkflowStateRepository) LatestForEntity(ctx context.Context, entityType models.EntityType, entityID string) (*models.WorkflowState, error) {
	query := `
		SELECT ` + workflowStateColumns + `
		FROM workflow_states
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY started_at DESC
		LIMIT 1
	`

	state, err := r.scanWorkflowState(r.db.QueryRowContext(ctx, query, entityType, entityID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("LatestForEntity", "workflow_state", entityID, persistence.ErrWorkflowStateNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow state: %w", err)
	}

	return state, nil
}

func (r *WorkflowStateRepository) scanWorkflowState(scanner interface {
	Scan(dest ...any) error
}) (*models.WorkflowState, error) {
	var (
		state         models.WorkflowState
		chainID       sql.NullString
		stateDataJSON []byte
	)

	err := scanner.Scan(
		&state.ID,
		&state.TeamID,
		&state.AgentID,
		&chainID,
		&state.WorkflowKind,
		&state.EntityType,
		&state.EntityID,
		&state.Status,
		&state.CurrentNode,
		&stateDataJSON,
		&state.ApprovalRequired,
		&state.PausedAt,
		&state.StartedAt,
		&state.UpdatedAt,
		&state.CompletedAt,
		&state.FailureReason,
	)
	if err != nil {
		return nil, err
	}

	state.ChainID = chainID.String

	if stateDataJSON != nil {
		err := json.Unmarshal(stateDataJSON, &state.StateData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal state data: %w", err)
		}
	}

	return &state, nil
}
