package file

import (
	"context"
	"fmt"
	"time"

	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/google/uuid"
)

const workflowStatesCollection = "workflow_states"

// WorkflowStateRepository handles workflow checkpoint storage on the file
// system.
type WorkflowStateRepository struct {
	store *store
}

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

	return r.store.write(workflowStatesCollection, state.ID, state)
}

func (r *WorkflowStateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowState, error) {
	state := &models.WorkflowState{}

	found, err := r.store.read(workflowStatesCollection, id, state)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "workflow_state", id, persistence.ErrWorkflowStateNotFound)
	}

	return state, nil
}

func (r *WorkflowStateRepository) LatestForEntity(ctx context.Context, entityType models.EntityType, entityID string) (*models.WorkflowState, error) {
	ids, err := r.store.ids(workflowStatesCollection)
	if err != nil {
		return nil, err
	}

	var latest *models.WorkflowState

	for _, id := range ids {
		state := &models.WorkflowState{}

		found, err := r.store.read(workflowStatesCollection, id, state)
		if err != nil {
			return nil, err
		}

		if !found || state.EntityType != entityType || state.EntityID != entityID {
			continue
		}

		if latest == nil || state.StartedAt.After(latest.StartedAt) {
			latest = state
		}
	}

	if latest == nil {
		return nil, persistence.NewStoreError("LatestForEntity", "workflow_state", entityID, persistence.ErrWorkflowStateNotFound)
	}

	return latest, nil
}
