package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/foreman-hq/foreman/pkg/triggers"
)

// Trigger is the application service behind the trigger management
// endpoints.
type Trigger struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewTrigger creates a new trigger service.
func NewTrigger(p persistence.Persistence, logger *slog.Logger) *Trigger {
	return &Trigger{
		persistence: p,
		logger:      logger.With("module", "trigger_service"),
	}
}

// Create validates and persists a trigger rule. The condition map is checked
// against the conditions schema here so malformed conditions never reach the
// matching pipeline, and the referenced chain must exist.
func (t *Trigger) Create(ctx context.Context, trigger *models.Trigger) (*models.Trigger, error) {
	if err := triggers.ValidateConditions(trigger.Conditions); err != nil {
		return nil, NewValidationError("Create", "invalid_conditions", err.Error(), ErrInvalidRequest)
	}

	if _, err := t.persistence.ChainRepository().GetByID(ctx, trigger.ChainID); err != nil {
		if persistence.IsChainNotFound(err) {
			return nil, NewValidationError("Create", "unknown_chain",
				fmt.Sprintf("chain %s does not exist", trigger.ChainID), ErrInvalidRequest)
		}

		return nil, fmt.Errorf("failed to load chain: %w", err)
	}

	if err := t.persistence.TriggerRepository().Save(ctx, trigger); err != nil {
		return nil, fmt.Errorf("failed to save trigger: %w", err)
	}

	t.logger.Info("Trigger created",
		"trigger_id", trigger.ID,
		"team_id", trigger.TeamID,
		"chain_id", trigger.ChainID)

	return trigger, nil
}

// List returns all triggers for a team.
func (t *Trigger) List(ctx context.Context, teamID string) ([]*models.Trigger, error) {
	list, err := t.persistence.TriggerRepository().ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}

	return list, nil
}

// Get returns one trigger by ID.
func (t *Trigger) Get(ctx context.Context, id string) (*models.Trigger, error) {
	trigger, err := t.persistence.TriggerRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load trigger: %w", err)
	}

	return trigger, nil
}
