package file

import (
	"context"
	"fmt"
	"time"

	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/google/uuid"
)

const agentConfigsCollection = "agent_configs"

// AgentConfigRepository handles agent settings storage on the file system.
type AgentConfigRepository struct {
	store *store
}

func (r *AgentConfigRepository) Save(ctx context.Context, config *models.AgentConfig) error {
	now := time.Now().UTC()

	if config.CreatedAt.IsZero() {
		config.CreatedAt = now
	}

	config.UpdatedAt = now

	if config.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate agent config ID: %w", err)
		}

		config.ID = id.String()
	}

	return r.store.write(agentConfigsCollection, config.ID, config)
}

func (r *AgentConfigRepository) GetByID(ctx context.Context, id string) (*models.AgentConfig, error) {
	config := &models.AgentConfig{}

	found, err := r.store.read(agentConfigsCollection, id, config)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "agent_config", id, persistence.ErrAgentConfigNotFound)
	}

	return config, nil
}

func (r *AgentConfigRepository) ListAll(ctx context.Context) ([]*models.AgentConfig, error) {
	ids, err := r.store.ids(agentConfigsCollection)
	if err != nil {
		return nil, err
	}

	configs := make([]*models.AgentConfig, 0, len(ids))

	for _, id := range ids {
		config := &models.AgentConfig{}

		found, err := r.store.read(agentConfigsCollection, id, config)
		if err != nil {
			return nil, err
		}

		if found {
			configs = append(configs, config)
		}
	}

	return configs, nil
}

func (r *AgentConfigRepository) GetByTeam(ctx context.Context, teamID string) (*models.AgentConfig, error) {
	ids, err := r.store.ids(agentConfigsCollection)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		config := &models.AgentConfig{}

		found, err := r.store.read(agentConfigsCollection, id, config)
		if err != nil {
			return nil, err
		}

		if found && config.TeamID == teamID {
			return config, nil
		}
	}

	return nil, persistence.NewStoreError("GetByTeam", "agent_config", teamID, persistence.ErrAgentConfigNotFound)
}
