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

// ChainRepository handles chain-related database operations.
type ChainRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *ChainRepository) Save(ctx context.Context, chain *models.Chain) error {
	now := time.Now().UTC()

	if chain.CreatedAt.IsZero() {
		chain.CreatedAt = now
	}

	chain.UpdatedAt = now

	if chain.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate chain ID: %w", err)
		}

		chain.ID = id.String()
	}

	configJSON, err := json.Marshal(chain.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal chain config: %w", err)
	}

	query := `
		INSERT INTO chains (id, team_id, name, kind, agent_id, enabled, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			team_id = EXCLUDED.team_id,
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			agent_id = EXCLUDED.agent_id,
			enabled = EXCLUDED.enabled,
			config = EXCLUDED.config,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		chain.ID,
		chain.TeamID,
		chain.Name,
		chain.Kind,
		chain.AgentID,
		chain.Enabled,
		configJSON,
		chain.CreatedAt,
		chain.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save chain: %w", err)
	}

	return nil
}

func (r *ChainRepository) GetByID(ctx context.Context, id string) (*models.Chain, error) {
	query := `
		SELECT
			id
		  , team_id
		  , name
		  , kind
		  , agent_id
		  , enabled
		  , config
		  , created_at
		  , updated_at
		FROM chains
		WHERE id = $1
	`

	var (
		chain      models.Chain
		configJSON []byte
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&chain.ID,
		&chain.TeamID,
		&chain.Name,
		&chain.Kind,
		&chain.AgentID,
		&chain.Enabled,
		&configJSON,
		&chain.CreatedAt,
		&chain.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "chain", id, persistence.ErrChainNotFound)
		}

		return nil, fmt.Errorf("failed to scan chain: %w", err)
	}

	if configJSON != nil {
		err := json.Unmarshal(configJSON, &chain.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal chain config: %w", err)
		}
	}

	return &chain, nil
}
