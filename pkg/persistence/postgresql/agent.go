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

// AgentConfigRepository handles agent settings database operations.
type AgentConfigRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const agentConfigColumns = `
		id
	  , team_id
	  , name
	  , enabled
	  , mode
	  , daily_cap_cents
	  , monthly_cap_cents
	  , permissions
	  , created_at
	  , updated_at
`

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

	permissionsJSON, err := json.Marshal(config.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO agent_configs (id, team_id, name, enabled, mode,
daily_cap_cents, monthly_cap_cents, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (team_id) DO UPDATE SET
			name = EXCLUDED.name,
			enabled = EXCLUDED.enabled,
			mode = EXCLUDED.mode,
			daily_cap_cents = EXCLUDED.daily_cap_cents,
			monthly_cap_cents = EXCLUDED.monthly_cap_cents,
			permissions = EXCLUDED.permissions,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		config.ID,
		config.TeamID,
		config.Name,
		config.Enabled,
		config.Mode,
		config.DailyCapCents,
		config.MonthlyCapCents,
		permissionsJSON,
		config.CreatedAt,
		config.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save agent config: %w", err)
	}

	return nil
}

func (r *AgentConfigRepository) GetByID(ctx context.Context, id string) (*models.AgentConfig, error) {
	query := `SELECT ` + agentConfigColumns + ` FROM agent_configs WHERE id = $1`

	config, err := r.scanAgentConfig(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "agent_config", id, persistence.ErrAgentConfigNotFound)
		}

		return nil, fmt.Errorf("failed to scan agent config: %w", err)
	}

	return config, nil
}

func (r *AgentConfigRepository) GetByTeam(ctx context.Context, teamID string) (*models.AgentConfig, error) {
	query := `SELECT ` + agentConfigColumns + ` FROM agent_configs WHERE team_id = $1`

	config, err := r.scanAgentConfig(r.db.QueryRowContext(ctx, query, teamID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByTeam", "agent_config", teamID, persistence.ErrAgentConfigNotFound)
		}

		return nil, fmt.Errorf("failed to scan agent config: %w", err)
	}

	return config, nil
}

func (r *AgentConfigRepository) ListAll(ctx context.Context) ([]*models.AgentConfig, error) {
	query := `SELECT ` + agentConfigColumns + ` FROM agent_configs ORDER BY team_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent configs: %w", err)
	}
	defer rows.Close()

	var configs []*models.AgentConfig

	for rows.Next() {
		config, err := r.scanAgentConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent config: %w", err)
		}

		configs = append(configs, config)
	}

	return configs, rows.Err()
}

func (r *AgentConfigRepository) scanAgentConfig(scanner interface {
	Scan(dest ...any) error
}) (*models.AgentConfig, error) {
	var (
		config          models.AgentConfig
		permissionsJSON []byte
	)

	err := scanner.Scan(
		&config.ID,
		&config.TeamID,
		&config.Name,
		&config.Enabled,
		&config.Mode,
		&config.DailyCapCents,
		&config.MonthlyCapCents,
		&permissionsJSON,
		&config.CreatedAt,
		&config.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if permissionsJSON != nil {
		err := json.Unmarshal(permissionsJSON, &config.Permissions)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	return &config, nil
}
