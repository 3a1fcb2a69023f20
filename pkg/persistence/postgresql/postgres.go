// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/foreman-hq/foreman/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	triggerRepo       *TriggerRepository
	chainRepo         *ChainRepository
	workflowStateRepo *WorkflowStateRepository
	inboxRepo         *InboxRepository
	agentConfigRepo   *AgentConfigRepository
	workOrderRepo     *WorkOrderRepository
	deliverableRepo   *DeliverableRepository
	taskRepo          *TaskRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending
// migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:     database,
		logger: logger,

		triggerRepo:       &TriggerRepository{db: database, logger: logger},
		chainRepo:         &ChainRepository{db: database, logger: logger},
		workflowStateRepo: &WorkflowStateRepository{db: database, logger: logger},
		inboxRepo:         &InboxRepository{db: database, logger: logger},
		agentConfigRepo:   &AgentConfigRepository{db: database, logger: logger},
		workOrderRepo:     &WorkOrderRepository{db: database, logger: logger},
		deliverableRepo:   &DeliverableRepository{db: database, logger: logger},
		taskRepo:          &TaskRepository{db: database, logger: logger},
	}, nil
}

func (p *Persistence) TriggerRepository() persistence.TriggerRepository {
	return p.triggerRepo
}

func (p *Persistence) ChainRepository() persistence.ChainRepository {
	return p.chainRepo
}

func (p *Persistence) WorkflowStateRepository() persistence.WorkflowStateRepository {
	return p.workflowStateRepo
}

func (p *Persistence) InboxRepository() persistence.InboxRepository {
	return p.inboxRepo
}

func (p *Persistence) AgentConfigRepository() persistence.AgentConfigRepository {
	return p.agentConfigRepo
}

func (p *Persistence) WorkOrderRepository() persistence.WorkOrderRepository {
	return p.workOrderRepo
}

func (p *Persistence) DeliverableRepository() persistence.DeliverableRepository {
	return p.deliverableRepo
}

func (p *Persistence) TaskRepository() persistence.TaskRepository {
	return p.taskRepo
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
