// Package persistence provides the data storage abstraction for triggers,
// workflow states, approvals, and the domain records the copilot
// materializes.
package persistence

import (
	"context"
	"time"

	"github.com/foreman-hq/foreman/pkg/models"
)

// TriggerRepository stores trigger rules.
type TriggerRepository interface {
	Save(ctx context.Context, trigger *models.Trigger) error
	GetByID(ctx context.Context, id string) (*models.Trigger, error)
	ListByTeam(ctx context.Context, teamID string) ([]*models.Trigger, error)

	// ListForEvent returns enabled triggers scoped to team + entity type
	// whose status filters accept the transition (nil filter = wildcard),
	// ordered by priority desc, created_at asc, id asc. The chain-enabled
	// check is the matcher's job, not the query's.
	ListForEvent(ctx context.Context, teamID string, entityType models.EntityType, fromStatus, toStatus string) ([]*models.Trigger, error)

	// MarkTriggered stamps last_triggered_at as a single-field atomic
	// update. It must not go through a read-modify-write of the whole row,
	// since two events may race to fire the same trigger.
	MarkTriggered(ctx context.Context, triggerID string, firedAt time.Time) error
}

// ChainRepository stores workflow definitions referenced by triggers.
type ChainRepository interface {
	Save(ctx context.Context, chain *models.Chain) error
	GetByID(ctx context.Context, id string) (*models.Chain, error)
}

// WorkflowStateRepository stores workflow run checkpoints.
type WorkflowStateRepository interface {
	Save(ctx context.Context, state *models.WorkflowState) error
	GetByID(ctx context.Context, id string) (*models.WorkflowState, error)

	// LatestForEntity returns the most recently started run for an entity,
	// or ErrWorkflowStateNotFound.
	LatestForEntity(ctx context.Context, entityType models.EntityType, entityID string) (*models.WorkflowState, error)
}

// InboxRepository stores human-facing approval items.
type InboxRepository interface {
	Save(ctx context.Context, item *models.InboxItem) error
	GetByID(ctx context.Context, id string) (*models.InboxItem, error)
	ListPendingByTeam(ctx context.Context, teamID string) ([]*models.InboxItem, error)
}

// AgentConfigRepository stores per-team agent settings and budgets.
type AgentConfigRepository interface {
	Save(ctx context.Context, config *models.AgentConfig) error
	GetByID(ctx context.Context, id string) (*models.AgentConfig, error)
	GetByTeam(ctx context.Context, teamID string) (*models.AgentConfig, error)
	ListAll(ctx context.Context) ([]*models.AgentConfig, error)
}

// WorkOrderRepository reads work orders and updates their copilot settings.
type WorkOrderRepository interface {
	Save(ctx context.Context, workOrder *models.WorkOrder) error
	GetByID(ctx context.Context, id string) (*models.WorkOrder, error)
	UpdateCopilotMode(ctx context.Context, id string, mode models.CopilotMode) error
}

// DeliverableRepository stores deliverables materialized from approved
// suggestions.
type DeliverableRepository interface {
	Save(ctx context.Context, deliverable *models.Deliverable) error
	ListByWorkOrder(ctx context.Context, workOrderID string) ([]*models.Deliverable, error)

	// Delete removes a record; deleting a missing record is not an error.
	// It exists so a failed approval can take back the record it created.
	Delete(ctx context.Context, id string) error
}

// TaskRepository stores tasks materialized from approved suggestions.
type TaskRepository interface {
	Save(ctx context.Context, task *models.Task) error
	ListByWorkOrder(ctx context.Context, workOrderID string) ([]*models.Task, error)

	// Delete removes a record; deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error
}

type Persistence interface {
	TriggerRepository() TriggerRepository
	ChainRepository() ChainRepository
	WorkflowStateRepository() WorkflowStateRepository
	InboxRepository() InboxRepository
	AgentConfigRepository() AgentConfigRepository
	WorkOrderRepository() WorkOrderRepository
	DeliverableRepository() DeliverableRepository
	TaskRepository() TaskRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
