package models

import "time"

// WorkOrder is the slice of the work-order aggregate this subsystem reads
// and writes: status, the fields condition evaluation references, and the
// per-work-order copilot mode override.
type WorkOrder struct {
	ID            string      `json:"id"`
	TeamID        string      `json:"team_id" validate:"required"`
	Title         string      `json:"title"   validate:"required"`
	Description   string      `json:"description"`
	Status        string      `json:"status"`
	BudgetCents   int64       `json:"budget_cents"`
	Tags          []string    `json:"tags,omitempty"`
	PMCopilotMode CopilotMode `json:"pm_copilot_mode,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Snapshot builds an EntitySnapshot for a status transition of this work
// order.
func (w *WorkOrder) Snapshot(fromStatus, toStatus string) *EntitySnapshot {
	return &EntitySnapshot{
		EntityID:   w.ID,
		TeamID:     w.TeamID,
		EntityType: EntityTypeWorkOrder,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Fields: map[string]any{
			"title":        w.Title,
			"description":  w.Description,
			"status":       w.Status,
			"budget_cents": w.BudgetCents,
		},
		Tags: w.Tags,
	}
}

// Deliverable is a domain record materialized from an approved deliverable
// suggestion.
type Deliverable struct {
	ID          string     `json:"id"`
	TeamID      string     `json:"team_id"       validate:"required"`
	WorkOrderID string     `json:"work_order_id" validate:"required"`
	Title       string     `json:"title"         validate:"required"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Task is a domain record materialized from an approved task suggestion.
type Task struct {
	ID          string     `json:"id"`
	TeamID      string     `json:"team_id"       validate:"required"`
	WorkOrderID string     `json:"work_order_id" validate:"required"`
	Title       string     `json:"title"         validate:"required"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
