package models

import "time"

// WorkflowStatus is the lifecycle state of a workflow run.
type WorkflowStatus string

const (
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusPaused    WorkflowStatus = "paused"    // Awaiting human approval at a checkpoint
	WorkflowStatusCompleted WorkflowStatus = "completed" // Terminal
	WorkflowStatusFailed    WorkflowStatus = "failed"    // Terminal, state preserved for inspection
	WorkflowStatusRejected  WorkflowStatus = "rejected"  // Terminal, abandoned by a human
)

// Terminal reports whether the status admits no further node execution.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowStatusCompleted || s == WorkflowStatusFailed || s == WorkflowStatusRejected
}

// State-data keys the PM Copilot workflow reads and writes.
const (
	StateKeyInput                  = "input"
	StateKeyDeliverableSuggestions = "deliverable_suggestions"
	StateKeyTaskSuggestions        = "task_suggestions"
)

// WorkflowState is the persisted checkpoint of one workflow run. It is
// written at every node transition and at every pause/resume, so a paused
// run can be re-hydrated hours or days later without losing accumulated
// output.
type WorkflowState struct {
	ID           string         `json:"id"`
	TeamID       string         `json:"team_id"       validate:"required"`
	AgentID      string         `json:"agent_id"`
	ChainID      string         `json:"chain_id"`
	WorkflowKind ChainKind      `json:"workflow_kind" validate:"required"`
	EntityType   EntityType     `json:"entity_type"`
	EntityID     string         `json:"entity_id"`
	Status       WorkflowStatus `json:"status"`

	// CurrentNode is the last executed node while running, or the
	// checkpoint node while paused. Resume continues from here, never from
	// the beginning.
	CurrentNode string `json:"current_node"`

	StateData map[string]any `json:"state_data"`

	ApprovalRequired bool       `json:"approval_required"`
	PausedAt         *time.Time `json:"paused_at,omitempty"`

	StartedAt     time.Time  `json:"started_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
}

// Paused reports whether the run is sitting at an approval checkpoint.
func (w *WorkflowState) Paused() bool {
	return w.Status == WorkflowStatusPaused && w.PausedAt != nil
}
