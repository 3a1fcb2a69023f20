// Package web provides HTTP request and response types for the Foreman API.
package web

import (
	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/services"
)

// TriggerCopilotRequest represents the request body for starting a PM Copilot
// run on a work order.
type TriggerCopilotRequest struct {
	Initiator string `json:"initiator" validate:"required"`
}

// ResolveSuggestionRequest represents the request body for approving or
// rejecting a single suggestion of a paused run.
type ResolveSuggestionRequest struct {
	SuggestionType  string `json:"suggestion_type"  validate:"required,oneof=deliverable task"`
	SuggestionIndex int    `json:"suggestion_index" validate:"min=0"`
	ActorID         string `json:"actor_id"         validate:"required"`

	// Reason applies to rejections only.
	Reason string `json:"reason,omitempty"`
}

// ResumeWorkflowRequest represents the request body for resuming a paused run.
type ResumeWorkflowRequest struct {
	ResumedBy string `json:"resumed_by" validate:"required"`
}

// RejectWorkflowRequest represents the request body for abandoning a paused run.
type RejectWorkflowRequest struct {
	RejectedBy string `json:"rejected_by" validate:"required"`
	Reason     string `json:"reason,omitempty"`
}

// UpdateAgentSettingsRequest represents the request body for the per-work-order
// copilot mode override.
type UpdateAgentSettingsRequest struct {
	PMCopilotMode string `json:"pm_copilot_mode" validate:"required,oneof=staged full"`
}

// CreateTriggerRequest represents the request body for creating a trigger rule.
type CreateTriggerRequest struct {
	Name       string         `json:"name"        validate:"required,min=3"`
	ChainID    string         `json:"chain_id"    validate:"required"`
	EntityType string         `json:"entity_type" validate:"required"`
	StatusFrom *string        `json:"status_from,omitempty"`
	StatusTo   *string        `json:"status_to,omitempty"`
	Priority   int            `json:"priority"`
	Enabled    bool           `json:"enabled"`
	Conditions map[string]any `json:"trigger_conditions,omitempty"`
}

// CopilotResponse is the envelope every PM Copilot endpoint responds with.
// Failures carry Success=false and a human-readable message instead of an
// RFC 7807 problem, matching what the copilot UI consumes.
type CopilotResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// TriggerCopilotResponse is the trigger endpoint's success body. The started
// run's ID rides at the top level next to success, not inside a data
// envelope.
type TriggerCopilotResponse struct {
	Success         bool                  `json:"success"`
	WorkflowStateID string                `json:"workflow_state_id"`
	Status          models.WorkflowStatus `json:"status"`
}

// SuggestionsResponse flattens the run's suggestion sets at the top level
// next to success.
type SuggestionsResponse struct {
	Success bool `json:"success"`
	*services.SuggestionsResponse
}

// WorkflowStateResponse is the API view of a workflow run.
type WorkflowStateResponse struct {
	ID               string                `json:"id"`
	Status           models.WorkflowStatus `json:"status"`
	CurrentNode      string                `json:"current_node"`
	ApprovalRequired bool                  `json:"approval_required"`
	FailureReason    string                `json:"failure_reason,omitempty"`
}

// TransformWorkflowStateResponse builds the API view of a workflow state.
func TransformWorkflowStateResponse(state *models.WorkflowState) WorkflowStateResponse {
	return WorkflowStateResponse{
		ID:               state.ID,
		Status:           state.Status,
		CurrentNode:      state.CurrentNode,
		ApprovalRequired: state.ApprovalRequired,
		FailureReason:    state.FailureReason,
	}
}
