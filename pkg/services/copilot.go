package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foreman-hq/foreman/pkg/copilot"
	"github.com/foreman-hq/foreman/pkg/eventbus"
	"github.com/foreman-hq/foreman/pkg/events"
	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
)

// Copilot is the application service behind the PM Copilot endpoints. It owns
// run lifecycle (start, resume, reject) and per-suggestion approval, and
// delegates node execution to the copilot engine.
type Copilot struct {
	persistence persistence.Persistence
	engine      *copilot.Engine
	eventBus    eventbus.EventBus
	logger      *slog.Logger
	now         func() time.Time
}

// NewCopilot creates a new copilot service.
func NewCopilot(
	p persistence.Persistence,
	engine *copilot.Engine,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Copilot {
	return &Copilot{
		persistence: p,
		engine:      engine,
		eventBus:    eventBus,
		logger:      logger.With("module", "copilot_service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HealthCheck checks the health of the persistence layer.
func (c *Copilot) HealthCheck(ctx context.Context) (string, bool) {
	if c.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := c.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// StartForWorkOrder starts a PM Copilot run for a work order. A work order
// carries at most one active (running or paused) run at a time; starting
// while one is active is a conflict.
func (c *Copilot) StartForWorkOrder(ctx context.Context, teamID, workOrderID, initiator string) (*models.WorkflowState, error) {
	if workOrderID == "" {
		return nil, NewValidationError("StartForWorkOrder", "missing_work_order_id", "work order ID is required", ErrInvalidRequest)
	}

	latest, err := c.persistence.WorkflowStateRepository().LatestForEntity(ctx, models.EntityTypeWorkOrder, workOrderID)
	if err != nil && !persistence.IsWorkflowStateNotFound(err) {
		return nil, fmt.Errorf("failed to check for active runs: %w", err)
	}

	if latest != nil && !latest.Status.Terminal() {
		return nil, fmt.Errorf("%w: workflow state %s is %s", ErrRunAlreadyActive, latest.ID, latest.Status)
	}

	state, err := c.engine.Start(ctx, teamID, copilot.StartInput{
		WorkOrderID: workOrderID,
		Initiator:   initiator,
	})
	if err != nil {
		// The run itself failed, but the state row exists and holds the
		// failure. Surface both.
		return state, err
	}

	return state, nil
}

// SuggestionList pairs a suggestion list with its type for API responses.
type SuggestionList struct {
	Type        models.SuggestionType `json:"type"`
	Suggestions []models.Suggestion   `json:"suggestions"`
}

// SuggestionsResponse is the latest run's suggestion sets for a work order.
type SuggestionsResponse struct {
	WorkflowStateID string                `json:"workflow_state_id"`
	Status          models.WorkflowStatus `json:"status"`
	CurrentNode     string                `json:"current_node"`
	Deliverables    []models.Suggestion   `json:"deliverable_suggestions"`
	Tasks           []models.Suggestion   `json:"task_suggestions"`
}

// Suggestions returns the suggestion sets of the most recent run for a work
// order, regardless of the run's status.
func (c *Copilot) Suggestions(ctx context.Context, workOrderID string) (*SuggestionsResponse, error) {
	state, err := c.persistence.WorkflowStateRepository().LatestForEntity(ctx, models.EntityTypeWorkOrder, workOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow state: %w", err)
	}

	deliverables, err := models.SuggestionsFromState(state.StateData, models.SuggestionTypeDeliverable)
	if err != nil {
		return nil, err
	}

	tasks, err := models.SuggestionsFromState(state.StateData, models.SuggestionTypeTask)
	if err != nil {
		return nil, err
	}

	return &SuggestionsResponse{
		WorkflowStateID: state.ID,
		Status:          state.Status,
		CurrentNode:     state.CurrentNode,
		Deliverables:    deliverables,
		Tasks:           tasks,
	}, nil
}

// ResolveSuggestionRequest addresses one suggestion of a paused run through
// the inbox item its pause opened.
type ResolveSuggestionRequest struct {
	InboxItemID     string
	SuggestionType  string
	SuggestionIndex int
	ActorID         string

	// Reason applies to rejections only.
	Reason string
}

// ApproveSuggestion approves the addressed suggestion and materializes it
// into exactly one domain record. Sibling suggestions stay pending and the
// run stays paused; resuming is a separate, explicit call.
func (c *Copilot) ApproveSuggestion(ctx context.Context, req ResolveSuggestionRequest) (*models.Suggestion, error) {
	typ, state, suggestions, err := c.loadPausedSuggestions(ctx, "ApproveSuggestion", req)
	if err != nil {
		return nil, err
	}

	suggestion := &suggestions[req.SuggestionIndex]
	if suggestion.Status != models.SuggestionStatusPending {
		return nil, fmt.Errorf("%w: %s suggestion %d is %s", ErrSuggestionResolved, typ, req.SuggestionIndex, suggestion.Status)
	}

	recordID, err := c.materialize(ctx, typ, state, suggestion, req.ActorID)
	if err != nil {
		return nil, err
	}

	suggestion.Status = models.SuggestionStatusApproved
	suggestion.CreatedRecordID = recordID

	if err := c.saveSuggestions(ctx, state, typ, suggestions); err != nil {
		// The record and the approval are two separate writes. Take the
		// record back out so a retry does not create a second one.
		c.discardRecord(ctx, typ, recordID)

		suggestion.Status = models.SuggestionStatusPending
		suggestion.CreatedRecordID = ""

		return nil, err
	}

	c.logger.Info("Suggestion approved",
		"workflow_state_id", state.ID,
		"suggestion_type", typ,
		"suggestion_index", req.SuggestionIndex,
		"created_record_id", recordID)

	return suggestion, nil
}

// RejectSuggestion rejects the addressed suggestion, recording the reason.
// No domain record is created and sibling suggestions are untouched.
func (c *Copilot) RejectSuggestion(ctx context.Context, req ResolveSuggestionRequest) (*models.Suggestion, error) {
	typ, state, suggestions, err := c.loadPausedSuggestions(ctx, "RejectSuggestion", req)
	if err != nil {
		return nil, err
	}

	suggestion := &suggestions[req.SuggestionIndex]
	if suggestion.Status != models.SuggestionStatusPending {
		return nil, fmt.Errorf("%w: %s suggestion %d is %s", ErrSuggestionResolved, typ, req.SuggestionIndex, suggestion.Status)
	}

	suggestion.Status = models.SuggestionStatusRejected
	suggestion.RejectedReason = req.Reason

	if err := c.saveSuggestions(ctx, state, typ, suggestions); err != nil {
		return nil, err
	}

	c.logger.Info("Suggestion rejected",
		"workflow_state_id", state.ID,
		"suggestion_type", typ,
		"suggestion_index", req.SuggestionIndex)

	return suggestion, nil
}

// ResumeWorkflow resumes a paused run past its checkpoint and resolves the
// inbox item that announced the pause.
func (c *Copilot) ResumeWorkflow(ctx context.Context, workflowStateID, resumedBy string) (*models.WorkflowState, error) {
	state, err := c.persistence.WorkflowStateRepository().GetByID(ctx, workflowStateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow state: %w", err)
	}

	if !state.Paused() {
		return nil, fmt.Errorf("%w: workflow state %s is %s", ErrWorkflowNotPaused, state.ID, state.Status)
	}

	if err := c.engine.Resume(ctx, state, resumedBy); err != nil {
		// The run is no longer paused, but the approval item stays pending
		// so the failure remains actionable from the inbox.
		return state, err
	}

	if err := c.resolveInboxItems(ctx, state, true); err != nil {
		return state, err
	}

	return state, nil
}

// RejectWorkflow abandons a paused run. The state row is kept, terminal, so
// the generated suggestions remain inspectable.
func (c *Copilot) RejectWorkflow(ctx context.Context, workflowStateID, rejectedBy, reason string) (*models.WorkflowState, error) {
	state, err := c.persistence.WorkflowStateRepository().GetByID(ctx, workflowStateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow state: %w", err)
	}

	if !state.Paused() {
		return nil, fmt.Errorf("%w: workflow state %s is %s", ErrWorkflowNotPaused, state.ID, state.Status)
	}

	completedAt := c.now()

	state.Status = models.WorkflowStatusRejected
	state.PausedAt = nil
	state.ApprovalRequired = false
	state.CompletedAt = &completedAt

	if err := c.persistence.WorkflowStateRepository().Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save rejected workflow state: %w", err)
	}

	if err := c.resolveInboxItems(ctx, state, false); err != nil {
		return nil, err
	}

	c.publish(ctx, state.EntityID, events.WorkflowRejected{
		BaseEvent:       events.NewBaseEvent(events.WorkflowRejectedEvent, state.TeamID),
		WorkflowStateID: state.ID,
		RejectedBy:      rejectedBy,
		Reason:          reason,
	})

	c.logger.Info("Workflow rejected",
		"workflow_state_id", state.ID,
		"rejected_by", rejectedBy)

	return state, nil
}

// UpdateAgentSettings sets the per-work-order copilot mode override.
func (c *Copilot) UpdateAgentSettings(ctx context.Context, workOrderID, mode string) (*models.WorkOrder, error) {
	if !models.ValidCopilotMode(mode) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCopilotMode, mode)
	}

	if err := c.persistence.WorkOrderRepository().UpdateCopilotMode(ctx, workOrderID, models.CopilotMode(mode)); err != nil {
		return nil, fmt.Errorf("failed to update copilot mode: %w", err)
	}

	workOrder, err := c.persistence.WorkOrderRepository().GetByID(ctx, workOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload work order: %w", err)
	}

	return workOrder, nil
}

// loadPausedSuggestions resolves an inbox item to its paused run and the
// addressed suggestion list, validating the request along the way.
func (c *Copilot) loadPausedSuggestions(
	ctx context.Context,
	op string,
	req ResolveSuggestionRequest,
) (models.SuggestionType, *models.WorkflowState, []models.Suggestion, error) {
	typ := models.SuggestionType(req.SuggestionType)
	if typ != models.SuggestionTypeDeliverable && typ != models.SuggestionTypeTask {
		return "", nil, nil, NewValidationError(op, "invalid_suggestion_type",
			fmt.Sprintf("unknown suggestion type %q", req.SuggestionType), ErrInvalidSuggestionType)
	}

	item, err := c.persistence.InboxRepository().GetByID(ctx, req.InboxItemID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to load inbox item: %w", err)
	}

	if item.Resolved() {
		return "", nil, nil, fmt.Errorf("%w: inbox item %s", ErrInboxItemResolved, item.ID)
	}

	if item.RefType != models.InboxRefWorkflowState {
		return "", nil, nil, NewValidationError(op, "invalid_ref_type",
			fmt.Sprintf("inbox item %s references a %s, not a workflow state", item.ID, item.RefType), ErrInvalidRequest)
	}

	state, err := c.persistence.WorkflowStateRepository().GetByID(ctx, item.RefID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to load workflow state: %w", err)
	}

	if !state.Paused() {
		return "", nil, nil, fmt.Errorf("%w: workflow state %s is %s", ErrWorkflowNotPaused, state.ID, state.Status)
	}

	suggestions, err := models.SuggestionsFromState(state.StateData, typ)
	if err != nil {
		return "", nil, nil, err
	}

	if req.SuggestionIndex < 0 || req.SuggestionIndex >= len(suggestions) {
		return "", nil, nil, fmt.Errorf("%w: index %d, %d %s suggestions", ErrSuggestionIndex, req.SuggestionIndex, len(suggestions), typ)
	}

	return typ, state, suggestions, nil
}

// materialize creates the domain record for an approved suggestion and
// returns its ID.
func (c *Copilot) materialize(
	ctx context.Context,
	typ models.SuggestionType,
	state *models.WorkflowState,
	suggestion *models.Suggestion,
	actorID string,
) (string, error) {
	var dueAt *time.Time

	if suggestion.DueInDays > 0 {
		due := c.now().AddDate(0, 0, suggestion.DueInDays)
		dueAt = &due
	}

	switch typ {
	case models.SuggestionTypeDeliverable:
		deliverable := &models.Deliverable{
			TeamID:      state.TeamID,
			WorkOrderID: state.EntityID,
			Title:       suggestion.Title,
			Description: suggestion.Description,
			Status:      "open",
			DueAt:       dueAt,
			CreatedBy:   actorID,
		}

		if err := c.persistence.DeliverableRepository().Save(ctx, deliverable); err != nil {
			return "", fmt.Errorf("failed to create deliverable: %w", err)
		}

		return deliverable.ID, nil
	case models.SuggestionTypeTask:
		task := &models.Task{
			TeamID:      state.TeamID,
			WorkOrderID: state.EntityID,
			Title:       suggestion.Title,
			Description: suggestion.Description,
			Status:      "open",
			DueAt:       dueAt,
			CreatedBy:   actorID,
		}

		if err := c.persistence.TaskRepository().Save(ctx, task); err != nil {
			return "", fmt.Errorf("failed to create task: %w", err)
		}

		return task.ID, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSuggestionType, typ)
	}
}

// discardRecord undoes a materialized record when the approval itself could
// not be persisted.
func (c *Copilot) discardRecord(ctx context.Context, typ models.SuggestionType, recordID string) {
	var err error

	switch typ {
	case models.SuggestionTypeDeliverable:
		err = c.persistence.DeliverableRepository().Delete(ctx, recordID)
	case models.SuggestionTypeTask:
		err = c.persistence.TaskRepository().Delete(ctx, recordID)
	}

	if err != nil {
		c.logger.Error("Failed to discard materialized record",
			"suggestion_type", typ,
			"record_id", recordID,
			"error", err)
	}
}

func (c *Copilot) saveSuggestions(
	ctx context.Context,
	state *models.WorkflowState,
	typ models.SuggestionType,
	suggestions []models.Suggestion,
) error {
	if err := models.PutSuggestions(state.StateData, typ, suggestions); err != nil {
		return err
	}

	if err := c.persistence.WorkflowStateRepository().Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save workflow state: %w", err)
	}

	return nil
}

// resolveInboxItems stamps every pending inbox item pointing at the run.
func (c *Copilot) resolveInboxItems(ctx context.Context, state *models.WorkflowState, approved bool) error {
	items, err := c.persistence.InboxRepository().ListPendingByTeam(ctx, state.TeamID)
	if err != nil {
		return fmt.Errorf("failed to list inbox items: %w", err)
	}

	resolvedAt := c.now()

	for _, item := range items {
		if item.RefType != models.InboxRefWorkflowState || item.RefID != state.ID {
			continue
		}

		if approved {
			item.ApprovedAt = &resolvedAt
		} else {
			item.RejectedAt = &resolvedAt
		}

		if err := c.persistence.InboxRepository().Save(ctx, item); err != nil {
			return fmt.Errorf("failed to resolve inbox item %s: %w", item.ID, err)
		}
	}

	return nil
}

func (c *Copilot) publish(ctx context.Context, key string, event eventbus.Event) {
	if c.eventBus == nil {
		return
	}

	if err := c.eventBus.Publish(ctx, key, event); err != nil {
		c.logger.Error("Failed to publish event",
			"event_type", event.GetType(),
			"error", err)
	}
}
