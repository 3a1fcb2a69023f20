package copilot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foreman-hq/foreman/pkg/agents"
	"github.com/foreman-hq/foreman/pkg/eventbus"
	"github.com/foreman-hq/foreman/pkg/events"
	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
)

// Engine drives PM Copilot runs node by node, persisting the workflow state
// at every transition so a pause, crash, or failure never loses accumulated
// output.
type Engine struct {
	persistence persistence.Persistence
	gateway     *agents.Gateway
	generator   SuggestionGenerator
	eventBus    eventbus.EventBus
	logger      *slog.Logger
	now         func() time.Time
}

func NewEngine(
	p persistence.Persistence,
	gateway *agents.Gateway,
	generator SuggestionGenerator,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence: p,
		gateway:     gateway,
		generator:   generator,
		eventBus:    eventBus,
		logger:      logger.With("module", "copilot_engine"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// StartInput carries everything Start needs that is not re-fetched.
type StartInput struct {
	WorkOrderID string
	ChainID     string
	AgentID     string
	Initiator   string
}

// Start creates a new run for the work order and executes it until it
// pauses, completes, or fails. The copilot mode is resolved once here: the
// work order override wins, then the team's agent setting, then staged.
func (e *Engine) Start(ctx context.Context, teamID string, input StartInput) (*models.WorkflowState, error) {
	workOrder, err := e.persistence.WorkOrderRepository().GetByID(ctx, input.WorkOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load work order: %w", err)
	}

	config, err := e.persistence.AgentConfigRepository().GetByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent config: %w", err)
	}

	mode := resolveMode(workOrder, config)

	state := &models.WorkflowState{
		TeamID:       teamID,
		AgentID:      config.ID,
		ChainID:      input.ChainID,
		WorkflowKind: models.ChainKindPMCopilot,
		EntityType:   models.EntityTypeWorkOrder,
		EntityID:     workOrder.ID,
		Status:       models.WorkflowStatusRunning,
		CurrentNode:  NodeLoadContext,
		StateData:    make(map[string]any),
	}

	if err := e.persistence.WorkflowStateRepository().Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to create workflow state: %w", err)
	}

	e.publish(ctx, state.EntityID, events.WorkflowStarted{
		BaseEvent:       events.NewBaseEvent(events.WorkflowStartedEvent, teamID),
		WorkflowStateID: state.ID,
		WorkflowKind:    state.WorkflowKind,
		Mode:            mode,
		EntityType:      state.EntityType,
		EntityID:        state.EntityID,
		Initiator:       input.Initiator,
	})

	run := &Run{State: state, WorkOrder: workOrder, Config: config, Mode: mode}

	return state, e.runFrom(ctx, run, NodeLoadContext)
}

// Resume continues a paused run from the node after its checkpoint. The mode
// is re-resolved the same way Start resolves it, but a resumed staged run
// never re-pauses at the checkpoint it just cleared.
func (e *Engine) Resume(ctx context.Context, state *models.WorkflowState, resumedBy string) error {
	if !state.Paused() {
		return fmt.Errorf("%w: workflow state %s is %s", ErrNotPaused, state.ID, state.Status)
	}

	workOrder, err := e.persistence.WorkOrderRepository().GetByID(ctx, state.EntityID)
	if err != nil {
		return fmt.Errorf("failed to load work order: %w", err)
	}

	config, err := e.persistence.AgentConfigRepository().GetByTeam(ctx, state.TeamID)
	if err != nil {
		return fmt.Errorf("failed to load agent config: %w", err)
	}

	next, ok := nextNode(state.CurrentNode)
	if !ok {
		return fmt.Errorf("workflow state %s paused at terminal node %q", state.ID, state.CurrentNode)
	}

	pauseDuration := e.now().Sub(*state.PausedAt)

	state.Status = models.WorkflowStatusRunning
	state.PausedAt = nil
	state.ApprovalRequired = false

	if err := e.persistence.WorkflowStateRepository().Save(ctx, state); err != nil {
		return fmt.Errorf("failed to resume workflow state: %w", err)
	}

	e.publish(ctx, state.EntityID, events.WorkflowResumed{
		BaseEvent:       events.NewBaseEvent(events.WorkflowResumedEvent, state.TeamID),
		WorkflowStateID: state.ID,
		ResumedBy:       resumedBy,
		ResumedFromNode: state.CurrentNode,
		PauseDurationMs: pauseDuration.Milliseconds(),
	})

	run := &Run{State: state, WorkOrder: workOrder, Config: config, Mode: resolveMode(workOrder, config)}

	return e.runFrom(ctx, run, next)
}

// runFrom executes nodes starting at the named one until a pause, terminal,
// or failure. The state row is saved after every node.
func (e *Engine) runFrom(ctx context.Context, run *Run, startNode string) error {
	nodes := e.nodeTable()
	current := startNode

	for {
		node, ok := nodes[current]
		if !ok {
			return e.fail(ctx, run, current, fmt.Errorf("unknown workflow node %q", current))
		}

		action, err := node(ctx, run)

		run.State.CurrentNode = current

		if err != nil {
			return e.fail(ctx, run, current, err)
		}

		switch action {
		case ActionPause:
			return e.pause(ctx, run)
		case ActionTerminate:
			return e.complete(ctx, run)
		case ActionContinue:
			if err := e.persistence.WorkflowStateRepository().Save(ctx, run.State); err != nil {
				return e.fail(ctx, run, current, fmt.Errorf("failed to checkpoint state: %w", err))
			}

			next, ok := nextNode(current)
			if !ok {
				return e.complete(ctx, run)
			}

			current = next
		}
	}
}

// pause checkpoints the run at the current node and opens an inbox item so a
// human can act on the accumulated suggestions.
func (e *Engine) pause(ctx context.Context, run *Run) error {
	pausedAt := e.now()

	run.State.Status = models.WorkflowStatusPaused
	run.State.ApprovalRequired = true
	run.State.PausedAt = &pausedAt

	if err := e.persistence.WorkflowStateRepository().Save(ctx, run.State); err != nil {
		return fmt.Errorf("failed to checkpoint paused state: %w", err)
	}

	deliverables, err := models.SuggestionsFromState(run.State.StateData, models.SuggestionTypeDeliverable)
	if err != nil {
		return err
	}

	confidence := 0.0
	for _, suggestion := range deliverables {
		if suggestion.Confidence > confidence {
			confidence = suggestion.Confidence
		}
	}

	item := &models.InboxItem{
		TeamID:     run.State.TeamID,
		RefType:    models.InboxRefWorkflowState,
		RefID:      run.State.ID,
		Title:      fmt.Sprintf("Review %d suggested deliverables for %q", len(deliverables), run.WorkOrder.Title),
		Urgency:    models.InboxUrgencyNormal,
		Confidence: confidence,
	}

	if err := e.persistence.InboxRepository().Save(ctx, item); err != nil {
		return fmt.Errorf("failed to create inbox item: %w", err)
	}

	e.publish(ctx, run.State.EntityID, events.WorkflowPaused{
		BaseEvent:       events.NewBaseEvent(events.WorkflowPausedEvent, run.State.TeamID),
		WorkflowStateID: run.State.ID,
		PausedAtNode:    run.State.CurrentNode,
		InboxItemID:     item.ID,
		ApprovalData:    map[string]any{"deliverable_count": len(deliverables)},
	})

	e.logger.Info("Workflow paused for approval",
		"workflow_state_id", run.State.ID,
		"node", run.State.CurrentNode,
		"inbox_item_id", item.ID)

	return nil
}

func (e *Engine) complete(ctx context.Context, run *Run) error {
	completedAt := e.now()

	run.State.Status = models.WorkflowStatusCompleted
	run.State.CompletedAt = &completedAt

	if err := e.persistence.WorkflowStateRepository().Save(ctx, run.State); err != nil {
		return fmt.Errorf("failed to save completed state: %w", err)
	}

	e.publish(ctx, run.State.EntityID, events.WorkflowCompleted{
		BaseEvent:       events.NewBaseEvent(events.WorkflowCompletedEvent, run.State.TeamID),
		WorkflowStateID: run.State.ID,
		Duration:        completedAt.Sub(run.State.StartedAt),
	})

	e.logger.Info("Workflow completed", "workflow_state_id", run.State.ID)

	return nil
}

// fail marks the run failed, keeping StateData intact for inspection and
// possible retry.
func (e *Engine) fail(ctx context.Context, run *Run, node string, cause error) error {
	run.State.Status = models.WorkflowStatusFailed
	run.State.FailureReason = cause.Error()

	if err := e.persistence.WorkflowStateRepository().Save(ctx, run.State); err != nil {
		e.logger.Error("Failed to persist failed workflow state",
			"workflow_state_id", run.State.ID,
			"error", err)
	}

	e.publish(ctx, run.State.EntityID, events.WorkflowFailed{
		BaseEvent:       events.NewBaseEvent(events.WorkflowFailedEvent, run.State.TeamID),
		WorkflowStateID: run.State.ID,
		FailedNode:      node,
		Error:           cause.Error(),
	})

	e.logger.Error("Workflow failed",
		"workflow_state_id", run.State.ID,
		"node", node,
		"error", cause)

	return fmt.Errorf("workflow failed at %s: %w", node, cause)
}

// authorize runs a prospective tool call through the gateway. A policy
// denial comes back as ErrGateDenied so the run fails with the reason.
func (e *Engine) authorize(ctx context.Context, run *Run, toolName string) (int64, error) {
	decision, _, err := e.gateway.Authorize(ctx, run.State.TeamID, toolName)
	if err != nil {
		return 0, fmt.Errorf("gateway check failed for %s: %w", toolName, err)
	}

	if !decision.Allowed {
		return 0, fmt.Errorf("%w: %s (%s): %s", ErrGateDenied, toolName, decision.Reason, decision.Detail)
	}

	return decision.EstimatedCostCents, nil
}

func (e *Engine) recordSpend(ctx context.Context, run *Run, toolName string, costCents int64) {
	if err := e.gateway.RecordSpend(ctx, run.Config.ID, toolName, costCents); err != nil {
		// The tool already ran; losing the debit is an accounting gap, not
		// a workflow failure.
		e.logger.Error("Failed to record agent spend",
			"agent_id", run.Config.ID,
			"tool", toolName,
			"error", err)

		return
	}

	e.publish(ctx, run.State.EntityID, events.SpendRecorded{
		BaseEvent: events.NewBaseEvent(events.SpendRecordedEvent, run.State.TeamID),
		AgentID:   run.Config.ID,
		ToolName:  toolName,
		CostCents: costCents,
	})
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, key, event); err != nil {
		e.logger.Error("Failed to publish workflow event",
			"event_type", event.GetType(),
			"error", err)
	}
}

func resolveMode(workOrder *models.WorkOrder, config *models.AgentConfig) models.CopilotMode {
	if models.ValidCopilotMode(string(workOrder.PMCopilotMode)) {
		return workOrder.PMCopilotMode
	}

	if models.ValidCopilotMode(string(config.Mode)) {
		return config.Mode
	}

	return models.CopilotModeStaged
}
