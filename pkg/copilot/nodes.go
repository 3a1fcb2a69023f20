package copilot

import (
	"context"
	"fmt"

	"github.com/foreman-hq/foreman/pkg/agents"
	"github.com/foreman-hq/foreman/pkg/models"
)

// Node names. CurrentNode in the persisted state always holds one of these,
// so renaming one is a data migration.
const (
	NodeLoadContext            = "load_context"
	NodeGenerateDeliverables   = "generate_deliverables"
	NodeCheckpointDeliverables = "checkpoint_deliverables"
	NodeGenerateTasks          = "generate_tasks"
	NodeFinalize               = "finalize"
)

// NextAction tells the engine what to do after a node returns.
type NextAction int

const (
	// ActionContinue advances to the next node.
	ActionContinue NextAction = iota

	// ActionPause checkpoints the run and waits for human approval.
	ActionPause

	// ActionTerminate completes the run.
	ActionTerminate
)

type nodeFunc func(ctx context.Context, run *Run) (NextAction, error)

// Run is the in-memory working set of one workflow execution: the persisted
// state plus everything re-fetched at execution time.
type Run struct {
	State     *models.WorkflowState
	WorkOrder *models.WorkOrder
	Config    *models.AgentConfig
	Mode      models.CopilotMode
}

func (e *Engine) nodeTable() map[string]nodeFunc {
	return map[string]nodeFunc{
		NodeLoadContext:            e.loadContext,
		NodeGenerateDeliverables:   e.generateDeliverables,
		NodeCheckpointDeliverables: e.checkpointDeliverables,
		NodeGenerateTasks:          e.generateTasks,
		NodeFinalize:               e.finalize,
	}
}

// nextNode is the static transition table. Pauses and terminals are decided
// by the nodes, not the table.
func nextNode(current string) (string, bool) {
	switch current {
	case NodeLoadContext:
		return NodeGenerateDeliverables, true
	case NodeGenerateDeliverables:
		return NodeCheckpointDeliverables, true
	case NodeCheckpointDeliverables:
		return NodeGenerateTasks, true
	case NodeGenerateTasks:
		return NodeFinalize, true
	default:
		return "", false
	}
}

func (e *Engine) loadContext(_ context.Context, run *Run) (NextAction, error) {
	run.State.StateData[models.StateKeyInput] = map[string]any{
		"work_order_id": run.WorkOrder.ID,
		"title":         run.WorkOrder.Title,
		"description":   run.WorkOrder.Description,
		"status":        run.WorkOrder.Status,
		"budget_cents":  run.WorkOrder.BudgetCents,
		"mode":          string(run.Mode),
	}

	return ActionContinue, nil
}

func (e *Engine) generateDeliverables(ctx context.Context, run *Run) (NextAction, error) {
	cost, err := e.authorize(ctx, run, agents.ToolGenerateDeliverables)
	if err != nil {
		return ActionTerminate, err
	}

	suggestions, err := e.generator.Deliverables(ctx, run.WorkOrder)
	if err != nil {
		return ActionTerminate, fmt.Errorf("deliverable generation failed: %w", err)
	}

	if err := models.PutSuggestions(run.State.StateData, models.SuggestionTypeDeliverable, suggestions); err != nil {
		return ActionTerminate, err
	}

	e.recordSpend(ctx, run, agents.ToolGenerateDeliverables, cost)

	return ActionContinue, nil
}

// checkpointDeliverables is where staged mode hands control to a human. Full
// mode passes straight through.
func (e *Engine) checkpointDeliverables(_ context.Context, run *Run) (NextAction, error) {
	if run.Mode == models.CopilotModeFull {
		return ActionContinue, nil
	}

	return ActionPause, nil
}

func (e *Engine) generateTasks(ctx context.Context, run *Run) (NextAction, error) {
	cost, err := e.authorize(ctx, run, agents.ToolGenerateTasks)
	if err != nil {
		return ActionTerminate, err
	}

	deliverables, err := models.SuggestionsFromState(run.State.StateData, models.SuggestionTypeDeliverable)
	if err != nil {
		return ActionTerminate, err
	}

	tasks, err := e.generator.Tasks(ctx, run.WorkOrder, deliverables)
	if err != nil {
		return ActionTerminate, fmt.Errorf("task generation failed: %w", err)
	}

	if err := models.PutSuggestions(run.State.StateData, models.SuggestionTypeTask, tasks); err != nil {
		return ActionTerminate, err
	}

	e.recordSpend(ctx, run, agents.ToolGenerateTasks, cost)

	return ActionContinue, nil
}

func (e *Engine) finalize(_ context.Context, _ *Run) (NextAction, error) {
	return ActionTerminate, nil
}
