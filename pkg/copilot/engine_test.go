package copilot

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/foreman-hq/foreman/pkg/agents"
	"github.com/foreman-hq/foreman/pkg/mocks"
	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/foreman-hq/foreman/pkg/persistence/file"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type failingGenerator struct {
	HeuristicGenerator

	failDeliverables bool
	failTasks        bool
}

func (g *failingGenerator) Deliverables(ctx context.Context, workOrder *models.WorkOrder) ([]models.Suggestion, error) {
	if g.failDeliverables {
		return nil, errors.New("model timeout")
	}

	return g.HeuristicGenerator.Deliverables(ctx, workOrder)
}

func (g *failingGenerator) Tasks(ctx context.Context, workOrder *models.WorkOrder, deliverables []models.Suggestion) ([]models.Suggestion, error) {
	if g.failTasks {
		return nil, errors.New("model timeout")
	}

	return g.HeuristicGenerator.Tasks(ctx, workOrder, deliverables)
}

type engineFixture struct {
	engine      *Engine
	persistence persistence.Persistence
	spend       *agents.MemorySpendStore
	config      *models.AgentConfig
	workOrder   *models.WorkOrder
}

func setupEngine(t *testing.T, mode models.CopilotMode, generator SuggestionGenerator) *engineFixture {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	ctx := t.Context()

	config := &models.AgentConfig{
		TeamID:  "team-1",
		Name:    "pm copilot",
		Enabled: true,
		Mode:    mode,
		Permissions: []string{
			models.PermissionGenerateDeliverables,
			models.PermissionGenerateTasks,
		},
	}
	require.NoError(t, p.AgentConfigRepository().Save(ctx, config))

	workOrder := &models.WorkOrder{
		TeamID:      "team-1",
		Title:       "Depot refurbishment",
		Description: "Refurbish the depot and produce a closing report.",
		Status:      "active",
		BudgetCents: 500_00,
	}
	require.NoError(t, p.WorkOrderRepository().Save(ctx, workOrder))

	spend := agents.NewMemorySpendStore()
	gateway := agents.NewGateway(p.AgentConfigRepository(), spend, testLogger())

	eventBus := &mocks.MockEventBus{}
	eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	if generator == nil {
		generator = NewHeuristicGenerator()
	}

	return &engineFixture{
		engine:      NewEngine(p, gateway, generator, eventBus, testLogger()),
		persistence: p,
		spend:       spend,
		config:      config,
		workOrder:   workOrder,
	}
}

func TestEngine_StagedRunPausesAtCheckpoint(t *testing.T) {
	t.Parallel()

	f := setupEngine(t, models.CopilotModeStaged, nil)
	ctx := t.Context()

	state, err := f.engine.Start(ctx, "team-1", StartInput{WorkOrderID: f.workOrder.ID, Initiator: "user-1"})
	require.NoError(t, err)

	loaded, err := f.persistence.WorkflowStateRepository().GetByID(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusPaused, loaded.Status)
	assert.Equal(t, NodeCheckpointDeliverables, loaded.CurrentNode)
	assert.True(t, loaded.ApprovalRequired)
	require.NotNil(t, loaded.PausedAt)

	deliverables, err := models.SuggestionsFromState(loaded.StateData, models.SuggestionTypeDeliverable)
	require.NoError(t, err)
	assert.NotEmpty(t, deliverables)

	// No tasks yet: generation waits for approval.
	tasks, err := models.SuggestionsFromState(loaded.StateData, models.SuggestionTypeTask)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	// The pause opened an inbox item pointing at the run.
	items, err := f.persistence.InboxRepository().ListPendingByTeam(ctx, "team-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.InboxRefWorkflowState, items[0].RefType)
	assert.Equal(t, loaded.ID, items[0].RefID)
}

func TestEngine_FullModeRunsThrough(t *testing.T) {
	t.Parallel()

	f := setupEngine(t, models.CopilotModeFull, nil)
	ctx := t.Context()

	state, err := f.engine.Start(ctx, "team-1", StartInput{WorkOrderID: f.workOrder.ID})
	require.NoError(t, err)

	loaded, err := f.persistence.WorkflowStateRepository().GetByID(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, loaded.Status)
	assert.NotNil(t, loaded.CompletedAt)
	assert.Nil(t, loaded.PausedAt)

	deliverables, err := models.SuggestionsFromState(loaded.StateData, models.SuggestionTypeDeliverable)
	require.NoError(t, err)
	assert.NotEmpty(t, deliverables)

	tasks, err := models.SuggestionsFromState(loaded.StateData, models.SuggestionTypeTask)
	require.NoError(t, err)
	assert.NotEmpty(t, tasks)

	// Both tool calls were debited.
	daily, err := f.spend.DailySpent(ctx, f.config.ID, loaded.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(65), daily)
}

func TestEngine_WorkOrderModeOverridesAgentMode(t *testing.T) {
	t.Parallel()

	f := setupEngine(t, models.CopilotModeStaged, nil)
	ctx := t.Context()

	require.NoError(t, f.persistence.WorkOrderRepository().UpdateCopilotMode(ctx, f.workOrder.ID, models.CopilotModeFull))

	state, err := f.engine.Start(ctx, "team-1", StartInput{WorkOrderID: f.workOrder.ID})
	require.NoError(t, err)

	loaded, err := f.persistence.WorkflowStateRepository().GetByID(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, loaded.Status)
}

func TestEngine_ResumeContinuesFromCheckpoint(t *testing.T) {
	t.Parallel()

	f := setupEngine(t, models.CopilotModeStaged, nil)
	ctx := t.Context()

	state, err := f.engine.Start(ctx, "team-1", StartInput{WorkOrderID: f.workOrder.ID})
	require.NoError(t, err)

	paused, err := f.persistence.WorkflowStateRepository().GetByID(ctx, state.ID)
	require.NoError(t, err)
	require.True(t, paused.Paused())

	require.NoError(t, f.engine.Resume(ctx, paused, "user-1"))

	resumed, err := f.persistence.WorkflowStateRepository().GetByID(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, resumed.Status)
	assert.Nil(t, resumed.PausedAt)

	tasks, err := models.SuggestionsFromState(resumed.StateData, models.SuggestionTypeTask)
	require.NoError(t, err)
	assert.NotEmpty(t, tasks)
}

func TestEngine_ResumeRequiresPausedRun(t *testing.T) {
	t.Parallel()

	f := setupEngine(t, models.CopilotModeFull, nil)
	ctx := t.Context()

	state, err := f.engine.Start(ctx, "team-1", StartInput{WorkOrderID: f.workOrder.ID})
	require.NoError(t, err)

	completed, err := f.persistence.WorkflowStateRepository().GetByID(ctx, state.ID)
	require.NoError(t, err)

	err = f.engine.Resume(ctx, completed, "user-1")
	assert.True(t, IsNotPaused(err))
}

func TestEngine_GenerationFailurePreservesState(t *testing.T) {
	t.Parallel()

	f := setupEngine(t, models.CopilotModeFull, &failingGenerator{failTasks: true})
	ctx := t.Context()

	state, err := f.engine.Start(ctx, "team-1", StartInput{WorkOrderID: f.workOrder.ID})
	require.Error(t, err)

	loaded, loadErr := f.persistence.WorkflowStateRepository().GetByID(ctx, state.ID)
	require.NoError(t, loadErr)
	assert.Equal(t, models.WorkflowStatusFailed, loaded.Status)
	assert.Equal(t, NodeGenerateTasks, loaded.CurrentNode)
	assert.Contains(t, loaded.FailureReason, "model timeout")

	// Deliverable suggestions generated before the failure survive.
	deliverables, err := models.SuggestionsFromState(loaded.StateData, models.SuggestionTypeDeliverable)
	require.NoError(t, err)
	assert.NotEmpty(t, deliverables)
}

func TestEngine_GatewayDenialFailsRun(t *testing.T) {
	t.Parallel()

	f := setupEngine(t, models.CopilotModeFull, nil)
	ctx := t.Context()

	// Drop the task permission so the second tool call is denied.
	f.config.Permissions = []string{models.PermissionGenerateDeliverables}
	require.NoError(t, f.persistence.AgentConfigRepository().Save(ctx, f.config))

	state, err := f.engine.Start(ctx, "team-1", StartInput{WorkOrderID: f.workOrder.ID})
	require.Error(t, err)
	assert.True(t, IsGateDenied(err))

	loaded, loadErr := f.persistence.WorkflowStateRepository().GetByID(ctx, state.ID)
	require.NoError(t, loadErr)
	assert.Equal(t, models.WorkflowStatusFailed, loaded.Status)
	assert.Contains(t, loaded.FailureReason, "missing_permission")
}
