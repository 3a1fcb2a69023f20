package services

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
	"github.com/foreman-hq/foreman/pkg/copilot"
	"github.com/foreman-hq/foreman/pkg/mocks"
	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/foreman-hq/foreman/pkg/persistence/file"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type copilotFixture struct {
	service     *Copilot
	persistence persistence.Persistence
	workOrder   *models.WorkOrder
}

func setupCopilot(t *testing.T, mode models.CopilotMode) *copilotFixture {
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

	gateway := agents.NewGateway(p.AgentConfigRepository(), agents.NewMemorySpendStore(), testLogger())

	eventBus := &mocks.MockEventBus{}
	eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	engine := copilot.NewEngine(p, gateway, copilot.NewHeuristicGenerator(), eventBus, testLogger())

	return &copilotFixture{
		service:     NewCopilot(p, engine, eventBus, testLogger()),
		persistence: p,
		workOrder:   workOrder,
	}
}

// startPaused starts a staged run and returns the paused state and the inbox
// item its pause opened.
func startPaused(t *testing.T, f *copilotFixture) (*models.WorkflowState, *models.InboxItem) {
	t.Helper()

	ctx := t.Context()

	state, err := f.service.StartForWorkOrder(ctx, "team-1", f.workOrder.ID, "user-1")
	require.NoError(t, err)

	paused, err := f.persistence.WorkflowStateRepository().GetByID(ctx, state.ID)
	require.NoError(t, err)
	require.True(t, paused.Paused())

	items, err := f.persistence.InboxRepository().ListPendingByTeam(ctx, "team-1")
	require.NoError(t, err)
	require.Len(t, items, 1)

	return paused, items[0]
}

func TestCopilot_StartRejectsSecondActiveRun(t *testing.T) {
	t.Parallel()

	f := setupCopilot(t, models.CopilotModeStaged)
	ctx := t.Context()

	_, _ = startPaused(t, f)

	_, err := f.service.StartForWorkOrder(ctx, "team-1", f.workOrder.ID, "user-1")
	require.Error(t, err)
	assert.True(t, IsConflictError(err))
}

func TestCopilot_ApproveSuggestionCreatesExactlyOneRecord(t *testing.T) {
	t.Parallel()

	f := setupCopilot(t, models.CopilotModeStaged)
	ctx := t.Context()

	_, item := startPaused(t, f)

	approved, err := f.service.ApproveSuggestion(ctx, ResolveSuggestionRequest{
		InboxItemID:     item.ID,
		SuggestionType:  "deliverable",
		SuggestionIndex: 0,
		ActorID:         "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SuggestionStatusApproved, approved.Status)
	assert.NotEmpty(t, approved.CreatedRecordID)

	// Exactly one deliverable row exists, matching the approved suggestion.
	deliverables, err := f.persistence.DeliverableRepository().ListByWorkOrder(ctx, f.workOrder.ID)
	require.NoError(t, err)
	require.Len(t, deliverables, 1)
	assert.Equal(t, approved.CreatedRecordID, deliverables[0].ID)
	assert.Equal(t, approved.Title, deliverables[0].Title)
	assert.Equal(t, "user-1", deliverables[0].CreatedBy)

	// Sibling suggestions stay pending and the run stays paused.
	suggestions, err := f.service.Suggestions(ctx, f.workOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusPaused, suggestions.Status)
	require.Greater(t, len(suggestions.Deliverables), 1)

	for index, suggestion := range suggestions.Deliverables[1:] {
		assert.Equal(t, models.SuggestionStatusPending, suggestion.Status, "sibling %d", index+1)
	}
}

// brokenStateSaves wraps a persistence so workflow state saves can be made
// to fail while every other repository keeps working.
type brokenStateSaves struct {
	persistence.Persistence
	fail bool
}

func (p *brokenStateSaves) WorkflowStateRepository() persistence.WorkflowStateRepository {
	return &brokenStateRepo{WorkflowStateRepository: p.Persistence.WorkflowStateRepository(), parent: p}
}

type brokenStateRepo struct {
	persistence.WorkflowStateRepository
	parent *brokenStateSaves
}

func (r *brokenStateRepo) Save(ctx context.Context, state *models.WorkflowState) error {
	if r.parent.fail {
		return errors.New("state save failed")
	}

	return r.WorkflowStateRepository.Save(ctx, state)
}

func TestCopilot_ApproveRetryAfterSaveFailureCreatesOneRecord(t *testing.T) {
	t.Parallel()

	f := setupCopilot(t, models.CopilotModeStaged)
	ctx := t.Context()

	_, item := startPaused(t, f)

	broken := &brokenStateSaves{Persistence: f.persistence}
	flaky := NewCopilot(broken, nil, nil, testLogger())

	req := ResolveSuggestionRequest{
		InboxItemID:     item.ID,
		SuggestionType:  "deliverable",
		SuggestionIndex: 0,
		ActorID:         "user-1",
	}

	broken.fail = true
	_, err := flaky.ApproveSuggestion(ctx, req)
	require.Error(t, err)

	// The failed approval left nothing behind: no record, suggestion pending.
	deliverables, err := f.persistence.DeliverableRepository().ListByWorkOrder(ctx, f.workOrder.ID)
	require.NoError(t, err)
	assert.Empty(t, deliverables)

	suggestions, err := f.service.Suggestions(ctx, f.workOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SuggestionStatusPending, suggestions.Deliverables[0].Status)

	// The retry succeeds and creates exactly one record.
	broken.fail = false
	approved, err := flaky.ApproveSuggestion(ctx, req)
	require.NoError(t, err)

	deliverables, err = f.persistence.DeliverableRepository().ListByWorkOrder(ctx, f.workOrder.ID)
	require.NoError(t, err)
	require.Len(t, deliverables, 1)
	assert.Equal(t, approved.CreatedRecordID, deliverables[0].ID)
}

func TestCopilot_ApproveSameSuggestionTwiceConflicts(t *testing.T) {
	t.Parallel()

	f := setupCopilot(t, models.CopilotModeStaged)
	ctx := t.Context()

	_, item := startPaused(t, f)

	req := ResolveSuggestionRequest{
		InboxItemID:     item.ID,
		SuggestionType:  "deliverable",
		SuggestionIndex: 0,
		ActorID:         "user-1",
	}

	_, err := f.service.ApproveSuggestion(ctx, req)
	require.NoError(t, err)

	_, err = f.service.ApproveSuggestion(ctx, req)
	require.Error(t, err)
	assert.True(t, IsConflictError(err))

	deliverables, err := f.persistence.DeliverableRepository().ListByWorkOrder(ctx, f.workOrder.ID)
	require.NoError(t, err)
	assert.Len(t, deliverables, 1)
}

func TestCopilot_RejectSuggestionRecordsReason(t *testing.T) {
	t.Parallel()

	f := setupCopilot(t, models.CopilotModeStaged)
	ctx := t.Context()

	_, item := startPaused(t, f)

	rejected, err := f.service.RejectSuggestion(ctx, ResolveSuggestionRequest{
		InboxItemID:     item.ID,
		SuggestionType:  "deliverable",
		SuggestionIndex: 1,
		ActorID:         "user-1",
		Reason:          "duplicate of existing plan",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SuggestionStatusRejected, rejected.Status)
	assert.Equal(t, "duplicate of existing plan", rejected.RejectedReason)

	// No record was materialized and the other suggestions are unchanged.
	deliverables, err := f.persistence.DeliverableRepository().ListByWorkOrder(ctx, f.workOrder.ID)
	require.NoError(t, err)
	assert.Empty(t, deliverables)

	suggestions, err := f.service.Suggestions(ctx, f.workOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SuggestionStatusPending, suggestions.Deliverables[0].Status)
}

func TestCopilot_ResolveSuggestionValidation(t *testing.T) {
	t.Parallel()

	f := setupCopilot(t, models.CopilotModeStaged)
	ctx := t.Context()

	_, item := startPaused(t, f)

	tests := []struct {
		name string
		req  ResolveSuggestionRequest
	}{
		{
			name: "unknown suggestion type",
			req:  ResolveSuggestionRequest{InboxItemID: item.ID, SuggestionType: "milestone", SuggestionIndex: 0},
		},
		{
			name: "index out of range",
			req:  ResolveSuggestionRequest{InboxItemID: item.ID, SuggestionType: "deliverable", SuggestionIndex: 99},
		},
		{
			name: "negative index",
			req:  ResolveSuggestionRequest{InboxItemID: item.ID, SuggestionType: "deliverable", SuggestionIndex: -1},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := f.service.ApproveSuggestion(ctx, testCase.req)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestCopilot_ResumeCompletesRunAndResolvesInbox(t *testing.T) {
	t.Parallel()

	f := setupCopilot(t, models.CopilotModeStaged)
	ctx := t.Context()

	paused, item := startPaused(t, f)

	_, err := f.service.ResumeWorkflow(ctx, paused.ID, "user-1")
	require.NoError(t, err)

	resumed, err := f.persistence.WorkflowStateRepository().GetByID(ctx, paused.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, resumed.Status)

	resolved, err := f.persistence.InboxRepository().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.NotNil(t, resolved.ApprovedAt)

	pending, err := f.persistence.InboxRepository().ListPendingByTeam(ctx, "team-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCopilot_ResumeFailureKeepsInboxPending(t *testing.T) {
	t.Parallel()

	f := setupCopilot(t, models.CopilotModeStaged)
	ctx := t.Context()

	paused, item := startPaused(t, f)

	// Revoke the task permission so the resumed run fails at generation.
	config, err := f.persistence.AgentConfigRepository().GetByTeam(ctx, "team-1")
	require.NoError(t, err)

	config.Permissions = []string{models.PermissionGenerateDeliverables}
	require.NoError(t, f.persistence.AgentConfigRepository().Save(ctx, config))

	_, err = f.service.ResumeWorkflow(ctx, paused.ID, "user-1")
	require.Error(t, err)

	// The failed resume must not consume the approval item.
	pending, err := f.persistence.InboxRepository().ListPendingByTeam(ctx, "team-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, item.ID, pending[0].ID)
}

func TestCopilot_ResumeRequiresPausedRun(t *testing.T) {
	t.Parallel()

	f := setupCopilot(t, models.CopilotModeFull)
	ctx := t.Context()

	state, err := f.service.StartForWorkOrder(ctx, "team-1", f.workOrder.ID, "user-1")
	require.NoError(t, err)

	_, err = f.service.ResumeWorkflow(ctx, state.ID, "user-1")
	require.Error(t, err)
	assert.True(t, IsConflictError(err))
}

func TestCopilot_RejectWorkflowAbandonsRun(t *testing.T) {
	t.Parallel()

	f := setupCopilot(t, models.CopilotModeStaged)
	ctx := t.Context()

	paused, item := startPaused(t, f)

	rejected, err := f.service.RejectWorkflow(ctx, paused.ID, "user-1", "not needed")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusRejected, rejected.Status)
	assert.Nil(t, rejected.PausedAt)

	resolved, err := f.persistence.InboxRepository().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.NotNil(t, resolved.RejectedAt)

	// Suggestions generated before the rejection remain inspectable.
	suggestions, err := f.service.Suggestions(ctx, f.workOrder.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, suggestions.Deliverables)

	// A terminal run no longer blocks a fresh start.
	_, err = f.service.StartForWorkOrder(ctx, "team-1", f.workOrder.ID, "user-2")
	require.NoError(t, err)
}

func TestCopilot_UpdateAgentSettings(t *testing.T) {
	t.Parallel()

	f := setupCopilot(t, models.CopilotModeStaged)
	ctx := t.Context()

	workOrder, err := f.service.UpdateAgentSettings(ctx, f.workOrder.ID, "full")
	require.NoError(t, err)
	assert.Equal(t, models.CopilotModeFull, workOrder.PMCopilotMode)

	_, err = f.service.UpdateAgentSettings(ctx, f.workOrder.ID, "turbo")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}
