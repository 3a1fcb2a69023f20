package main

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/foreman-hq/foreman/pkg/events"
	"github.com/foreman-hq/foreman/pkg/mocks"
	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/foreman-hq/foreman/pkg/persistence/file"
)

type activatorFixture struct {
	activator   *Activator
	persistence persistence.Persistence
	eventBus    *mocks.MockEventBus
	trigger     *models.Trigger
}

func setupActivator(t *testing.T) *activatorFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	p := file.NewPersistence(t.TempDir())
	ctx := t.Context()

	chain := &models.Chain{
		TeamID:  "team-1",
		Name:    "pm copilot chain",
		Kind:    models.ChainKindPMCopilot,
		Enabled: true,
	}
	require.NoError(t, p.ChainRepository().Save(ctx, chain))

	trigger := &models.Trigger{
		TeamID:     "team-1",
		ChainID:    chain.ID,
		Name:       "fire on activation",
		EntityType: models.EntityTypeWorkOrder,
		StatusFrom: strPtr("draft"),
		StatusTo:   strPtr("active"),
		Enabled:    true,
		Conditions: map[string]any{
			models.ConditionKeyDedupWindow: 60,
		},
	}
	require.NoError(t, p.TriggerRepository().Save(ctx, trigger))

	eventBus := &mocks.MockEventBus{}
	eventBus.On("GenerateID").Return("event-1")
	eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	statusEventBus := &mocks.MockStatusEventBus{}

	return &activatorFixture{
		activator:   NewActivator("test-activator", p, eventBus, statusEventBus, logger),
		persistence: p,
		eventBus:    eventBus,
		trigger:     trigger,
	}
}

func activationEvent() *events.StatusChanged {
	event := events.NewStatusChanged(models.EntityTypeWorkOrder, "wo-1", "team-1", "draft", "active", "user-1")
	event.Fields["budget_cents"] = float64(50_000)

	return event
}

func TestActivator_HandleStatusChange_DispatchesMatch(t *testing.T) {
	f := setupActivator(t)
	ctx := t.Context()

	require.NoError(t, f.activator.handleStatusChange(ctx, activationEvent()))

	// The firing attempt was stamped and the TriggerFired event published.
	stamped, err := f.persistence.TriggerRepository().GetByID(ctx, f.trigger.ID)
	require.NoError(t, err)
	require.NotNil(t, stamped.LastTriggeredAt)

	f.eventBus.AssertCalled(t, "Publish", mock.Anything, "wo-1", mock.MatchedBy(func(event events.TriggerFired) bool {
		return event.TriggerID == f.trigger.ID && event.EntityID == "wo-1" && event.ToStatus == "active"
	}))
}

func TestActivator_HandleStatusChange_InvalidEvent(t *testing.T) {
	f := setupActivator(t)

	event := activationEvent()
	event.EntityID = ""

	err := f.activator.handleStatusChange(t.Context(), event)
	require.Error(t, err)

	f.eventBus.AssertNotCalled(t, "Publish")
}

func TestActivator_HandleStatusChange_NoMatch(t *testing.T) {
	f := setupActivator(t)

	// Wrong transition: the trigger watches draft -> active.
	event := events.NewStatusChanged(models.EntityTypeWorkOrder, "wo-1", "team-1", "active", "done", "user-1")

	require.NoError(t, f.activator.handleStatusChange(t.Context(), event))

	f.eventBus.AssertNotCalled(t, "Publish")
}

// TestActivator_DedupWindowAcrossFirings walks one trigger through repeated
// status changes: the first fires, a repeat inside the 60-minute window is
// suppressed, and a repeat after the window fires again.
func TestActivator_DedupWindowAcrossFirings(t *testing.T) {
	f := setupActivator(t)
	ctx := t.Context()

	require.NoError(t, f.activator.handleStatusChange(ctx, activationEvent()))
	f.eventBus.AssertNumberOfCalls(t, "Publish", 1)

	// 30 minutes into the window: suppressed.
	require.NoError(t, f.persistence.TriggerRepository().MarkTriggered(ctx, f.trigger.ID, time.Now().UTC().Add(-30*time.Minute)))
	require.NoError(t, f.activator.handleStatusChange(ctx, activationEvent()))
	f.eventBus.AssertNumberOfCalls(t, "Publish", 1)

	// 61 minutes after the last firing: the window has elapsed.
	require.NoError(t, f.persistence.TriggerRepository().MarkTriggered(ctx, f.trigger.ID, time.Now().UTC().Add(-61*time.Minute)))
	require.NoError(t, f.activator.handleStatusChange(ctx, activationEvent()))
	f.eventBus.AssertNumberOfCalls(t, "Publish", 2)
}

func TestActivator_DisabledChainNeverMatches(t *testing.T) {
	f := setupActivator(t)
	ctx := t.Context()

	chain, err := f.persistence.ChainRepository().GetByID(ctx, f.trigger.ChainID)
	require.NoError(t, err)

	chain.Enabled = false
	require.NoError(t, f.persistence.ChainRepository().Save(ctx, chain))

	require.NoError(t, f.activator.handleStatusChange(ctx, activationEvent()))

	f.eventBus.AssertNotCalled(t, "Publish")

	stamped, err := f.persistence.TriggerRepository().GetByID(ctx, f.trigger.ID)
	require.NoError(t, err)
	assert.Nil(t, stamped.LastTriggeredAt)
}

func strPtr(s string) *string {
	return &s
}
