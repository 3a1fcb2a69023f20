package agents

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence/file"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupGateway(t *testing.T, config *models.AgentConfig) (*Gateway, *MemorySpendStore) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	if config != nil {
		require.NoError(t, p.AgentConfigRepository().Save(t.Context(), config))
	}

	spend := NewMemorySpendStore()

	return NewGateway(p.AgentConfigRepository(), spend, testLogger()), spend
}

func enabledConfig(permissions ...string) *models.AgentConfig {
	return &models.AgentConfig{
		TeamID:          "team-1",
		Name:            "pm copilot",
		Enabled:         true,
		Mode:            models.CopilotModeStaged,
		DailyCapCents:   100,
		MonthlyCapCents: 1000,
		Permissions:     permissions,
	}
}

func TestGateway_AllowWithinCaps(t *testing.T) {
	t.Parallel()

	gateway, _ := setupGateway(t, enabledConfig(models.PermissionGenerateDeliverables))

	decision, config, err := gateway.Authorize(t.Context(), "team-1", ToolGenerateDeliverables)
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(25), decision.EstimatedCostCents)
}

func TestGateway_DenyReasons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config *models.AgentConfig
		tool   string
		reason DenyReason
	}{
		{
			name:   "no config for team",
			config: nil,
			tool:   ToolGenerateDeliverables,
			reason: DenyAgentDisabled,
		},
		{
			name: "agent disabled",
			config: &models.AgentConfig{
				TeamID:      "team-1",
				Name:        "pm copilot",
				Enabled:     false,
				Permissions: []string{models.PermissionGenerateDeliverables},
			},
			tool:   ToolGenerateDeliverables,
			reason: DenyAgentDisabled,
		},
		{
			name:   "unknown tool",
			config: enabledConfig(models.PermissionGenerateDeliverables),
			tool:   "summon_intern",
			reason: DenyUnknownTool,
		},
		{
			name:   "missing permission",
			config: enabledConfig(models.PermissionGenerateDeliverables),
			tool:   ToolGenerateTasks,
			reason: DenyMissingPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway, _ := setupGateway(t, tt.config)

			decision, _, err := gateway.Authorize(t.Context(), "team-1", tt.tool)
			require.NoError(t, err)
			assert.False(t, decision.Allowed)
			assert.Equal(t, tt.reason, decision.Reason)
		})
	}
}

func TestGateway_DailyCapExceeded(t *testing.T) {
	t.Parallel()

	config := enabledConfig(models.PermissionGenerateDeliverables)
	gateway, spend := setupGateway(t, config)
	ctx := t.Context()

	// Spend up to 80 of the 100 cent cap; the 25 cent tool no longer fits.
	require.NoError(t, spend.AddSpend(ctx, config.ID, time.Now().UTC(), 80))

	decision, _, err := gateway.Authorize(ctx, "team-1", ToolGenerateDeliverables)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyDailyCapExceeded, decision.Reason)
}

func TestGateway_CapBoundaryPerToolCost(t *testing.T) {
	t.Parallel()

	config := enabledConfig(models.PermissionGenerateDeliverables)
	config.DailyCapCents = 50
	gateway, spend := setupGateway(t, config)
	ctx := t.Context()

	gateway.catalog = map[string]ToolSpec{
		"expensive": {Name: "expensive", RequiredPermission: models.PermissionGenerateDeliverables, EstimatedCostCents: 5},
		"cheap":     {Name: "cheap", RequiredPermission: models.PermissionGenerateDeliverables, EstimatedCostCents: 2},
	}

	require.NoError(t, spend.AddSpend(ctx, config.ID, time.Now().UTC(), 48))

	denied, _, err := gateway.Authorize(ctx, "team-1", "expensive")
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	assert.Equal(t, DenyDailyCapExceeded, denied.Reason)

	allowed, _, err := gateway.Authorize(ctx, "team-1", "cheap")
	require.NoError(t, err)
	assert.True(t, allowed.Allowed)
}

func TestGateway_MonthlyCapExceeded(t *testing.T) {
	t.Parallel()

	config := enabledConfig(models.PermissionGenerateDeliverables)
	config.DailyCapCents = 0 // daily gate off, monthly still enforced
	gateway, spend := setupGateway(t, config)
	ctx := t.Context()

	require.NoError(t, spend.AddSpend(ctx, config.ID, time.Now().UTC(), 990))

	decision, _, err := gateway.Authorize(ctx, "team-1", ToolGenerateDeliverables)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyMonthlyCapReached, decision.Reason)
}

func TestGateway_ZeroCapsNotEnforced(t *testing.T) {
	t.Parallel()

	config := enabledConfig(models.PermissionGenerateDeliverables)
	config.DailyCapCents = 0
	config.MonthlyCapCents = 0
	gateway, spend := setupGateway(t, config)
	ctx := t.Context()

	require.NoError(t, spend.AddSpend(ctx, config.ID, time.Now().UTC(), 1_000_000))

	decision, _, err := gateway.Authorize(ctx, "team-1", ToolGenerateDeliverables)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestGateway_DailyWindowRollsAtUTCMidnight(t *testing.T) {
	t.Parallel()

	config := enabledConfig(models.PermissionGenerateDeliverables)
	gateway, spend := setupGateway(t, config)
	ctx := t.Context()

	yesterday := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	gateway.now = func() time.Time { return today }

	// Yesterday's spend exhausted the daily cap but counts toward the month.
	require.NoError(t, spend.AddSpend(ctx, config.ID, yesterday, 100))

	decision, _, err := gateway.Authorize(ctx, "team-1", ToolGenerateDeliverables)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	monthly, err := spend.MonthlySpent(ctx, config.ID, today)
	require.NoError(t, err)
	assert.Equal(t, int64(100), monthly)
}

func TestGateway_RecordSpendAndReset(t *testing.T) {
	t.Parallel()

	config := enabledConfig(models.PermissionGenerateDeliverables)
	gateway, spend := setupGateway(t, config)
	ctx := t.Context()

	require.NoError(t, gateway.RecordSpend(ctx, config.ID, ToolGenerateDeliverables, 25))
	require.NoError(t, gateway.RecordSpend(ctx, config.ID, ToolGenerateDeliverables, 25))

	daily, err := spend.DailySpent(ctx, config.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(50), daily)

	require.NoError(t, gateway.ResetDailySpend(ctx, "team-1"))

	daily, err = spend.DailySpent(ctx, config.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, daily)

	// Monthly counters survive the daily reset.
	monthly, err := spend.MonthlySpent(ctx, config.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(50), monthly)
}
