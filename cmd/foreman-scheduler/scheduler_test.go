package main

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foreman-hq/foreman/pkg/agents"
	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence/file"
)

func TestScheduler_ResetDailySpend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	p := file.NewPersistence(t.TempDir())
	spend := agents.NewMemorySpendStore()
	ctx := t.Context()

	first := &models.AgentConfig{TeamID: "team-1", Name: "pm copilot", Enabled: true, Mode: models.CopilotModeStaged}
	second := &models.AgentConfig{TeamID: "team-2", Name: "pm copilot", Enabled: true, Mode: models.CopilotModeFull}
	require.NoError(t, p.AgentConfigRepository().Save(ctx, first))
	require.NoError(t, p.AgentConfigRepository().Save(ctx, second))

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, spend.AddSpend(ctx, first.ID, now, 500))
	require.NoError(t, spend.AddSpend(ctx, second.ID, now, 300))

	scheduler := NewScheduler("test-scheduler", p, spend, logger)
	scheduler.now = func() time.Time { return now }

	require.NoError(t, scheduler.ResetDailySpend(ctx))

	daily, err := spend.DailySpent(ctx, first.ID, now)
	require.NoError(t, err)
	assert.Zero(t, daily)

	daily, err = spend.DailySpent(ctx, second.ID, now)
	require.NoError(t, err)
	assert.Zero(t, daily)

	// Monthly counters roll over by key and are untouched by the reset.
	monthly, err := spend.MonthlySpent(ctx, first.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(500), monthly)
}

func TestScheduler_ResetDailySpend_NoAgents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	p := file.NewPersistence(t.TempDir())

	scheduler := NewScheduler("test-scheduler", p, agents.NewMemorySpendStore(), logger)

	require.NoError(t, scheduler.ResetDailySpend(t.Context()))
}

func TestScheduler_WithSchedule_Invalid(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	p := file.NewPersistence(t.TempDir())

	scheduler := NewScheduler("test-scheduler", p, agents.NewMemorySpendStore(), logger).
		WithSchedule("not a cron expression")

	assert.Error(t, scheduler.Start(t.Context()))
}
