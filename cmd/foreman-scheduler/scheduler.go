package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/foreman-hq/foreman/pkg/agents"
	"github.com/foreman-hq/foreman/pkg/persistence"
)

// DefaultDailyResetSchedule fires at midnight UTC, the boundary the spend
// counters are keyed on.
const DefaultDailyResetSchedule = "0 0 * * *"

// Scheduler runs the recurring maintenance jobs: today only the daily agent
// spend reset. Monthly counters are keyed per month and roll over on their
// own, so there is no monthly job.
type Scheduler struct {
	id          string
	persistence persistence.Persistence
	spendStore  agents.SpendStore
	schedule    string
	cron        *cron.Cron
	logger      *slog.Logger
	now         func() time.Time
}

func NewScheduler(
	id string,
	p persistence.Persistence,
	spendStore agents.SpendStore,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		id:          id,
		persistence: p,
		spendStore:  spendStore,
		schedule:    DefaultDailyResetSchedule,
		logger:      logger.With("module", "scheduler"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithSchedule overrides the daily reset cron expression.
func (s *Scheduler) WithSchedule(schedule string) *Scheduler {
	s.schedule = schedule

	return s
}

// Start registers the cron jobs and blocks until a shutdown signal.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return err
	}

	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		),
	)

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.ResetDailySpend(ctx); err != nil {
			s.logger.Error("Daily spend reset failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Scheduler started successfully", "daily_reset_schedule", s.schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		s.logger.Info("Shutting down scheduler...")
	case <-ctx.Done():
		s.logger.Info("Scheduler context cancelled, stopping...")
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	return nil
}

// ResetDailySpend zeroes the current day's counter for every configured
// agent. A failure on one agent is logged and does not stop the sweep.
func (s *Scheduler) ResetDailySpend(ctx context.Context) error {
	day := s.now()

	configs, err := s.persistence.AgentConfigRepository().ListAll(ctx)
	if err != nil {
		return err
	}

	s.logger.Info("Resetting daily agent spend", "agents", len(configs), "day", day.Format("2006-01-02"))

	var failed int

	for _, config := range configs {
		if err := s.spendStore.ResetDay(ctx, config.ID, day); err != nil {
			s.logger.Error("Failed to reset daily spend",
				"agent_id", config.ID,
				"team_id", config.TeamID,
				"error", err)

			failed++
		}
	}

	if failed > 0 {
		s.logger.Warn("Daily spend reset finished with failures", "failed", failed)
	}

	return nil
}
