package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/foreman-hq/foreman/pkg/cmd"
	"github.com/foreman-hq/foreman/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "foreman-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Run the recurring maintenance jobs (daily agent spend reset)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "scheduler-id",
				Aliases: []string{"id"},
				Usage:   "Custom scheduler ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("SCHEDULER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for the shared spend store",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "daily-reset-schedule",
				Usage:   "Cron expression for the daily spend reset (UTC)",
				Value:   DefaultDailyResetSchedule,
				Sources: cli.EnvVars("DAILY_RESET_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			schedulerID := command.String("scheduler-id")
			if schedulerID == "" {
				schedulerID = "scheduler-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("foreman-scheduler").With("scheduler_id", schedulerID)

			logger.InfoContext(ctx, "Initializing Foreman Scheduler")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			spendStore := cmd.NewSpendStore(ctx, logger, command.String("redis-url"))
			defer func() {
				if err := spendStore.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close spend store", "error", err)
				}
			}()

			scheduler := NewScheduler(
				schedulerID,
				persistence,
				spendStore,
				logger,
			).WithSchedule(command.String("daily-reset-schedule"))

			if err := scheduler.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start scheduler", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
