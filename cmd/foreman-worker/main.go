package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/foreman-hq/foreman/pkg/agents"
	"github.com/foreman-hq/foreman/pkg/cmd"
	"github.com/foreman-hq/foreman/pkg/copilot"
	"github.com/foreman-hq/foreman/pkg/log"
	"github.com/foreman-hq/foreman/pkg/otelhelper"
	"github.com/foreman-hq/foreman/pkg/services"
)

func main() {
	command := &cli.Command{
		Name:                  "foreman-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers to execute PM Copilot workflow runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for the shared spend store",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
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

			tracerProvider, err := otelhelper.InitTracer(ctx, "foreman-worker")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("foreman-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Foreman Worker")

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

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

			gateway := agents.NewGateway(persistence.AgentConfigRepository(), spendStore, logger)
			engine := copilot.NewEngine(persistence, gateway, copilot.NewHeuristicGenerator(), eventBus, logger)
			copilotService := services.NewCopilot(persistence, engine, eventBus, logger)

			worker := NewWorker(
				workerID,
				persistence,
				copilotService,
				eventBus,
				logger,
			).WithTracer(tracerProvider.Tracer("foreman-worker"))

			if err := worker.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
