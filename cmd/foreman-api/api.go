// Package main provides the Foreman API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/foreman-hq/foreman/pkg/agents"
	"github.com/foreman-hq/foreman/pkg/copilot"
	"github.com/foreman-hq/foreman/pkg/eventbus"
	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/foreman-hq/foreman/pkg/services"
	"github.com/foreman-hq/foreman/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	spendStore  agents.SpendStore
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	spendStore agents.SpendStore,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		spendStore:  spendStore,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	gateway := agents.NewGateway(a.persistence.AgentConfigRepository(), a.spendStore, a.logger)
	engine := copilot.NewEngine(a.persistence, gateway, copilot.NewHeuristicGenerator(), a.eventBus, a.logger)

	copilotService := services.NewCopilot(a.persistence, engine, a.eventBus, a.logger)
	triggerService := services.NewTrigger(a.persistence, a.logger)

	handlers := web.NewAPIHandlers(copilotService, triggerService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Foreman API")
	})

	workOrders := app.Group("/work-orders")
	workOrders.Post("/:id/pm-copilot/trigger", handlers.TriggerCopilot)
	workOrders.Get("/:id/pm-copilot/suggestions", handlers.GetSuggestions)
	workOrders.Patch("/:id/agent-settings", handlers.UpdateAgentSettings)

	pmCopilot := app.Group("/pm-copilot")
	pmCopilot.Post("/suggestions/:inboxItemId/approve", handlers.ApproveSuggestion)
	pmCopilot.Post("/suggestions/:inboxItemId/reject", handlers.RejectSuggestion)
	pmCopilot.Post("/workflow-states/:id/resume", handlers.ResumeWorkflow)
	pmCopilot.Post("/workflow-states/:id/reject", handlers.RejectWorkflow)

	triggers := app.Group("/triggers")
	triggers.Get("/", handlers.GetTriggers)
	triggers.Post("/", handlers.CreateTrigger)
	triggers.Get("/:id", handlers.GetTrigger)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
