package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/foreman-hq/foreman/pkg/eventbus"
	"github.com/foreman-hq/foreman/pkg/events"
	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/otelhelper"
	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/foreman-hq/foreman/pkg/services"
)

// Worker consumes TriggerFired events and executes the referenced chain's
// workflow. Entity state is re-fetched at execution time, so a job that sat
// in the queue never runs against the snapshot that enqueued it.
type Worker struct {
	id             string
	persistence    persistence.Persistence
	copilotService *services.Copilot
	eventBus       eventbus.EventBus
	tracer         trace.Tracer
	logger         *slog.Logger
}

func NewWorker(
	id string,
	p persistence.Persistence,
	copilotService *services.Copilot,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:             id,
		persistence:    p,
		copilotService: copilotService,
		eventBus:       eventBus,
		tracer:         noop.NewTracerProvider().Tracer("worker"),
		logger:         logger.With("module", "worker"),
	}
}

// WithTracer installs a real tracer. The default is a no-op.
func (w *Worker) WithTracer(tracer trace.Tracer) *Worker {
	w.tracer = tracer

	return w
}

// Start subscribes to trigger firings and blocks until a shutdown signal.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker subscriptions")

	if err := w.eventBus.Handle(events.TriggerFiredEvent, w.handleTriggerFired); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		return err
	}

	w.logger.Info("Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		w.logger.Info("Shutting down worker...")
	case <-ctx.Done():
		w.logger.Info("Worker context cancelled, stopping...")
	}

	return nil
}

// handleTriggerFired runs one trigger firing. Workflow failures are recorded
// on the workflow state and not returned, so the bus never redelivers a job
// whose outcome is already persisted.
func (w *Worker) handleTriggerFired(ctx context.Context, event any) error {
	fired, ok := event.(*events.TriggerFired)
	if !ok {
		w.logger.Error("Invalid event type for TriggerFired")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.handle_trigger_fired",
		attribute.String(otelhelper.TeamIDKey, fired.TeamID),
		attribute.String(otelhelper.TriggerIDKey, fired.TriggerID),
		attribute.String(otelhelper.ChainIDKey, fired.ChainID),
		attribute.String(otelhelper.EntityIDKey, fired.EntityID),
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	logger := w.logger.With(
		"trigger_id", fired.TriggerID,
		"chain_id", fired.ChainID,
		"entity_id", fired.EntityID,
		"event_id", fired.ID,
	)

	logger.Info("Processing trigger firing")

	chain, err := w.persistence.ChainRepository().GetByID(ctx, fired.ChainID)
	if err != nil {
		if persistence.IsChainNotFound(err) {
			logger.Warn("Dropping firing for missing chain")

			return nil
		}

		otelhelper.SetError(span, err)

		return err
	}

	if !chain.Enabled {
		logger.Info("Dropping firing for disabled chain")

		return nil
	}

	if chain.Kind != models.ChainKindPMCopilot {
		logger.Warn("Dropping firing for unsupported chain kind", "kind", chain.Kind)

		return nil
	}

	// A pm_copilot chain only runs for work orders. Triggers on other entity
	// types can legitimately point at one, so firings like that are dropped
	// rather than bounced back to the bus.
	if fired.EntityType != models.EntityTypeWorkOrder {
		logger.Warn("Dropping firing for unsupported entity type", "entity_type", fired.EntityType)

		return nil
	}

	state, err := w.copilotService.StartForWorkOrder(ctx, fired.TeamID, fired.EntityID, fired.ActingUserID)
	if err != nil {
		if services.IsConflictError(err) {
			logger.Info("Skipping firing, a run is already active", "error", err)

			return nil
		}

		if persistence.IsWorkOrderNotFound(err) {
			logger.Warn("Dropping firing for missing work order")

			return nil
		}

		// The run failed and the failure is persisted on the state; do not
		// ask the bus to redeliver.
		if state != nil {
			logger.Error("Workflow run failed",
				"workflow_state_id", state.ID,
				"error", err)
			otelhelper.SetError(span, err)

			return nil
		}

		otelhelper.SetError(span, err)

		return err
	}

	span.SetAttributes(attribute.String(otelhelper.WorkflowStateIDKey, state.ID))

	logger.Info("Workflow run finished",
		"workflow_state_id", state.ID,
		"status", state.Status)

	return nil
}
