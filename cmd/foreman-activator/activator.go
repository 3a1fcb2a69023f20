package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/foreman-hq/foreman/pkg/eventbus"
	"github.com/foreman-hq/foreman/pkg/events"
	"github.com/foreman-hq/foreman/pkg/otelhelper"
	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/foreman-hq/foreman/pkg/triggers"
)

// Activator consumes domain status-change events, matches them against the
// team's triggers, and dispatches TriggerFired events for the workers.
type Activator struct {
	id             string
	eventBus       eventbus.EventBus
	statusEventBus eventbus.StatusEventBus
	persistence    persistence.Persistence
	matcher        *triggers.Matcher
	dispatcher     *triggers.Dispatcher
	tracer         trace.Tracer
	logger         *slog.Logger
	restartCount   int
}

// NewActivator creates a new Activator instance.
func NewActivator(
	id string,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	statusEventBus eventbus.StatusEventBus,
	logger *slog.Logger,
) *Activator {
	return &Activator{
		id:             id,
		eventBus:       eventBus,
		statusEventBus: statusEventBus,
		persistence:    p,
		matcher:        triggers.NewMatcher(p, logger),
		dispatcher:     triggers.NewDispatcher(p, eventBus, logger),
		tracer:         noop.NewTracerProvider().Tracer("activator"),
		logger:         logger.With("module", "activator"),
	}
}

// WithTracer installs a real tracer. The default is a no-op.
func (a *Activator) WithTracer(tracer trace.Tracer) *Activator {
	a.tracer = tracer

	return a
}

// Start begins the activator service.
func (a *Activator) Start(ctx context.Context) {
	aCtx, cancel := context.WithCancel(ctx)

	a.logger.Info("Starting activator")

	a.handleSignals(aCtx, cancel)
	a.run(aCtx)
}

// handleSignals sets up signal handling for graceful shutdown and restart.
func (a *Activator) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		a.logger.Info("Received signal", "signal", sig)

		switch sig {
		case syscall.SIGHUP:
			a.logger.Info("Reloading configuration...")
			a.restart(ctx, cancel)
		case syscall.SIGINT, syscall.SIGTERM:
			a.logger.Info("Shutting down gracefully...")
			a.stop(cancel)
			os.Exit(0)
		default:
			a.logger.Warn("Unhandled signal received", "signal", sig)
		}
	}()
}

// restart handles service restart with exponential backoff.
func (a *Activator) restart(ctx context.Context, cancel context.CancelFunc) {
	a.restartCount++
	newCtx := context.WithoutCancel(ctx)

	a.stop(cancel)

	if a.restartCount > 5 {
		a.logger.Error("Restart limit reached, exiting...")
		os.Exit(1)
	}

	backoff := time.Duration(a.restartCount) * time.Second
	a.logger.Info("Restarting activator...", "backoff", backoff)
	time.Sleep(backoff)

	a.Start(newCtx)
}

// run is the main loop that consumes status-change events.
func (a *Activator) run(ctx context.Context) {
	a.logger.Info("Starting status event consumption")

	a.processStatusEvents(ctx)

	// Wait for context cancellation - the subscription runs in background goroutines
	<-ctx.Done()
	a.logger.Info("Activator context cancelled, stopping...")
}

// processStatusEvents subscribes to the status topic and wires the handler.
func (a *Activator) processStatusEvents(ctx context.Context) {
	a.logger.Info("Setting up status event subscription")

	err := a.statusEventBus.HandleStatusChanges(func(ctx context.Context, event *events.StatusChanged) error {
		a.logger.Info("Received status change",
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
			"from_status", event.FromStatus,
			"to_status", event.ToStatus)

		return a.handleStatusChange(ctx, event)
	})
	if err != nil {
		a.logger.Error("Failed to register status event handler", "error", err)

		return
	}

	err = a.statusEventBus.SubscribeToStatusChanges(ctx)
	if err != nil {
		a.logger.Error("Failed to start status event subscription", "error", err)

		return
	}

	a.logger.Info("Successfully subscribed to status changes - waiting for events...")
}

// handleStatusChange runs one status change through matching and dispatch.
// Returning an error makes the bus redeliver, so only validation failures and
// matching errors propagate; dispatch failures are isolated per trigger.
func (a *Activator) handleStatusChange(ctx context.Context, event *events.StatusChanged) error {
	ctx, span := otelhelper.StartSpan(ctx, a.tracer, "activator.handle_status_change",
		attribute.String(otelhelper.TeamIDKey, event.TeamID),
		attribute.String(otelhelper.EntityTypeKey, string(event.EntityType)),
		attribute.String(otelhelper.EntityIDKey, event.EntityID),
		attribute.String(otelhelper.ActivatorIDKey, a.id),
	)
	defer span.End()

	logger := a.logger.With(
		"entity_type", event.EntityType,
		"entity_id", event.EntityID,
		"to_status", event.ToStatus,
	)

	if err := event.Validate(); err != nil {
		logger.Error("Invalid status change event", "error", err)
		otelhelper.SetError(span, err)

		return err
	}

	snapshot := event.Snapshot()

	matched, err := a.matcher.Match(ctx, snapshot)
	if err != nil {
		logger.Error("Failed to match triggers", "error", err)
		otelhelper.SetError(span, err)

		return err
	}

	logger.Info("Found matching triggers", "count", len(matched))

	dispatched := a.dispatcher.Dispatch(ctx, snapshot, matched, event.ActingUserID)

	span.SetAttributes(attribute.Int("foreman.triggers.dispatched", dispatched))

	return nil
}

// stop gracefully shuts down the activator.
func (a *Activator) stop(cancel context.CancelFunc) {
	a.logger.Info("Stopping activator")

	if cancel != nil {
		cancel()
	}
}
