package triggers

import (
	"context"
	"log/slog"
	"time"

	"github.com/foreman-hq/foreman/pkg/eventbus"
	"github.com/foreman-hq/foreman/pkg/events"
	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
)

// Dispatcher turns matched triggers into queued work. For every match it
// stamps last_triggered_at and then publishes a TriggerFired event carrying
// entity identifiers only. The stamp happens before publishing so the dedup
// window holds even when the enqueue fails.
type Dispatcher struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	logger      *slog.Logger
	now         func() time.Time
}

func NewDispatcher(p persistence.Persistence, eventBus eventbus.EventBus, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		persistence: p,
		eventBus:    eventBus,
		logger:      logger.With("module", "trigger_dispatcher"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch fires every matched trigger. One trigger failing never blocks the
// rest; the count of successfully dispatched triggers is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, snapshot *models.EntitySnapshot, matched []*models.Trigger, actingUserID string) int {
	dispatched := 0

	for _, trigger := range matched {
		if err := d.dispatchOne(ctx, snapshot, trigger, actingUserID); err != nil {
			d.logger.Error("Failed to dispatch trigger",
				"trigger_id", trigger.ID,
				"entity_id", snapshot.EntityID,
				"error", err)

			continue
		}

		dispatched++
	}

	return dispatched
}

func (d *Dispatcher) dispatchOne(ctx context.Context, snapshot *models.EntitySnapshot, trigger *models.Trigger, actingUserID string) error {
	firedAt := d.now()

	err := d.persistence.TriggerRepository().MarkTriggered(ctx, trigger.ID, firedAt)
	if err != nil {
		return err
	}

	event := events.TriggerFired{
		BaseEvent:    events.NewBaseEvent(events.TriggerFiredEvent, snapshot.TeamID),
		TriggerID:    trigger.ID,
		ChainID:      trigger.ChainID,
		EntityType:   snapshot.EntityType,
		EntityID:     snapshot.EntityID,
		FromStatus:   snapshot.FromStatus,
		ToStatus:     snapshot.ToStatus,
		ActingUserID: actingUserID,
	}
	event.ID = d.eventBus.GenerateID()

	if err := d.eventBus.Publish(ctx, snapshot.EntityID, event); err != nil {
		// last_triggered_at is already stamped; the window still counts
		// this attempt.
		return err
	}

	d.logger.Info("Dispatched trigger",
		"trigger_id", trigger.ID,
		"chain_id", trigger.ChainID,
		"entity_id", snapshot.EntityID,
		"event_id", event.ID)

	return nil
}
