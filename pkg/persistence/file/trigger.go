package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/google/uuid"
)

const triggersCollection = "triggers"

// TriggerRepository handles trigger storage on the file system.
type TriggerRepository struct {
	store *store
}

func (r *TriggerRepository) Save(ctx context.Context, trigger *models.Trigger) error {
	now := time.Now().UTC()

	if trigger.CreatedAt.IsZero() {
		trigger.CreatedAt = now
	}

	trigger.UpdatedAt = now

	if trigger.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate trigger ID: %w", err)
		}

		trigger.ID = id.String()
	}

	return r.store.write(triggersCollection, trigger.ID, trigger)
}

func (r *TriggerRepository) GetByID(ctx context.Context, id string) (*models.Trigger, error) {
	trigger := &models.Trigger{}

	found, err := r.store.read(triggersCollection, id, trigger)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "trigger", id, persistence.ErrTriggerNotFound)
	}

	return trigger, nil
}

func (r *TriggerRepository) ListByTeam(ctx context.Context, teamID string) ([]*models.Trigger, error) {
	all, err := r.loadAll()
	if err != nil {
		return nil, err
	}

	triggers := make([]*models.Trigger, 0)

	for _, trigger := range all {
		if trigger.TeamID == teamID {
			triggers = append(triggers, trigger)
		}
	}

	sortTriggers(triggers)

	return triggers, nil
}

func (r *TriggerRepository) ListForEvent(ctx context.Context, teamID string, entityType models.EntityType, fromStatus, toStatus string) ([]*models.Trigger, error) {
	all, err := r.loadAll()
	if err != nil {
		return nil, err
	}

	triggers := make([]*models.Trigger, 0)

	for _, trigger := range all {
		if trigger.TeamID != teamID || !trigger.Enabled || trigger.EntityType != entityType {
			continue
		}

		if !trigger.MatchesTransition(fromStatus, toStatus) {
			continue
		}

		triggers = append(triggers, trigger)
	}

	sortTriggers(triggers)

	return triggers, nil
}

func (r *TriggerRepository) MarkTriggered(ctx context.Context, triggerID string, firedAt time.Time) error {
	trigger := &models.Trigger{}

	found, err := r.store.update(triggersCollection, triggerID, trigger, func() error {
		trigger.LastTriggeredAt = &firedAt
		trigger.UpdatedAt = time.Now().UTC()

		return nil
	})
	if err != nil {
		return err
	}

	if !found {
		return persistence.NewStoreError("MarkTriggered", "trigger", triggerID, persistence.ErrTriggerNotFound)
	}

	return nil
}

func (r *TriggerRepository) loadAll() ([]*models.Trigger, error) {
	ids, err := r.store.ids(triggersCollection)
	if err != nil {
		return nil, err
	}

	triggers := make([]*models.Trigger, 0, len(ids))

	for _, id := range ids {
		trigger := &models.Trigger{}

		found, err := r.store.read(triggersCollection, id, trigger)
		if err != nil {
			return nil, err
		}

		if found {
			triggers = append(triggers, trigger)
		}
	}

	return triggers, nil
}

// sortTriggers orders by priority desc with created_at then id as stable
// tiebreaks, matching the dispatch ordering contract.
func sortTriggers(triggers []*models.Trigger) {
	sort.SliceStable(triggers, func(i, j int) bool {
		if triggers[i].Priority != triggers[j].Priority {
			return triggers[i].Priority > triggers[j].Priority
		}

		if !triggers[i].CreatedAt.Equal(triggers[j].CreatedAt) {
			return triggers[i].CreatedAt.Before(triggers[j].CreatedAt)
		}

		return triggers[i].ID < triggers[j].ID
	})
}
