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

const inboxCollection = "inbox_items"

// InboxRepository handles inbox item storage on the file system.
type InboxRepository struct {
	store *store
}

func (r *InboxRepository) Save(ctx context.Context, item *models.InboxItem) error {
	now := time.Now().UTC()

	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}

	item.UpdatedAt = now

	if item.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate inbox item ID: %w", err)
		}

		item.ID = id.String()
	}

	return r.store.write(inboxCollection, item.ID, item)
}

func (r *InboxRepository) GetByID(ctx context.Context, id string) (*models.InboxItem, error) {
	item := &models.InboxItem{}

	found, err := r.store.read(inboxCollection, id, item)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "inbox_item", id, persistence.ErrInboxItemNotFound)
	}

	return item, nil
}

func (r *InboxRepository) ListPendingByTeam(ctx context.Context, teamID string) ([]*models.InboxItem, error) {
	ids, err := r.store.ids(inboxCollection)
	if err != nil {
		return nil, err
	}

	items := make([]*models.InboxItem, 0)

	for _, id := range ids {
		item := &models.InboxItem{}

		found, err := r.store.read(inboxCollection, id, item)
		if err != nil {
			return nil, err
		}

		if !found || item.TeamID != teamID || item.Resolved() {
			continue
		}

		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	return items, nil
}
