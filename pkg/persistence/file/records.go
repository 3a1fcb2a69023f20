package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/google/uuid"
)

const (
	deliverablesCollection = "deliverables"
	tasksCollection        = "tasks"
)

// DeliverableRepository handles deliverable storage on the file system.
type DeliverableRepository struct {
	store *store
}

func (r *DeliverableRepository) Save(ctx context.Context, deliverable *models.Deliverable) error {
	now := time.Now().UTC()

	if deliverable.CreatedAt.IsZero() {
		deliverable.CreatedAt = now
	}

	deliverable.UpdatedAt = now

	if deliverable.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate deliverable ID: %w", err)
		}

		deliverable.ID = id.String()
	}

	return r.store.write(deliverablesCollection, deliverable.ID, deliverable)
}

func (r *DeliverableRepository) ListByWorkOrder(ctx context.Context, workOrderID string) ([]*models.Deliverable, error) {
	ids, err := r.store.ids(deliverablesCollection)
	if err != nil {
		return nil, err
	}

	deliverables := make([]*models.Deliverable, 0)

	for _, id := range ids {
		deliverable := &models.Deliverable{}

		found, err := r.store.read(deliverablesCollection, id, deliverable)
		if err != nil {
			return nil, err
		}

		if found && deliverable.WorkOrderID == workOrderID {
			deliverables = append(deliverables, deliverable)
		}
	}

	sort.SliceStable(deliverables, func(i, j int) bool {
		return deliverables[i].CreatedAt.Before(deliverables[j].CreatedAt)
	})

	return deliverables, nil
}

func (r *DeliverableRepository) Delete(ctx context.Context, id string) error {
	return r.store.delete(deliverablesCollection, id)
}

// TaskRepository handles task storage on the file system.
type TaskRepository struct {
	store *store
}

func (r *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()

	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	task.UpdatedAt = now

	if task.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate task ID: %w", err)
		}

		task.ID = id.String()
	}

	return r.store.write(tasksCollection, task.ID, task)
}

func (r *TaskRepository) ListByWorkOrder(ctx context.Context, workOrderID string) ([]*models.Task, error) {
	ids, err := r.store.ids(tasksCollection)
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.Task, 0)

	for _, id := range ids {
		task := &models.Task{}

		found, err := r.store.read(tasksCollection, id, task)
		if err != nil {
			return nil, err
		}

		if found && task.WorkOrderID == workOrderID {
			tasks = append(tasks, task)
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	return r.store.delete(tasksCollection, id)
}
