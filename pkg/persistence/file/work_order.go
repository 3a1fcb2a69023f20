package file

import (
	"context"
	"fmt"
	"time"

	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/google/uuid"
)

const workOrdersCollection = "work_orders"

// WorkOrderRepository handles work order storage on the file system.
type WorkOrderRepository struct {
	store *store
}

func (r *WorkOrderRepository) Save(ctx context.Context, workOrder *models.WorkOrder) error {
	now := time.Now().UTC()

	if workOrder.CreatedAt.IsZero() {
		workOrder.CreatedAt = now
	}

	workOrder.UpdatedAt = now

	if workOrder.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate work order ID: %w", err)
		}

		workOrder.ID = id.String()
	}

	return r.store.write(workOrdersCollection, workOrder.ID, workOrder)
}

func (r *WorkOrderRepository) GetByID(ctx context.Context, id string) (*models.WorkOrder, error) {
	workOrder := &models.WorkOrder{}

	found, err := r.store.read(workOrdersCollection, id, workOrder)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "work_order", id, persistence.ErrWorkOrderNotFound)
	}

	return workOrder, nil
}

func (r *WorkOrderRepository) UpdateCopilotMode(ctx context.Context, id string, mode models.CopilotMode) error {
	workOrder := &models.WorkOrder{}

	found, err := r.store.update(workOrdersCollection, id, workOrder, func() error {
		workOrder.PMCopilotMode = mode
		workOrder.UpdatedAt = time.Now().UTC()

		return nil
	})
	if err != nil {
		return err
	}

	if !found {
		return persistence.NewStoreError("UpdateCopilotMode", "work_order", id, persistence.ErrWorkOrderNotFound)
	}

	return nil
}
