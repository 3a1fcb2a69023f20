package file

import (
	"context"
	"fmt"
	"time"

	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/google/uuid"
)

const chainsCollection = "chains"

// ChainRepository handles chain storage on the file system.
type ChainRepository struct {
	store *store
}

func (r *ChainRepository) Save(ctx context.Context, chain *models.Chain) error {
	now := time.Now().UTC()

	if chain.CreatedAt.IsZero() {
		chain.CreatedAt = now
	}

	chain.UpdatedAt = now

	if chain.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate chain ID: %w", err)
		}

		chain.ID = id.String()
	}

	return r.store.write(chainsCollection, chain.ID, chain)
}

func (r *ChainRepository) GetByID(ctx context.Context, id string) (*models.Chain, error) {
	chain := &models.Chain{}

	found, err := r.store.read(chainsCollection, id, chain)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "chain", id, persistence.ErrChainNotFound)
	}

	return chain, nil
}
