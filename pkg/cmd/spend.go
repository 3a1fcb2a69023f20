package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foreman-hq/foreman/pkg/agents"
)

// NewSpendStore creates the agent spend store. A redis:// URL selects the
// Redis-backed store shared across workers; anything else falls back to the
// in-process store, which is only suitable for a single-instance deployment.
func NewSpendStore(ctx context.Context, logger *slog.Logger, redisURL string) agents.SpendStore {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		store, err := agents.NewRedisSpendStore(ctx, redisURL)
		if err != nil {
			panic(fmt.Errorf("failed to create Redis spend store: %w", err))
		}

		return store
	}

	logger.Warn("Using in-memory spend store; budget caps are per-process only")

	return agents.NewMemorySpendStore()
}
