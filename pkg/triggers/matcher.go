package triggers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
)

// Matcher narrows the team's triggers down to the ones that should fire for
// one status change: scope and status filters in the query, then chain
// enablement, conditions, and the dedup window in memory.
type Matcher struct {
	persistence persistence.Persistence
	evaluator   *Evaluator
	dedupGate   *DedupGate
	logger      *slog.Logger
}

func NewMatcher(p persistence.Persistence, logger *slog.Logger) *Matcher {
	return &Matcher{
		persistence: p,
		evaluator:   NewEvaluator(logger),
		dedupGate:   NewDedupGate(logger),
		logger:      logger.With("module", "trigger_matcher"),
	}
}

// Match returns the triggers that should fire for the snapshot, preserving
// the dispatch order of the underlying query (priority desc, then creation
// order).
func (m *Matcher) Match(ctx context.Context, snapshot *models.EntitySnapshot) ([]*models.Trigger, error) {
	candidates, err := m.persistence.TriggerRepository().ListForEvent(
		ctx,
		snapshot.TeamID,
		snapshot.EntityType,
		snapshot.FromStatus,
		snapshot.ToStatus,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate triggers: %w", err)
	}

	matched := make([]*models.Trigger, 0, len(candidates))

	for _, trigger := range candidates {
		if !m.chainEnabled(ctx, trigger) {
			continue
		}

		if !m.evaluator.Accepts(trigger, snapshot) {
			continue
		}

		if m.dedupGate.ShouldSuppress(trigger) {
			continue
		}

		matched = append(matched, trigger)
	}

	return matched, nil
}

// chainEnabled checks the trigger's chain. A trigger pointing at a missing or
// disabled chain never matches; a trigger with no chain at all is considered
// misconfigured and skipped the same way.
func (m *Matcher) chainEnabled(ctx context.Context, trigger *models.Trigger) bool {
	if trigger.ChainID == "" {
		m.logger.Warn("Skipping trigger without a chain", "trigger_id", trigger.ID)

		return false
	}

	chain, err := m.persistence.ChainRepository().GetByID(ctx, trigger.ChainID)
	if err != nil {
		if persistence.IsChainNotFound(err) {
			m.logger.Warn("Skipping trigger with missing chain",
				"trigger_id", trigger.ID,
				"chain_id", trigger.ChainID)

			return false
		}

		m.logger.Error("Failed to load chain for trigger",
			"trigger_id", trigger.ID,
			"chain_id", trigger.ChainID,
			"error", err)

		return false
	}

	return chain.Enabled
}
