package triggers

import (
	"log/slog"
	"time"

	"github.com/foreman-hq/foreman/pkg/models"
)

// DedupGate suppresses repeat firings of the same trigger inside its
// configured sliding window. The window is keyed per trigger: two different
// triggers firing for the same entity never suppress each other.
type DedupGate struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewDedupGate(logger *slog.Logger) *DedupGate {
	return &DedupGate{
		logger: logger.With("module", "dedup_gate"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ShouldSuppress reports whether the trigger fired recently enough that this
// firing should be dropped. A trigger without a configured window, or one
// that never fired, always passes.
func (g *DedupGate) ShouldSuppress(trigger *models.Trigger) bool {
	window := trigger.DedupWindow()
	if window <= 0 || trigger.LastTriggeredAt == nil {
		return false
	}

	elapsed := g.now().Sub(*trigger.LastTriggeredAt)
	if elapsed >= window {
		return false
	}

	g.logger.Debug("Suppressing duplicate trigger firing",
		"trigger_id", trigger.ID,
		"window", window,
		"elapsed", elapsed)

	return true
}
