package triggers

import (
	"log/slog"

	"github.com/foreman-hq/foreman/pkg/models"
)

// Evaluator decides whether a trigger's conditions accept an entity snapshot.
// Any parse failure in the stored condition map suppresses the firing rather
// than letting a misconfigured trigger fire on everything.
type Evaluator struct {
	logger *slog.Logger
}

func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{logger: logger.With("module", "trigger_evaluator")}
}

// Accepts reports whether the trigger's conditions hold for the snapshot.
func (e *Evaluator) Accepts(trigger *models.Trigger, snapshot *models.EntitySnapshot) bool {
	conditions, err := models.ParseConditions(trigger.Conditions)
	if err != nil {
		e.logger.Warn("Suppressing trigger with unparseable conditions",
			"trigger_id", trigger.ID,
			"error", err)

		return false
	}

	return conditions.Evaluate(snapshot)
}
