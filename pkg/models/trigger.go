package models

import (
	"time"
)

// ConditionKeyDedupWindow is the reserved key inside Trigger.Conditions that
// configures the deduplication window. It is pipeline metadata, not a
// field-comparison condition, and the condition parser skips it.
const ConditionKeyDedupWindow = "deduplication_window_minutes"

// Trigger is a persisted rule mapping an entity status transition to a chain
// to run. A nil StatusFrom or StatusTo acts as a wildcard.
type Trigger struct {
	ID         string     `json:"id"`
	TeamID     string     `json:"team_id"     validate:"required"`
	ChainID    string     `json:"chain_id"    validate:"required"`
	Name       string     `json:"name"        validate:"required,min=3"`
	EntityType EntityType `json:"entity_type" validate:"required"`
	StatusFrom *string    `json:"status_from,omitempty"`
	StatusTo   *string    `json:"status_to,omitempty"`
	Priority   int        `json:"priority"`
	Enabled    bool       `json:"enabled"`

	// Conditions holds field-comparison conditions plus pipeline metadata
	// such as the deduplication window. See ParseConditions.
	Conditions map[string]any `json:"trigger_conditions,omitempty"`

	// LastTriggeredAt is stamped by the dispatcher on every firing attempt,
	// successful or not. Only the dispatcher mutates it.
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DedupWindow returns the configured deduplication window. A zero duration
// means no deduplication is configured.
func (t *Trigger) DedupWindow() time.Duration {
	if t.Conditions == nil {
		return 0
	}

	raw, ok := t.Conditions[ConditionKeyDedupWindow]
	if !ok {
		return 0
	}

	minutes, ok := toFloat(raw)
	if !ok || minutes <= 0 {
		return 0
	}

	return time.Duration(minutes * float64(time.Minute))
}

// MatchesTransition reports whether the trigger's status filters accept the
// given transition. From and to filters apply independently.
func (t *Trigger) MatchesTransition(fromStatus, toStatus string) bool {
	if t.StatusFrom != nil && *t.StatusFrom != fromStatus {
		return false
	}

	if t.StatusTo != nil && *t.StatusTo != toStatus {
		return false
	}

	return true
}

// ChainKind identifies which workflow definition a chain refers to.
type ChainKind string

const (
	// ChainKindPMCopilot is the deliverable/task suggestion workflow.
	ChainKindPMCopilot ChainKind = "pm_copilot"
)

// Chain references a workflow definition that triggers dispatch into.
// A disabled chain makes every trigger pointing at it unmatchable.
type Chain struct {
	ID        string         `json:"id"`
	TeamID    string         `json:"team_id" validate:"required"`
	Name      string         `json:"name"    validate:"required,min=3"`
	Kind      ChainKind      `json:"kind"    validate:"required"`
	AgentID   string         `json:"agent_id"`
	Enabled   bool           `json:"enabled"`
	Config    map[string]any `json:"config,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
