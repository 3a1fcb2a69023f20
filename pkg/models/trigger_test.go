package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

func TestTrigger_DedupWindow(t *testing.T) {
	tests := []struct {
		name       string
		conditions map[string]any
		want       time.Duration
	}{
		{"no conditions", nil, 0},
		{"no window key", map[string]any{"status": "active"}, 0},
		{"window as float", map[string]any{ConditionKeyDedupWindow: float64(60)}, 60 * time.Minute},
		{"window as int", map[string]any{ConditionKeyDedupWindow: 15}, 15 * time.Minute},
		{"fractional window", map[string]any{ConditionKeyDedupWindow: 0.5}, 30 * time.Second},
		{"zero window", map[string]any{ConditionKeyDedupWindow: float64(0)}, 0},
		{"negative window", map[string]any{ConditionKeyDedupWindow: float64(-5)}, 0},
		{"non-numeric window", map[string]any{ConditionKeyDedupWindow: "soon"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := &Trigger{Conditions: tt.conditions}
			assert.Equal(t, tt.want, trigger.DedupWindow())
		})
	}
}

func TestTrigger_MatchesTransition(t *testing.T) {
	tests := []struct {
		name string
		from *string
		to   *string
		want bool
	}{
		{"both wildcards", nil, nil, true},
		{"from wildcard, to matches", nil, strPtr("active"), true},
		{"from wildcard, to differs", nil, strPtr("closed"), false},
		{"from matches, to wildcard", strPtr("draft"), nil, true},
		{"from differs", strPtr("on_hold"), strPtr("active"), false},
		{"both match", strPtr("draft"), strPtr("active"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := &Trigger{StatusFrom: tt.from, StatusTo: tt.to}
			assert.Equal(t, tt.want, trigger.MatchesTransition("draft", "active"))
		})
	}
}

func TestEntitySnapshot_Accessors(t *testing.T) {
	snapshot := testSnapshot()

	value, ok := snapshot.Field("client")
	assert.True(t, ok)
	assert.Equal(t, "acme", value)

	_, ok = snapshot.Field("missing")
	assert.False(t, ok)

	assert.True(t, snapshot.HasTag("urgent"))
	assert.False(t, snapshot.HasTag("billing"))
}
