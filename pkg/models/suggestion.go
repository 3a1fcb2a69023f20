package models

import (
	"encoding/json"
	"fmt"
)

// SuggestionType distinguishes the two suggestion lists a paused PM Copilot
// run can hold.
type SuggestionType string

const (
	SuggestionTypeDeliverable SuggestionType = "deliverable"
	SuggestionTypeTask        SuggestionType = "task"
)

// StateKey returns the state-data key holding suggestions of this type.
func (t SuggestionType) StateKey() (string, error) {
	switch t {
	case SuggestionTypeDeliverable:
		return StateKeyDeliverableSuggestions, nil
	case SuggestionTypeTask:
		return StateKeyTaskSuggestions, nil
	default:
		return "", fmt.Errorf("unknown suggestion type %q", t)
	}
}

// SuggestionStatus tracks per-suggestion human resolution. Suggestions are
// approved or rejected individually; resolving one never touches its
// siblings and never resumes the paused run by itself.
type SuggestionStatus string

const (
	SuggestionStatusPending  SuggestionStatus = "pending"
	SuggestionStatusApproved SuggestionStatus = "approved"
	SuggestionStatusRejected SuggestionStatus = "rejected"
)

// Suggestion is a generated-but-unconfirmed candidate deliverable or task
// stored inside WorkflowState.StateData while awaiting approval.
type Suggestion struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Confidence  float64          `json:"confidence,omitempty"`
	DueInDays   int              `json:"due_in_days,omitempty"`
	Status      SuggestionStatus `json:"status"`

	// RejectedReason is set only on rejected suggestions.
	RejectedReason string `json:"rejected_reason,omitempty"`

	// CreatedRecordID links an approved suggestion to the domain record it
	// was materialized into.
	CreatedRecordID string `json:"created_record_id,omitempty"`
}

// SuggestionsFromState decodes the suggestion list of the given type out of
// a state-data map. State data goes through JSON persistence, so entries may
// be []Suggestion, []any of maps, or absent.
func SuggestionsFromState(stateData map[string]any, typ SuggestionType) ([]Suggestion, error) {
	key, err := typ.StateKey()
	if err != nil {
		return nil, err
	}

	raw, ok := stateData[key]
	if !ok || raw == nil {
		return []Suggestion{}, nil
	}

	if suggestions, ok := raw.([]Suggestion); ok {
		return suggestions, nil
	}

	// Round-trip through JSON to handle map-decoded state.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s state: %w", key, err)
	}

	var suggestions []Suggestion
	if err := json.Unmarshal(encoded, &suggestions); err != nil {
		return nil, fmt.Errorf("failed to decode %s state: %w", key, err)
	}

	return suggestions, nil
}

// PutSuggestions stores the suggestion list of the given type into a
// state-data map.
func PutSuggestions(stateData map[string]any, typ SuggestionType, suggestions []Suggestion) error {
	key, err := typ.StateKey()
	if err != nil {
		return err
	}

	stateData[key] = suggestions

	return nil
}
