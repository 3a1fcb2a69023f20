package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestionsFromState_Absent(t *testing.T) {
	suggestions, err := SuggestionsFromState(map[string]any{}, SuggestionTypeDeliverable)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestSuggestionsRoundTrip(t *testing.T) {
	stateData := map[string]any{}

	original := []Suggestion{
		{Title: "Foundation survey", Confidence: 0.9, Status: SuggestionStatusPending},
		{Title: "Permit filing", Confidence: 0.7, Status: SuggestionStatusPending},
	}

	require.NoError(t, PutSuggestions(stateData, SuggestionTypeDeliverable, original))

	decoded, err := SuggestionsFromState(stateData, SuggestionTypeDeliverable)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestSuggestionsFromState_AfterJSONPersistence(t *testing.T) {
	// State data persisted as JSON comes back as []any of maps.
	stateData := map[string]any{}
	require.NoError(t, PutSuggestions(stateData, SuggestionTypeTask, []Suggestion{
		{Title: "Order materials", Status: SuggestionStatusPending, DueInDays: 3},
	}))

	encoded, err := json.Marshal(stateData)
	require.NoError(t, err)

	var rehydrated map[string]any
	require.NoError(t, json.Unmarshal(encoded, &rehydrated))

	decoded, err := SuggestionsFromState(rehydrated, SuggestionTypeTask)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, "Order materials", decoded[0].Title)
	assert.Equal(t, 3, decoded[0].DueInDays)
	assert.Equal(t, SuggestionStatusPending, decoded[0].Status)
}

func TestSuggestionType_StateKey(t *testing.T) {
	key, err := SuggestionTypeDeliverable.StateKey()
	require.NoError(t, err)
	assert.Equal(t, StateKeyDeliverableSuggestions, key)

	_, err = SuggestionType("milestone").StateKey()
	require.Error(t, err)
}
