// Package triggers implements the status-change trigger pipeline: condition
// evaluation, deduplication, matching, and dispatch.
package triggers

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// conditionsSchema constrains the stored trigger condition map at write time.
// Evaluation stays fail-closed regardless; the schema exists so the API can
// reject malformed condition maps before they reach the pipeline.
var conditionsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"deduplication_window_minutes": map[string]any{
			"type":    "number",
			"minimum": 0,
		},
		"has_tag": map[string]any{
			"type": "string",
		},
		"all_of": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "object"},
		},
	},
	"additionalProperties": map[string]any{
		"anyOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "number"},
			map[string]any{"type": "boolean"},
			map[string]any{
				"type":          "object",
				"minProperties": 1,
				"maxProperties": 1,
				"properties": map[string]any{
					"eq":  map[string]any{},
					"gte": map[string]any{"type": "number"},
					"lte": map[string]any{"type": "number"},
				},
				"additionalProperties": false,
			},
		},
	},
}

// ValidateConditions checks a condition map against the conditions schema.
func ValidateConditions(conditions map[string]any) error {
	if conditions == nil {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(conditionsSchema)
	dataLoader := gojsonschema.NewGoLoader(conditions)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate trigger conditions: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			messages = append(messages, resultError.String())
		}

		return fmt.Errorf("invalid trigger conditions: %s", strings.Join(messages, "; "))
	}

	return nil
}
