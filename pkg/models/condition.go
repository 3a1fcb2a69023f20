package models

import (
	"fmt"
	"strconv"
)

// ConditionKind tags the variant of a parsed condition.
type ConditionKind string

const (
	ConditionKindEquals ConditionKind = "equals"
	ConditionKindGTE    ConditionKind = "gte"
	ConditionKindLTE    ConditionKind = "lte"
	ConditionKindHasTag ConditionKind = "has_tag"
	ConditionKindAllOf  ConditionKind = "all_of"
)

// Condition is one parsed trigger condition. The stored configuration is a
// free-form map; parsing it once up front avoids stringly-typed
// interpretation at evaluation time.
type Condition struct {
	Kind  ConditionKind
	Field string
	Value any
	All   []Condition
}

// ConditionSet is the parsed form of a trigger's condition map. An empty set
// evaluates to true.
type ConditionSet struct {
	conditions []Condition
}

// ParseConditions builds a ConditionSet from a stored condition map.
//
// Recognized shapes, keyed by entity field name unless noted:
//
//	"status":        "active"                  — equality
//	"budget_cents":  {"gte": 100000}           — numeric threshold
//	"budget_cents":  {"lte": 500000}           — numeric threshold
//	"has_tag":       "urgent"                  — tag membership
//	"all_of":        [ {...}, {...} ]          — nested condition maps
//
// Reserved pipeline keys (deduplication_window_minutes) are skipped here and
// handled by the dedup gate. Unrecognized nested operator maps are a
// configuration error.
func ParseConditions(raw map[string]any) (ConditionSet, error) {
	set := ConditionSet{}

	for key, value := range raw {
		switch key {
		case ConditionKeyDedupWindow:
			continue
		case "has_tag":
			tag, ok := value.(string)
			if !ok {
				return ConditionSet{}, fmt.Errorf("has_tag condition must be a string, got %T", value)
			}

			set.conditions = append(set.conditions, Condition{Kind: ConditionKindHasTag, Value: tag})
		case "all_of":
			nested, ok := value.([]any)
			if !ok {
				return ConditionSet{}, fmt.Errorf("all_of condition must be a list, got %T", value)
			}

			group := Condition{Kind: ConditionKindAllOf}

			for _, item := range nested {
				itemMap, ok := item.(map[string]any)
				if !ok {
					return ConditionSet{}, fmt.Errorf("all_of entries must be condition maps, got %T", item)
				}

				inner, err := ParseConditions(itemMap)
				if err != nil {
					return ConditionSet{}, err
				}

				group.All = append(group.All, inner.conditions...)
			}

			set.conditions = append(set.conditions, group)
		default:
			condition, err := parseFieldCondition(key, value)
			if err != nil {
				return ConditionSet{}, err
			}

			set.conditions = append(set.conditions, condition)
		}
	}

	return set, nil
}

func parseFieldCondition(field string, value any) (Condition, error) {
	operators, ok := value.(map[string]any)
	if !ok {
		// Bare value means equality.
		return Condition{Kind: ConditionKindEquals, Field: field, Value: value}, nil
	}

	if len(operators) != 1 {
		return Condition{}, fmt.Errorf("condition on %q must have exactly one operator", field)
	}

	for op, operand := range operators {
		switch op {
		case "eq":
			return Condition{Kind: ConditionKindEquals, Field: field, Value: operand}, nil
		case "gte":
			return Condition{Kind: ConditionKindGTE, Field: field, Value: operand}, nil
		case "lte":
			return Condition{Kind: ConditionKindLTE, Field: field, Value: operand}, nil
		default:
			return Condition{}, fmt.Errorf("unsupported operator %q on field %q", op, field)
		}
	}

	return Condition{}, fmt.Errorf("empty condition on field %q", field)
}

// Empty reports whether the set has no conditions.
func (s ConditionSet) Empty() bool {
	return len(s.conditions) == 0
}

// Evaluate checks every condition against the snapshot. Evaluation is pure
// and fail-closed: a condition referencing a missing or non-comparable field
// is false, never an error.
func (s ConditionSet) Evaluate(snapshot *EntitySnapshot) bool {
	for _, condition := range s.conditions {
		if !evaluateCondition(condition, snapshot) {
			return false
		}
	}

	return true
}

func evaluateCondition(c Condition, snapshot *EntitySnapshot) bool {
	switch c.Kind {
	case ConditionKindHasTag:
		tag, ok := c.Value.(string)

		return ok && snapshot.HasTag(tag)
	case ConditionKindAllOf:
		for _, inner := range c.All {
			if !evaluateCondition(inner, snapshot) {
				return false
			}
		}

		return true
	case ConditionKindEquals:
		actual, ok := snapshot.Field(c.Field)
		if !ok {
			return false
		}

		return looseEquals(actual, c.Value)
	case ConditionKindGTE:
		actual, expected, ok := numericOperands(c, snapshot)

		return ok && actual >= expected
	case ConditionKindLTE:
		actual, expected, ok := numericOperands(c, snapshot)

		return ok && actual <= expected
	default:
		return false
	}
}

func numericOperands(c Condition, snapshot *EntitySnapshot) (float64, float64, bool) {
	raw, ok := snapshot.Field(c.Field)
	if !ok {
		return 0, 0, false
	}

	actual, ok := toFloat(raw)
	if !ok {
		return 0, 0, false
	}

	expected, ok := toFloat(c.Value)
	if !ok {
		return 0, 0, false
	}

	return actual, expected, true
}

// looseEquals compares values the way JSON round-tripping leaves them:
// numbers compare numerically regardless of concrete type, everything else
// by string form when types differ.
func looseEquals(a, b any) bool {
	if a == b {
		return true
	}

	fa, aok := toFloat(a)
	fb, bok := toFloat(b)

	if aok && bok {
		return fa == fb
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)

		return f, err == nil
	default:
		return 0, false
	}
}
