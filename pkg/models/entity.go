// Package models defines the core domain models for trigger matching and
// agent workflow orchestration.
package models

// EntityType identifies which kind of domain object a status transition
// belongs to. Triggers are scoped to exactly one entity type.
type EntityType string

const (
	EntityTypeWorkOrder   EntityType = "work_order"
	EntityTypeTask        EntityType = "task"
	EntityTypeDeliverable EntityType = "deliverable"
)

// ValidEntityType reports whether s names a known entity type.
func ValidEntityType(s string) bool {
	switch EntityType(s) {
	case EntityTypeWorkOrder, EntityTypeTask, EntityTypeDeliverable:
		return true
	default:
		return false
	}
}

// EntitySnapshot is an immutable read of a domain object taken at the moment
// of a status transition. It carries everything condition evaluation needs so
// the matcher never reaches back into the CRUD layer.
type EntitySnapshot struct {
	EntityID   string         `json:"entity_id"   validate:"required"`
	TeamID     string         `json:"team_id"     validate:"required"`
	EntityType EntityType     `json:"entity_type" validate:"required"`
	FromStatus string         `json:"from_status"`
	ToStatus   string         `json:"to_status"   validate:"required"`
	Fields     map[string]any `json:"fields"`
	Tags       []string       `json:"tags"`
}

// Field returns the named field value. The second result is false when the
// field is absent, which condition evaluation treats as a non-match.
func (s *EntitySnapshot) Field(name string) (any, bool) {
	if s.Fields == nil {
		return nil, false
	}

	value, ok := s.Fields[name]

	return value, ok
}

// HasTag reports whether the snapshot carries the given tag.
func (s *EntitySnapshot) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}

	return false
}
