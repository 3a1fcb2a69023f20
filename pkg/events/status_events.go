package events

import (
	"errors"

	"github.com/foreman-hq/foreman/pkg/models"
)

// StatusChanged is the event the CRUD layer fires on every tracked status
// transition of a work order, task, or deliverable. It is the activator's
// sole input: the payload carries an entity snapshot sufficient for
// condition evaluation so matching never calls back into the domain layer.
type StatusChanged struct {
	EntityType   models.EntityType `json:"entity_type"    validate:"required"`
	EntityID     string            `json:"entity_id"      validate:"required"`
	TeamID       string            `json:"team_id"        validate:"required"`
	FromStatus   string            `json:"from_status"`
	ToStatus     string            `json:"to_status"      validate:"required"`
	ActingUserID string            `json:"acting_user_id"`
	Fields       map[string]any    `json:"fields,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
}

// NewStatusChanged creates a StatusChanged event with an initialized fields
// map.
func NewStatusChanged(entityType models.EntityType, entityID, teamID, fromStatus, toStatus, actingUserID string) *StatusChanged {
	return &StatusChanged{
		EntityType:   entityType,
		EntityID:     entityID,
		TeamID:       teamID,
		FromStatus:   fromStatus,
		ToStatus:     toStatus,
		ActingUserID: actingUserID,
		Fields:       make(map[string]any),
	}
}

// Snapshot converts the event payload into the immutable entity snapshot the
// matcher evaluates conditions against.
func (e *StatusChanged) Snapshot() *models.EntitySnapshot {
	return &models.EntitySnapshot{
		EntityID:   e.EntityID,
		TeamID:     e.TeamID,
		EntityType: e.EntityType,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		Fields:     e.Fields,
		Tags:       e.Tags,
	}
}

// Validate performs basic structural validation before matching runs.
func (e *StatusChanged) Validate() error {
	if e.EntityID == "" {
		return errors.New("entity_id is required")
	}

	if e.TeamID == "" {
		return errors.New("team_id is required")
	}

	if e.ToStatus == "" {
		return errors.New("to_status is required")
	}

	if !models.ValidEntityType(string(e.EntityType)) {
		return errors.New("unknown entity_type")
	}

	return nil
}
