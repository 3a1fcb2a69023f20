package models

import "time"

// InboxRefType names the kind of record an inbox item points at.
type InboxRefType string

const (
	InboxRefWorkflowState InboxRefType = "workflow_state"
	InboxRefMessageDraft  InboxRefType = "message_draft"
)

// InboxUrgency is coarse triage metadata for the human-facing inbox.
type InboxUrgency string

const (
	InboxUrgencyLow    InboxUrgency = "low"
	InboxUrgencyNormal InboxUrgency = "normal"
	InboxUrgencyHigh   InboxUrgency = "high"
)

// InboxItem is a generic "requires human action" record. It references its
// subject polymorphically (RefType + RefID) and is resolved by the approval
// endpoints, which in turn resume or finalize the referenced workflow state.
type InboxItem struct {
	ID         string       `json:"id"`
	TeamID     string       `json:"team_id"  validate:"required"`
	RefType    InboxRefType `json:"ref_type" validate:"required"`
	RefID      string       `json:"ref_id"   validate:"required"`
	Title      string       `json:"title"`
	Urgency    InboxUrgency `json:"urgency"`
	Confidence float64      `json:"confidence,omitempty"`
	ApprovedAt *time.Time   `json:"approved_at,omitempty"`
	RejectedAt *time.Time   `json:"rejected_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Resolved reports whether a human already acted on the item.
func (i *InboxItem) Resolved() bool {
	return i.ApprovedAt != nil || i.RejectedAt != nil
}
