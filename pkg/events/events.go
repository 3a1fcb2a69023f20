// Package events defines the event types flowing between the activator, the
// workers, and the API: domain status changes in, trigger firings and
// workflow lifecycle notifications out.
package events

import (
	"time"

	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topics.
const (
	// StatusTopic carries StatusChanged events published by the CRUD layer.
	StatusTopic = "foreman.status.changes"

	// Topic carries trigger firings and workflow lifecycle events.
	Topic = "foreman.events"
)

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	TriggerFiredEvent EventType = "trigger.fired"

	WorkflowStartedEvent   EventType = "workflow.started"
	WorkflowPausedEvent    EventType = "workflow.paused"
	WorkflowResumedEvent   EventType = "workflow.resumed"
	WorkflowCompletedEvent EventType = "workflow.completed"
	WorkflowFailedEvent    EventType = "workflow.failed"
	WorkflowRejectedEvent  EventType = "workflow.rejected"

	SpendRecordedEvent EventType = "agent.spend.recorded"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TeamID    string         `json:"team_id"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, teamID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		TeamID:    teamID,
		Metadata:  make(map[string]any),
	}
}

// TriggerFired is the asynchronous unit of work enqueued by the dispatcher
// for one matched trigger. It deliberately carries entity identifiers rather
// than the entity body: the worker re-fetches at execution time so a job
// that sat in the queue never runs against stale data.
type TriggerFired struct {
	BaseEvent

	TriggerID    string            `json:"trigger_id"`
	ChainID      string            `json:"chain_id"`
	EntityType   models.EntityType `json:"entity_type"`
	EntityID     string            `json:"entity_id"`
	FromStatus   string            `json:"from_status"`
	ToStatus     string            `json:"to_status"`
	ActingUserID string            `json:"acting_user_id"`
}

func (e TriggerFired) GetType() EventType {
	return TriggerFiredEvent
}

// Workflow lifecycle events.

type WorkflowStarted struct {
	BaseEvent

	WorkflowStateID string             `json:"workflow_state_id"`
	WorkflowKind    models.ChainKind   `json:"workflow_kind"`
	Mode            models.CopilotMode `json:"mode"`
	EntityType      models.EntityType  `json:"entity_type"`
	EntityID        string             `json:"entity_id"`
	Initiator       string             `json:"initiator"`
}

func (e WorkflowStarted) GetType() EventType {
	return WorkflowStartedEvent
}

type WorkflowPaused struct {
	BaseEvent

	WorkflowStateID string         `json:"workflow_state_id"`
	PausedAtNode    string         `json:"paused_at_node"`
	InboxItemID     string         `json:"inbox_item_id,omitempty"`
	ApprovalData    map[string]any `json:"approval_data,omitempty"`
}

func (e WorkflowPaused) GetType() EventType {
	return WorkflowPausedEvent
}

type WorkflowResumed struct {
	BaseEvent

	WorkflowStateID string `json:"workflow_state_id"`
	ResumedBy       string `json:"resumed_by"`
	ResumedFromNode string `json:"resumed_from_node"`
	PauseDurationMs int64  `json:"pause_duration_ms"`
}

func (e WorkflowResumed) GetType() EventType {
	return WorkflowResumedEvent
}

type WorkflowCompleted struct {
	BaseEvent

	WorkflowStateID string        `json:"workflow_state_id"`
	NodesExecuted   int           `json:"nodes_executed"`
	Duration        time.Duration `json:"duration"`
}

func (e WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

type WorkflowFailed struct {
	BaseEvent

	WorkflowStateID string `json:"workflow_state_id"`
	FailedNode      string `json:"failed_node"`
	Error           string `json:"error"`
}

func (e WorkflowFailed) GetType() EventType {
	return WorkflowFailedEvent
}

type WorkflowRejected struct {
	BaseEvent

	WorkflowStateID string `json:"workflow_state_id"`
	RejectedBy      string `json:"rejected_by"`
	Reason          string `json:"reason,omitempty"`
}

func (e WorkflowRejected) GetType() EventType {
	return WorkflowRejectedEvent
}

// SpendRecorded is emitted after a tool call debits an agent budget, for
// audit trails and spend dashboards.
type SpendRecorded struct {
	BaseEvent

	AgentID   string `json:"agent_id"`
	ToolName  string `json:"tool_name"`
	CostCents int64  `json:"cost_cents"`
}

func (e SpendRecorded) GetType() EventType {
	return SpendRecordedEvent
}
