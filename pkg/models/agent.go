package models

import (
	"slices"
	"time"
)

// CopilotMode selects how the PM Copilot workflow progresses past the
// deliverable checkpoint. It is read once at workflow start.
type CopilotMode string

const (
	// CopilotModeStaged pauses after deliverable generation for human
	// approval before task generation runs.
	CopilotModeStaged CopilotMode = "staged"

	// CopilotModeFull runs deliverable and task generation back-to-back
	// without pausing.
	CopilotModeFull CopilotMode = "full"
)

// ValidCopilotMode reports whether s names a known copilot mode.
func ValidCopilotMode(s string) bool {
	return CopilotMode(s) == CopilotModeStaged || CopilotMode(s) == CopilotModeFull
}

// Agent capability permission flags. Tools declare which of these they
// require; the budget/permission gateway enforces them.
const (
	PermissionGenerateDeliverables = "can_generate_deliverables"
	PermissionGenerateTasks        = "can_generate_tasks"
	PermissionSendEmails           = "can_send_emails"
)

// AgentConfig holds a team's agent settings: capability permissions and
// spend caps. Caps are in cents; a zero cap means the corresponding budget
// gate is not enforced.
type AgentConfig struct {
	ID              string      `json:"id"`
	TeamID          string      `json:"team_id" validate:"required"`
	Name            string      `json:"name"    validate:"required,min=3"`
	Enabled         bool        `json:"enabled"`
	Mode            CopilotMode `json:"mode"`
	DailyCapCents   int64       `json:"daily_cap_cents"   validate:"min=0"`
	MonthlyCapCents int64       `json:"monthly_cap_cents" validate:"min=0"`
	Permissions     []string    `json:"permissions"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// HasPermission reports whether the agent configuration carries the flag.
func (a *AgentConfig) HasPermission(flag string) bool {
	return slices.Contains(a.Permissions, flag)
}
