package agents

import "github.com/foreman-hq/foreman/pkg/models"

// ToolSpec declares what a tool needs from the gateway before it may run:
// the capability flag the team must have granted and the cost the call is
// estimated to debit.
type ToolSpec struct {
	Name               string
	RequiredPermission string
	EstimatedCostCents int64
}

// Tool names the gateway knows about.
const (
	ToolGenerateDeliverables = "generate_deliverables"
	ToolGenerateTasks        = "generate_tasks"
	ToolSendEmail            = "send_email"
)

// DefaultCatalog returns the built-in tool catalog.
func DefaultCatalog() map[string]ToolSpec {
	return map[string]ToolSpec{
		ToolGenerateDeliverables: {
			Name:               ToolGenerateDeliverables,
			RequiredPermission: models.PermissionGenerateDeliverables,
			EstimatedCostCents: 25,
		},
		ToolGenerateTasks: {
			Name:               ToolGenerateTasks,
			RequiredPermission: models.PermissionGenerateTasks,
			EstimatedCostCents: 40,
		},
		ToolSendEmail: {
			Name:               ToolSendEmail,
			RequiredPermission: models.PermissionSendEmails,
			EstimatedCostCents: 5,
		},
	}
}
