package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
)

// DenyReason is a machine-readable explanation for a denied tool call.
type DenyReason string

const (
	DenyAgentDisabled     DenyReason = "agent_disabled"
	DenyUnknownTool       DenyReason = "unknown_tool"
	DenyMissingPermission DenyReason = "missing_permission"
	DenyDailyCapExceeded  DenyReason = "daily_cap_exceeded"
	DenyMonthlyCapReached DenyReason = "monthly_cap_exceeded"
)

// Decision is the gateway's answer for one prospective tool call.
type Decision struct {
	Allowed            bool
	Reason             DenyReason
	Detail             string
	EstimatedCostCents int64
}

func allow(costCents int64) Decision {
	return Decision{Allowed: true, EstimatedCostCents: costCents}
}

func deny(reason DenyReason, detail string) Decision {
	return Decision{Allowed: false, Reason: reason, Detail: detail}
}

// Gateway authorizes tool calls against a team's agent configuration:
// capability flags first, then the daily and monthly spend caps. It never
// reserves budget; RecordSpend debits after the call completes.
type Gateway struct {
	configs persistence.AgentConfigRepository
	spend   SpendStore
	catalog map[string]ToolSpec
	logger  *slog.Logger
	now     func() time.Time
}

func NewGateway(configs persistence.AgentConfigRepository, spend SpendStore, logger *slog.Logger) *Gateway {
	return &Gateway{
		configs: configs,
		spend:   spend,
		catalog: DefaultCatalog(),
		logger:  logger.With("module", "agent_gateway"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Authorize decides whether the team's agent may call the named tool right
// now. The error return is for infrastructure failures only; a policy "no"
// is a Decision with Allowed false.
func (g *Gateway) Authorize(ctx context.Context, teamID, toolName string) (Decision, *models.AgentConfig, error) {
	config, err := g.configs.GetByTeam(ctx, teamID)
	if err != nil {
		if persistence.IsAgentConfigNotFound(err) {
			return deny(DenyAgentDisabled, "no agent configured for team"), nil, nil
		}

		return Decision{}, nil, fmt.Errorf("failed to load agent config: %w", err)
	}

	if !config.Enabled {
		return deny(DenyAgentDisabled, "agent is disabled"), config, nil
	}

	tool, ok := g.catalog[toolName]
	if !ok {
		return deny(DenyUnknownTool, fmt.Sprintf("unknown tool %q", toolName)), config, nil
	}

	if !config.HasPermission(tool.RequiredPermission) {
		return deny(DenyMissingPermission, fmt.Sprintf("missing %s", tool.RequiredPermission)), config, nil
	}

	decision, err := g.checkCaps(ctx, config, tool)
	if err != nil {
		return Decision{}, config, err
	}

	return decision, config, nil
}

func (g *Gateway) checkCaps(ctx context.Context, config *models.AgentConfig, tool ToolSpec) (Decision, error) {
	now := g.now()

	if config.DailyCapCents > 0 {
		spent, err := g.spend.DailySpent(ctx, config.ID, now)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to read daily spend: %w", err)
		}

		if spent+tool.EstimatedCostCents > config.DailyCapCents {
			return deny(DenyDailyCapExceeded,
				fmt.Sprintf("daily spend %d + cost %d exceeds cap %d", spent, tool.EstimatedCostCents, config.DailyCapCents)), nil
		}
	}

	if config.MonthlyCapCents > 0 {
		spent, err := g.spend.MonthlySpent(ctx, config.ID, now)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to read monthly spend: %w", err)
		}

		if spent+tool.EstimatedCostCents > config.MonthlyCapCents {
			return deny(DenyMonthlyCapReached,
				fmt.Sprintf("monthly spend %d + cost %d exceeds cap %d", spent, tool.EstimatedCostCents, config.MonthlyCapCents)), nil
		}
	}

	return allow(tool.EstimatedCostCents), nil
}

// RecordSpend debits the counters after a tool call completed.
func (g *Gateway) RecordSpend(ctx context.Context, agentID, toolName string, costCents int64) error {
	err := g.spend.AddSpend(ctx, agentID, g.now(), costCents)
	if err != nil {
		return err
	}

	g.logger.Debug("Recorded agent spend",
		"agent_id", agentID,
		"tool", toolName,
		"cost_cents", costCents)

	return nil
}

// ResetDailySpend zeroes today's counter for the team's agent. Exposed for
// the scheduled midnight reset and the admin endpoint.
func (g *Gateway) ResetDailySpend(ctx context.Context, teamID string) error {
	config, err := g.configs.GetByTeam(ctx, teamID)
	if err != nil {
		return fmt.Errorf("failed to load agent config: %w", err)
	}

	return g.spend.ResetDay(ctx, config.ID, g.now())
}
