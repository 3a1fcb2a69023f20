package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/foreman-hq/foreman/pkg/agents"
	"github.com/foreman-hq/foreman/pkg/copilot"
	"github.com/foreman-hq/foreman/pkg/mocks"
	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/foreman-hq/foreman/pkg/persistence/file"
	"github.com/foreman-hq/foreman/pkg/services"
	"github.com/foreman-hq/foreman/pkg/web"
)

type webFixture struct {
	app         *fiber.App
	persistence persistence.Persistence
	workOrder   *models.WorkOrder
	chain       *models.Chain
}

func setupTestApp(t *testing.T) *webFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	p := file.NewPersistence(t.TempDir())
	ctx := t.Context()

	config := &models.AgentConfig{
		TeamID:  "team-1",
		Name:    "pm copilot",
		Enabled: true,
		Mode:    models.CopilotModeStaged,
		Permissions: []string{
			models.PermissionGenerateDeliverables,
			models.PermissionGenerateTasks,
		},
	}
	require.NoError(t, p.AgentConfigRepository().Save(ctx, config))

	workOrder := &models.WorkOrder{
		TeamID:      "team-1",
		Title:       "Depot refurbishment",
		Description: "Refurbish the depot and produce a closing report.",
		Status:      "active",
		BudgetCents: 500_00,
	}
	require.NoError(t, p.WorkOrderRepository().Save(ctx, workOrder))

	chain := &models.Chain{
		TeamID:  "team-1",
		Name:    "pm copilot chain",
		Kind:    models.ChainKindPMCopilot,
		Enabled: true,
	}
	require.NoError(t, p.ChainRepository().Save(ctx, chain))

	eventBus := &mocks.MockEventBus{}
	eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	gateway := agents.NewGateway(p.AgentConfigRepository(), agents.NewMemorySpendStore(), logger)
	engine := copilot.NewEngine(p, gateway, copilot.NewHeuristicGenerator(), eventBus, logger)

	copilotService := services.NewCopilot(p, engine, eventBus, logger)
	triggerService := services.NewTrigger(p, logger)

	handlers := web.NewAPIHandlers(copilotService, triggerService, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	workOrders := app.Group("/work-orders")
	workOrders.Post("/:id/pm-copilot/trigger", handlers.TriggerCopilot)
	workOrders.Get("/:id/pm-copilot/suggestions", handlers.GetSuggestions)
	workOrders.Patch("/:id/agent-settings", handlers.UpdateAgentSettings)

	pmCopilot := app.Group("/pm-copilot")
	pmCopilot.Post("/suggestions/:inboxItemId/approve", handlers.ApproveSuggestion)
	pmCopilot.Post("/suggestions/:inboxItemId/reject", handlers.RejectSuggestion)
	pmCopilot.Post("/workflow-states/:id/resume", handlers.ResumeWorkflow)
	pmCopilot.Post("/workflow-states/:id/reject", handlers.RejectWorkflow)

	triggers := app.Group("/triggers")
	triggers.Get("/", handlers.GetTriggers)
	triggers.Post("/", handlers.CreateTrigger)
	triggers.Get("/:id", handlers.GetTrigger)

	app.Get("/health", handlers.HealthCheck)

	return &webFixture{
		app:         app,
		persistence: p,
		workOrder:   workOrder,
		chain:       chain,
	}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(web.TeamHeader, "team-1")

	resp, err := app.Test(req)
	require.NoError(t, err)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, payload
}

// triggerCopilot starts a staged run over HTTP and returns the pending inbox
// item ID plus the workflow state ID.
func triggerCopilot(t *testing.T, f *webFixture) (inboxItemID, stateID string) {
	t.Helper()

	resp, body := doJSON(t, f.app, http.MethodPost, "/work-orders/"+f.workOrder.ID+"/pm-copilot/trigger",
		web.TriggerCopilotRequest{Initiator: "user-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created web.TriggerCopilotResponse
	require.NoError(t, json.Unmarshal(body, &created))
	require.True(t, created.Success)
	require.NotEmpty(t, created.WorkflowStateID)

	items, err := f.persistence.InboxRepository().ListPendingByTeam(t.Context(), "team-1")
	require.NoError(t, err)
	require.Len(t, items, 1)

	return items[0].ID, created.WorkflowStateID
}

func TestAPIHandlers_TriggerCopilot(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)

	resp, body := doJSON(t, f.app, http.MethodPost, "/work-orders/"+f.workOrder.ID+"/pm-copilot/trigger",
		web.TriggerCopilotRequest{Initiator: "user-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created web.TriggerCopilotResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.True(t, created.Success)
	assert.NotEmpty(t, created.WorkflowStateID)
	assert.Equal(t, models.WorkflowStatusPaused, created.Status)

	// The run ID rides at the top level, not inside a data envelope.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Contains(t, raw, "workflow_state_id")
	assert.NotContains(t, raw, "data")

	// A second trigger while the run is paused conflicts.
	resp, body = doJSON(t, f.app, http.MethodPost, "/work-orders/"+f.workOrder.ID+"/pm-copilot/trigger",
		web.TriggerCopilotRequest{Initiator: "user-1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var failure web.CopilotResponse
	require.NoError(t, json.Unmarshal(body, &failure))
	assert.False(t, failure.Success)
	assert.NotEmpty(t, failure.Message)
}

func TestAPIHandlers_TriggerCopilotRequiresTeamHeader(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)

	encoded, err := json.Marshal(web.TriggerCopilotRequest{Initiator: "user-1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/work-orders/"+f.workOrder.ID+"/pm-copilot/trigger", bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_GetSuggestions(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	_, _ = triggerCopilot(t, f)

	resp, body := doJSON(t, f.app, http.MethodGet, "/work-orders/"+f.workOrder.ID+"/pm-copilot/suggestions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var response web.SuggestionsResponse
	require.NoError(t, json.Unmarshal(body, &response))
	assert.True(t, response.Success)
	assert.Equal(t, models.WorkflowStatusPaused, response.Status)
	assert.NotEmpty(t, response.Deliverables)
	assert.Empty(t, response.Tasks)

	// Suggestion arrays ride at the top level under their contract names.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Contains(t, raw, "workflow_state_id")
	assert.Contains(t, raw, "deliverable_suggestions")
	assert.Contains(t, raw, "task_suggestions")
}

func TestAPIHandlers_ApproveSuggestion(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	inboxItemID, _ := triggerCopilot(t, f)

	request := web.ResolveSuggestionRequest{
		SuggestionType:  "deliverable",
		SuggestionIndex: 0,
		ActorID:         "user-1",
	}

	resp, body := doJSON(t, f.app, http.MethodPost, "/pm-copilot/suggestions/"+inboxItemID+"/approve", request)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var envelope struct {
		Success bool              `json:"success"`
		Data    models.Suggestion `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, models.SuggestionStatusApproved, envelope.Data.Status)
	assert.NotEmpty(t, envelope.Data.CreatedRecordID)

	// Approving the same suggestion again conflicts.
	resp, body = doJSON(t, f.app, http.MethodPost, "/pm-copilot/suggestions/"+inboxItemID+"/approve", request)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var failure web.CopilotResponse
	require.NoError(t, json.Unmarshal(body, &failure))
	assert.False(t, failure.Success)
}

func TestAPIHandlers_RejectSuggestionValidation(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	inboxItemID, _ := triggerCopilot(t, f)

	resp, body := doJSON(t, f.app, http.MethodPost, "/pm-copilot/suggestions/"+inboxItemID+"/reject",
		web.ResolveSuggestionRequest{SuggestionType: "milestone", SuggestionIndex: 0, ActorID: "user-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var failure web.CopilotResponse
	require.NoError(t, json.Unmarshal(body, &failure))
	assert.False(t, failure.Success)
}

func TestAPIHandlers_ResumeWorkflow(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	_, stateID := triggerCopilot(t, f)

	resp, body := doJSON(t, f.app, http.MethodPost, "/pm-copilot/workflow-states/"+stateID+"/resume",
		web.ResumeWorkflowRequest{ResumedBy: "user-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var envelope struct {
		Success bool                      `json:"success"`
		Data    web.WorkflowStateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.True(t, envelope.Success)

	state, err := f.persistence.WorkflowStateRepository().GetByID(t.Context(), stateID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, state.Status)
}

func TestAPIHandlers_RejectWorkflow(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	_, stateID := triggerCopilot(t, f)

	resp, body := doJSON(t, f.app, http.MethodPost, "/pm-copilot/workflow-states/"+stateID+"/reject",
		web.RejectWorkflowRequest{RejectedBy: "user-1", Reason: "not needed"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	state, err := f.persistence.WorkflowStateRepository().GetByID(t.Context(), stateID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusRejected, state.Status)
}

func TestAPIHandlers_UpdateAgentSettings(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)

	resp, body := doJSON(t, f.app, http.MethodPatch, "/work-orders/"+f.workOrder.ID+"/agent-settings",
		web.UpdateAgentSettingsRequest{PMCopilotMode: "full"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var workOrder models.WorkOrder
	require.NoError(t, json.Unmarshal(body, &workOrder))
	assert.Equal(t, models.CopilotModeFull, workOrder.PMCopilotMode)

	resp, _ = doJSON(t, f.app, http.MethodPatch, "/work-orders/"+f.workOrder.ID+"/agent-settings",
		web.UpdateAgentSettingsRequest{PMCopilotMode: "turbo"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_CreateAndListTriggers(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)

	resp, body := doJSON(t, f.app, http.MethodPost, "/triggers/", web.CreateTriggerRequest{
		Name:       "fire on activation",
		ChainID:    f.chain.ID,
		EntityType: "work_order",
		StatusTo:   strPtr("active"),
		Priority:   10,
		Enabled:    true,
		Conditions: map[string]any{
			models.ConditionKeyDedupWindow: 60,
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created models.Trigger
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "team-1", created.TeamID)

	resp, body = doJSON(t, f.app, http.MethodGet, "/triggers/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Triggers   []models.Trigger `json:"triggers"`
		TotalCount int              `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Equal(t, 1, listing.TotalCount)

	resp, body = doJSON(t, f.app, http.MethodGet, "/triggers/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, f.app, http.MethodGet, "/triggers/missing-id", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Unknown entity types never reach the store.
	resp, _ = doJSON(t, f.app, http.MethodPost, "/triggers/", web.CreateTriggerRequest{
		Name:       "bad entity",
		ChainID:    f.chain.ID,
		EntityType: "invoice",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)

	resp, body := doJSON(t, f.app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
}

func strPtr(s string) *string {
	return &s
}
