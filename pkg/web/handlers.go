// Package web provides the HTTP handlers for the Foreman REST API: trigger
// management and the PM Copilot endpoints.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
	"github.com/foreman-hq/foreman/pkg/services"
)

// TeamHeader carries the acting team on every scoped request.
const TeamHeader = "X-Team-ID"

type APIHandlers struct {
	copilotService *services.Copilot
	triggerService *services.Trigger
	validator      *validator.Validate
}

func NewAPIHandlers(
	copilotService *services.Copilot,
	triggerService *services.Trigger,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		copilotService: copilotService,
		triggerService: triggerService,
		validator:      validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.copilotService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Foreman API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Foreman API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// TriggerCopilot starts a PM Copilot run for a work order.
func (h *APIHandlers) TriggerCopilot(c fiber.Ctx) error {
	workOrderID := c.Params("id")
	if workOrderID == "" {
		return copilotBadRequest(c, "Work order ID is required")
	}

	teamID := c.Get(TeamHeader)
	if teamID == "" {
		return copilotBadRequest(c, "X-Team-ID header is required")
	}

	var req TriggerCopilotRequest
	if err := c.Bind().JSON(&req); err != nil {
		return copilotBadRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return copilotBadRequest(c, err.Error())
	}

	state, err := h.copilotService.StartForWorkOrder(c.Context(), teamID, workOrderID, req.Initiator)
	if err != nil {
		return copilotError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TriggerCopilotResponse{
		Success:         true,
		WorkflowStateID: state.ID,
		Status:          state.Status,
	})
}

// GetSuggestions returns the latest run's suggestion sets for a work order.
func (h *APIHandlers) GetSuggestions(c fiber.Ctx) error {
	workOrderID := c.Params("id")
	if workOrderID == "" {
		return copilotBadRequest(c, "Work order ID is required")
	}

	suggestions, err := h.copilotService.Suggestions(c.Context(), workOrderID)
	if err != nil {
		return copilotError(c, err)
	}

	return c.JSON(SuggestionsResponse{
		Success:             true,
		SuggestionsResponse: suggestions,
	})
}

// ApproveSuggestion approves one suggestion of a paused run, materializing it
// into a domain record.
func (h *APIHandlers) ApproveSuggestion(c fiber.Ctx) error {
	req, err := h.parseResolveSuggestionRequest(c)
	if err != nil {
		return copilotBadRequest(c, err.Error())
	}

	suggestion, err := h.copilotService.ApproveSuggestion(c.Context(), *req)
	if err != nil {
		return copilotError(c, err)
	}

	return c.JSON(CopilotResponse{
		Success: true,
		Data:    suggestion,
	})
}

// RejectSuggestion rejects one suggestion of a paused run.
func (h *APIHandlers) RejectSuggestion(c fiber.Ctx) error {
	req, err := h.parseResolveSuggestionRequest(c)
	if err != nil {
		return copilotBadRequest(c, err.Error())
	}

	suggestion, err := h.copilotService.RejectSuggestion(c.Context(), *req)
	if err != nil {
		return copilotError(c, err)
	}

	return c.JSON(CopilotResponse{
		Success: true,
		Data:    suggestion,
	})
}

func (h *APIHandlers) parseResolveSuggestionRequest(c fiber.Ctx) (*services.ResolveSuggestionRequest, error) {
	var req ResolveSuggestionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, err
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, err
	}

	return &services.ResolveSuggestionRequest{
		InboxItemID:     c.Params("inboxItemId"),
		SuggestionType:  req.SuggestionType,
		SuggestionIndex: req.SuggestionIndex,
		ActorID:         req.ActorID,
		Reason:          req.Reason,
	}, nil
}

// ResumeWorkflow resumes a paused run past its checkpoint.
func (h *APIHandlers) ResumeWorkflow(c fiber.Ctx) error {
	var req ResumeWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return copilotBadRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return copilotBadRequest(c, err.Error())
	}

	state, err := h.copilotService.ResumeWorkflow(c.Context(), c.Params("id"), req.ResumedBy)
	if err != nil {
		return copilotError(c, err)
	}

	return c.JSON(CopilotResponse{
		Success: true,
		Data:    TransformWorkflowStateResponse(state),
	})
}

// RejectWorkflow abandons a paused run.
func (h *APIHandlers) RejectWorkflow(c fiber.Ctx) error {
	var req RejectWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return copilotBadRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return copilotBadRequest(c, err.Error())
	}

	state, err := h.copilotService.RejectWorkflow(c.Context(), c.Params("id"), req.RejectedBy, req.Reason)
	if err != nil {
		return copilotError(c, err)
	}

	return c.JSON(CopilotResponse{
		Success: true,
		Data:    TransformWorkflowStateResponse(state),
	})
}

// UpdateAgentSettings sets the per-work-order copilot mode override.
func (h *APIHandlers) UpdateAgentSettings(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Work order ID is required")
	}

	var req UpdateAgentSettingsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workOrder, err := h.copilotService.UpdateAgentSettings(c.Context(), id, req.PMCopilotMode)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workOrder)
}

// GetTriggers lists the acting team's triggers.
func (h *APIHandlers) GetTriggers(c fiber.Ctx) error {
	teamID := c.Get(TeamHeader)
	if teamID == "" {
		return badRequest(c, "X-Team-ID header is required")
	}

	triggers, err := h.triggerService.List(c.Context(), teamID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"triggers":    triggers,
		"total_count": len(triggers),
	})
}

// GetTrigger returns one trigger by ID.
func (h *APIHandlers) GetTrigger(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Trigger ID is required")
	}

	trigger, err := h.triggerService.Get(c.Context(), id)
	if err != nil {
		if persistence.IsTriggerNotFound(err) {
			return notFound(c, "Trigger not found")
		}

		return internalError(c, err)
	}

	return c.JSON(trigger)
}

// CreateTrigger creates a trigger rule for the acting team.
func (h *APIHandlers) CreateTrigger(c fiber.Ctx) error {
	teamID := c.Get(TeamHeader)
	if teamID == "" {
		return badRequest(c, "X-Team-ID header is required")
	}

	var req CreateTriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if !models.ValidEntityType(req.EntityType) {
		return badRequest(c, "Unknown entity type: "+req.EntityType)
	}

	trigger := &models.Trigger{
		TeamID:     teamID,
		ChainID:    req.ChainID,
		Name:       req.Name,
		EntityType: models.EntityType(req.EntityType),
		StatusFrom: req.StatusFrom,
		StatusTo:   req.StatusTo,
		Priority:   req.Priority,
		Enabled:    req.Enabled,
		Conditions: req.Conditions,
	}

	created, err := h.triggerService.Create(c.Context(), trigger)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}
