// Package copilot implements the PM Copilot workflow: a resumable state
// machine that generates deliverable and task suggestions for a work order
// and pauses for human approval when the team runs in staged mode.
package copilot

import (
	"context"
	"strings"

	"github.com/foreman-hq/foreman/pkg/models"
)

// SuggestionGenerator produces candidate deliverables and tasks for a work
// order. The production implementation fronts an LLM; the heuristic one keeps
// development and tests deterministic.
type SuggestionGenerator interface {
	Deliverables(ctx context.Context, workOrder *models.WorkOrder) ([]models.Suggestion, error)
	Tasks(ctx context.Context, workOrder *models.WorkOrder, deliverables []models.Suggestion) ([]models.Suggestion, error)
}

// HeuristicGenerator derives suggestions from the work order text alone.
type HeuristicGenerator struct{}

func NewHeuristicGenerator() *HeuristicGenerator {
	return &HeuristicGenerator{}
}

func (g *HeuristicGenerator) Deliverables(_ context.Context, workOrder *models.WorkOrder) ([]models.Suggestion, error) {
	suggestions := []models.Suggestion{
		{
			Title:       "Scope document for " + workOrder.Title,
			Description: "Written scope covering goals, constraints, and acceptance criteria.",
			Confidence:  0.9,
			DueInDays:   3,
			Status:      models.SuggestionStatusPending,
		},
		{
			Title:       "Delivery plan for " + workOrder.Title,
			Description: "Milestones and owner assignments for the work order.",
			Confidence:  0.8,
			DueInDays:   7,
			Status:      models.SuggestionStatusPending,
		},
	}

	if strings.Contains(strings.ToLower(workOrder.Description), "report") {
		suggestions = append(suggestions, models.Suggestion{
			Title:       "Final report",
			Description: "Summary report of outcomes and follow-ups.",
			Confidence:  0.7,
			DueInDays:   14,
			Status:      models.SuggestionStatusPending,
		})
	}

	return suggestions, nil
}

func (g *HeuristicGenerator) Tasks(_ context.Context, workOrder *models.WorkOrder, deliverables []models.Suggestion) ([]models.Suggestion, error) {
	tasks := make([]models.Suggestion, 0, len(deliverables)*2)

	for _, deliverable := range deliverables {
		if deliverable.Status == models.SuggestionStatusRejected {
			continue
		}

		tasks = append(tasks,
			models.Suggestion{
				Title:       "Draft: " + deliverable.Title,
				Description: "Produce the first draft.",
				Confidence:  deliverable.Confidence * 0.9,
				DueInDays:   max(deliverable.DueInDays-1, 1),
				Status:      models.SuggestionStatusPending,
			},
			models.Suggestion{
				Title:       "Review: " + deliverable.Title,
				Description: "Review and sign off.",
				Confidence:  deliverable.Confidence * 0.8,
				DueInDays:   deliverable.DueInDays,
				Status:      models.SuggestionStatusPending,
			},
		)
	}

	if len(tasks) == 0 {
		tasks = append(tasks, models.Suggestion{
			Title:       "Kick off " + workOrder.Title,
			Description: "Initial planning session.",
			Confidence:  0.6,
			DueInDays:   1,
			Status:      models.SuggestionStatusPending,
		})
	}

	return tasks, nil
}
