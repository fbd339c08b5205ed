package database

import (
	"context"
	"strings"

	"github.com/chxlky/squadbooster/internal/models"
	"github.com/google/uuid"
)

// CreateAction stores a tracked action. It is the local action
// collaborator fed by retro promotions.
func (r *Repo) CreateAction(ctx context.Context, action *models.Action) error {
	action.Title = strings.TrimSpace(action.Title)
	if action.Title == "" {
		return invalid("title is required")
	}
	if action.CreatedBy == "" {
		return invalid("createdBy is required")
	}
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.Status == "" {
		action.Status = models.ActionTodo
	}
	if action.Priority == "" {
		action.Priority = models.PriorityMedium
	}
	return r.db.WithContext(ctx).Create(action).Error
}

// ListActions returns actions newest first. An empty ritualID lists all.
func (r *Repo) ListActions(ctx context.Context, ritualID string) ([]models.Action, error) {
	actions := []models.Action{}
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("rowid DESC")
	if ritualID != "" {
		q = q.Where("ritual_id = ?", ritualID)
	}
	if err := q.Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}
