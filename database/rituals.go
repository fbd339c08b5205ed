package database

import (
	"context"
	"strings"
	"time"

	"github.com/chxlky/squadbooster/internal/models"
	"github.com/google/uuid"
)

const defaultUpcomingLimit = 10

func (r *Repo) CreateRitual(ctx context.Context, ritual *models.Ritual) error {
	ritual.Name = strings.TrimSpace(ritual.Name)
	if ritual.Name == "" {
		return invalid("name is required")
	}
	if ritual.Date.IsZero() {
		return invalid("date is required")
	}
	if ritual.CreatedBy == "" {
		return invalid("createdBy is required")
	}
	if ritual.ID == "" {
		ritual.ID = uuid.NewString()
	}
	if ritual.Type == "" {
		ritual.Type = models.RitualOther
	}
	if !ritual.Type.Valid() {
		return invalid("unknown ritual type %q", ritual.Type)
	}
	if ritual.Status == "" {
		ritual.Status = models.RitualScheduled
	}
	if !ritual.Status.Valid() {
		return invalid("unknown ritual status %q", ritual.Status)
	}
	if ritual.DurationMinutes <= 0 {
		ritual.DurationMinutes = 60
	}
	if ritual.Participants == nil {
		ritual.Participants = []string{}
	}
	ritual.RetroStep = models.StepInput
	ritual.Date = ritual.Date.UTC().Truncate(time.Second)
	return r.db.WithContext(ctx).Create(ritual).Error
}

func (r *Repo) GetRitual(ctx context.Context, id string) (models.Ritual, error) {
	var ritual models.Ritual
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ritual).Error; err != nil {
		return ritual, notFound(err)
	}
	return ritual, nil
}

func (r *Repo) SaveRitual(ctx context.Context, ritual *models.Ritual) error {
	return r.db.WithContext(ctx).Save(ritual).Error
}

// ListRituals returns rituals newest first, optionally filtered by type.
func (r *Repo) ListRituals(ctx context.Context, ritualType models.RitualType) ([]models.Ritual, error) {
	rituals := []models.Ritual{}
	q := r.db.WithContext(ctx).Order("date DESC")
	if ritualType != "" {
		q = q.Where("type = ?", ritualType)
	}
	if err := q.Find(&rituals).Error; err != nil {
		return nil, err
	}
	return rituals, nil
}

// ListUpcoming returns rituals from the start of today onwards that are not
// completed, soonest first.
func (r *Repo) ListUpcoming(ctx context.Context, limit int) ([]models.Ritual, error) {
	if limit <= 0 {
		limit = defaultUpcomingLimit
	}
	now := r.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	rituals := []models.Ritual{}
	err := r.db.WithContext(ctx).
		Where("date >= ? AND status <> ?", today, models.RitualCompleted).
		Order("date ASC").
		Limit(limit).
		Find(&rituals).Error
	if err != nil {
		return nil, err
	}
	return rituals, nil
}

// DeleteRitual removes the ritual together with all of its retro cards.
func (r *Repo) DeleteRitual(ctx context.Context, id string) error {
	return r.Atomic(ctx, func(tx Store) error {
		repo := tx.(*Repo)
		if _, err := repo.DeleteCardsForRitual(ctx, id); err != nil {
			return err
		}
		res := repo.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Ritual{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
