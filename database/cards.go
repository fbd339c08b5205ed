package database

import (
	"context"
	"strings"

	"github.com/chxlky/squadbooster/internal/models"
)

// ListCardsForRitual returns the ritual's cards in insertion order.
func (r *Repo) ListCardsForRitual(ctx context.Context, ritualID string) ([]models.RetroCard, error) {
	cards := []models.RetroCard{}
	if err := r.db.WithContext(ctx).Where("ritual_id = ?", ritualID).Order("rowid ASC").Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

func (r *Repo) CreateCard(ctx context.Context, card *models.RetroCard) error {
	card.Content = strings.TrimSpace(card.Content)
	if card.Content == "" {
		return invalid("content is required")
	}
	if !card.Category.Valid() {
		return invalid("category %q must be good or bad", card.Category)
	}
	if card.GroupedCards == nil {
		card.GroupedCards = []models.GroupedCard{}
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = r.now()
	}
	return r.db.WithContext(ctx).Create(card).Error
}

func (r *Repo) GetCard(ctx context.Context, id string) (models.RetroCard, error) {
	var card models.RetroCard
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&card).Error; err != nil {
		return card, notFound(err)
	}
	return card, nil
}

// SaveCard persists votes and grouping state. Content, category and
// ownership are fixed at creation and are not written.
func (r *Repo) SaveCard(ctx context.Context, card *models.RetroCard) error {
	res := r.db.WithContext(ctx).Model(&models.RetroCard{}).Where("id = ?", card.ID).
		Select("votes", "is_group_header", "grouped_cards").
		Updates(card)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCard removes the card only if it still exists, so two callers
// racing on the same card cannot both succeed.
func (r *Repo) DeleteCard(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.RetroCard{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteCardsForRitual(ctx context.Context, ritualID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("ritual_id = ?", ritualID).Delete(&models.RetroCard{})
	return res.RowsAffected, res.Error
}
