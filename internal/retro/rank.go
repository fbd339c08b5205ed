package retro

import (
	"slices"

	"github.com/chxlky/squadbooster/internal/models"
)

// RankByVotes orders cards by vote count, most voted first. Cards with the
// same count keep their relative order. The input slice is not modified.
func RankByVotes(cards []models.RetroCard) []models.RetroCard {
	ranked := slices.Clone(cards)
	slices.SortStableFunc(ranked, func(a, b models.RetroCard) int {
		return b.Votes.Len() - a.Votes.Len()
	})
	return ranked
}
