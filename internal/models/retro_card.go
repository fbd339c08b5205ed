package models

import (
	"time"

	"gorm.io/datatypes"
)

type Category string

const (
	CategoryGood Category = "good"
	CategoryBad  Category = "bad"
)

func (c Category) Valid() bool {
	return c == CategoryGood || c == CategoryBad
}

// GroupedCard is a snapshot of a card that was merged into a group header.
type GroupedCard struct {
	Content    string `json:"content"`
	OriginalID string `json:"originalId"`
}

type RetroCard struct {
	ID            string                           `gorm:"primaryKey" json:"id"`
	RitualID      string                           `gorm:"not null;index" json:"ritualId"`
	Content       string                           `gorm:"not null" json:"content"`
	Category      Category                         `gorm:"not null" json:"category"`
	Votes         VoterSet                         `gorm:"serializer:json" json:"votes"`
	IsGroupHeader bool                             `gorm:"default:false" json:"isGroupHeader"`
	GroupedCards  datatypes.JSONSlice[GroupedCard] `json:"groupedCards"`
	CreatedBy     string                           `gorm:"not null" json:"createdBy"`
	CreatedAt     time.Time                        `json:"createdAt"`
}
