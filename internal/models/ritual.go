package models

import (
	"time"

	"gorm.io/datatypes"
)

type RitualType string

const (
	RitualPlanning RitualType = "planning"
	RitualReview   RitualType = "review"
	RitualRetro    RitualType = "retro"
	RitualDaily    RitualType = "daily"
	RitualGrooming RitualType = "grooming"
	RitualOther    RitualType = "other"
)

func (t RitualType) Valid() bool {
	switch t {
	case RitualPlanning, RitualReview, RitualRetro, RitualDaily, RitualGrooming, RitualOther:
		return true
	}
	return false
}

type RitualStatus string

const (
	RitualScheduled  RitualStatus = "scheduled"
	RitualInProgress RitualStatus = "in-progress"
	RitualCompleted  RitualStatus = "completed"
)

func (s RitualStatus) Valid() bool {
	switch s {
	case RitualScheduled, RitualInProgress, RitualCompleted:
		return true
	}
	return false
}

// RetroStep is the phase of a retrospective board. Only meaningful for
// rituals of type retro.
type RetroStep string

const (
	StepInput     RetroStep = "input"
	StepGroup     RetroStep = "group"
	StepVote      RetroStep = "vote"
	StepCompleted RetroStep = "completed"
)

func (s RetroStep) Valid() bool {
	switch s {
	case StepInput, StepGroup, StepVote, StepCompleted:
		return true
	}
	return false
}

type Ritual struct {
	ID              string                      `gorm:"primaryKey" json:"id"`
	Name            string                      `gorm:"not null" json:"name"`
	Type            RitualType                  `gorm:"not null;index" json:"type"`
	Description     string                      `json:"description,omitempty"`
	Date            time.Time                   `gorm:"not null;index" json:"date"`
	DurationMinutes int                         `gorm:"default:60" json:"durationMinutes"`
	Participants    datatypes.JSONSlice[string] `json:"participants"`
	Notes           string                      `json:"notes,omitempty"`
	RetroStep       RetroStep                   `gorm:"not null" json:"retroStep"`
	Status          RitualStatus                `gorm:"not null;index" json:"status"`
	CreatedBy       string                      `gorm:"not null" json:"createdBy"`
	EventID         string                      `json:"eventId,omitempty"` // Google Calendar Event ID
	CreatedAt       time.Time                   `json:"createdAt"`
	UpdatedAt       time.Time                   `json:"updatedAt"`
}
