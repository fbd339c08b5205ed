package models

import "time"

type ActionStatus string

const (
	ActionTodo       ActionStatus = "todo"
	ActionInProgress ActionStatus = "in-progress"
	ActionDone       ActionStatus = "done"
)

type ActionPriority string

const (
	PriorityLow    ActionPriority = "low"
	PriorityMedium ActionPriority = "medium"
	PriorityHigh   ActionPriority = "high"
)

// Action is a tracked follow-up task, optionally linked to the ritual and
// retro card it came from.
type Action struct {
	ID           string         `gorm:"primaryKey" json:"id"`
	Title        string         `gorm:"not null" json:"title"`
	Description  string         `json:"description,omitempty"`
	Assignee     string         `json:"assignee,omitempty"`
	DueDate      *time.Time     `json:"dueDate,omitempty"`
	Status       ActionStatus   `gorm:"not null;index" json:"status"`
	Priority     ActionPriority `gorm:"not null" json:"priority"`
	RitualID     string         `gorm:"index" json:"ritualId,omitempty"`
	SourceCardID string         `json:"sourceCardId,omitempty"`
	CreatedBy    string         `gorm:"not null" json:"createdBy"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}
