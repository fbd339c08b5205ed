package api

import "time"

type addCardRequest struct {
	Content   string `json:"content" binding:"required"`
	Category  string `json:"category" binding:"required,oneof=good bad"`
	CreatedBy string `json:"createdBy" binding:"required"`
}

type voteRequest struct {
	UserName string `json:"userName" binding:"required"`
}

type stepRequest struct {
	Step string `json:"step" binding:"required"`
}

type mergeRequest struct {
	TargetCardID string `json:"targetCardId" binding:"required"`
	SourceCardID string `json:"sourceCardId" binding:"required"`
}

type promoteRequest struct {
	Title     string `json:"title"`
	Assignee  string `json:"assignee"`
	CreatedBy string `json:"createdBy" binding:"required"`
}

type createRitualRequest struct {
	Name         string    `json:"name" binding:"required"`
	Type         string    `json:"type" binding:"omitempty,oneof=planning review retro daily grooming other"`
	Description  string    `json:"description"`
	Date         time.Time `json:"date" binding:"required"`
	Duration     int       `json:"duration" binding:"omitempty,min=1"`
	Participants []string  `json:"participants"`
	Notes        string    `json:"notes"`
	Status       string    `json:"status" binding:"omitempty,oneof=scheduled in-progress completed"`
	CreatedBy    string    `json:"createdBy" binding:"required"`
}
