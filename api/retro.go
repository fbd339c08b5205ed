package api

import (
	"context"
	"io"
	"net/http"

	"github.com/chxlky/squadbooster/internal/retro"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) ListCardsHandler(c *gin.Context) {
	cards, err := h.Engine.ListCards(c.Request.Context(), c.Param("ritualId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (h *Handler) AddCardHandler(c *gin.Context) {
	var req addCardRequest
	if !bindJSON(c, &req) {
		return
	}
	card, err := h.Engine.AddCard(c.Request.Context(), c.Param("ritualId"), req.Content, req.Category, req.CreatedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

func (h *Handler) VoteHandler(c *gin.Context) {
	var req voteRequest
	if !bindJSON(c, &req) {
		return
	}
	card, err := h.Engine.ToggleVote(c.Request.Context(), c.Param("cardId"), req.UserName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) StepHandler(c *gin.Context) {
	var req stepRequest
	if !bindJSON(c, &req) {
		return
	}
	ritual, err := h.Engine.AdvanceStep(c.Request.Context(), c.Param("ritualId"), req.Step)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ritual)
}

func (h *Handler) GroupHandler(c *gin.Context) {
	var req mergeRequest
	if !bindJSON(c, &req) {
		return
	}
	card, err := h.Engine.MergeCards(c.Request.Context(), req.TargetCardID, req.SourceCardID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) DeleteCardHandler(c *gin.Context) {
	if err := h.Engine.DeleteCard(c.Request.Context(), c.Param("cardId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Card deleted"})
}

func (h *Handler) ResultsHandler(c *gin.Context) {
	cards, err := h.Engine.Results(c.Request.Context(), c.Param("ritualId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

// PromoteHandler turns a retro card into a tracked action. The card is
// checked synchronously; delivery to the action trackers runs on the
// worker pool and failures are only logged.
func (h *Handler) PromoteHandler(c *gin.Context) {
	var req promoteRequest
	if !bindJSON(c, &req) {
		return
	}
	action, err := h.Engine.PrepareAction(c.Request.Context(), retro.PromoteOptions{
		CardID:    c.Param("cardId"),
		Title:     req.Title,
		Assignee:  req.Assignee,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	queued := h.Workers.Go(func(ctx context.Context) {
		if err := h.Engine.DispatchAction(ctx, action); err != nil {
			zap.L().Error("Failed to create action from retro card",
				zap.String("cardID", action.SourceCardID), zap.String("actionID", action.ID), zap.Error(err))
			return
		}
		zap.L().Info("Created action from retro card",
			zap.String("cardID", action.SourceCardID), zap.String("actionID", action.ID))
	})
	if !queued {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server is shutting down"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Action queued", "actionId": action.ID})
}

// EventsHandler streams board events as server-sent events until the
// client disconnects.
func (h *Handler) EventsHandler(c *gin.Context) {
	if h.Events == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Board events are not enabled"})
		return
	}
	ritualID := c.Param("ritualId")
	if _, err := h.Repo.GetRitual(c.Request.Context(), ritualID); err != nil {
		respondError(c, err)
		return
	}

	sub, err := h.Events.Subscribe(c.Request.Context(), ritualID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer sub.Close()

	c.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent(evt.Type, evt)
			return true
		case err, ok := <-sub.Errors():
			if !ok {
				return false
			}
			zap.L().Warn("Skipping malformed board event", zap.String("ritualID", ritualID), zap.Error(err))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
