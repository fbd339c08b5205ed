package api

import (
	"net/http"
	"strconv"

	"github.com/chxlky/squadbooster/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) CreateRitualHandler(c *gin.Context) {
	var req createRitualRequest
	if !bindJSON(c, &req) {
		return
	}

	ritual := models.Ritual{
		Name:            req.Name,
		Type:            models.RitualType(req.Type),
		Description:     req.Description,
		Date:            req.Date,
		DurationMinutes: req.Duration,
		Participants:    req.Participants,
		Notes:           req.Notes,
		Status:          models.RitualStatus(req.Status),
		CreatedBy:       req.CreatedBy,
	}
	ctx := c.Request.Context()
	if err := h.Repo.CreateRitual(ctx, &ritual); err != nil {
		respondError(c, err)
		return
	}

	if h.CalClient != nil {
		eventID, err := h.CalClient.CreateEvent(ctx, ritual)
		if err != nil {
			zap.L().Error("Error creating calendar event for ritual", zap.String("ritualID", ritual.ID), zap.Error(err))
		} else {
			ritual.EventID = eventID
			if err := h.Repo.SaveRitual(ctx, &ritual); err != nil {
				zap.L().Error("Error saving calendar event ID", zap.String("ritualID", ritual.ID), zap.Error(err))
			}
		}
	}

	c.JSON(http.StatusCreated, ritual)
}

func (h *Handler) GetRitualHandler(c *gin.Context) {
	ritual, err := h.Repo.GetRitual(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ritual)
}

func (h *Handler) ListRitualsHandler(c *gin.Context) {
	rituals, err := h.Repo.ListRituals(c.Request.Context(), models.RitualType(c.Query("type")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rituals)
}

func (h *Handler) UpcomingRitualsHandler(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
		return
	}
	rituals, err := h.Repo.ListUpcoming(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rituals)
}

// DeleteRitualHandler removes a ritual and its retro cards.
func (h *Handler) DeleteRitualHandler(c *gin.Context) {
	ctx := c.Request.Context()
	ritual, err := h.Repo.GetRitual(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Repo.DeleteRitual(ctx, ritual.ID); err != nil {
		respondError(c, err)
		return
	}

	if h.CalClient != nil && ritual.EventID != "" {
		if err := h.CalClient.DeleteEvent(ctx, ritual.EventID); err != nil {
			zap.L().Error("Error deleting calendar event for ritual", zap.String("ritualID", ritual.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Ritual deleted"})
}
