package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListActionsHandler(c *gin.Context) {
	actions, err := h.Repo.ListActions(c.Request.Context(), c.Query("ritualId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, actions)
}
