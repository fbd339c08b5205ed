package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/chxlky/squadbooster/database"
	"github.com/chxlky/squadbooster/internal/events"
	"github.com/chxlky/squadbooster/internal/models"
	"github.com/chxlky/squadbooster/internal/retro"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Subscriber opens a live feed of one ritual's board events.
type Subscriber interface {
	Subscribe(ctx context.Context, ritualID string) (*events.Subscription, error)
}

// Scheduler mirrors rituals into an external calendar.
type Scheduler interface {
	CreateEvent(ctx context.Context, ritual models.Ritual) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

type Handler struct {
	Engine    retro.Engine
	Repo      *database.Repo
	Events    Subscriber
	CalClient Scheduler
	Workers   *Dispatcher
}

func (h *Handler) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps engine and store errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var (
		ve *retro.ValidationError
		nf *retro.NotFoundError
	)
	switch {
	case errors.As(err, &ve), errors.Is(err, database.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &nf), errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		zap.L().Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload: " + err.Error()})
		return false
	}
	return true
}
