package api

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires every route under /api.
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/health", h.HealthCheckHandler)

		retroGroup := apiGroup.Group("/retro")
		retroGroup.GET("/:ritualId/cards", h.ListCardsHandler)
		retroGroup.POST("/:ritualId/cards", h.AddCardHandler)
		retroGroup.PATCH("/:ritualId/step", h.StepHandler)
		retroGroup.GET("/:ritualId/results", h.ResultsHandler)
		retroGroup.GET("/:ritualId/events", h.EventsHandler)
		retroGroup.POST("/cards/group", h.GroupHandler)
		retroGroup.POST("/cards/:cardId/vote", h.VoteHandler)
		retroGroup.POST("/cards/:cardId/action", h.PromoteHandler)
		retroGroup.DELETE("/cards/:cardId", h.DeleteCardHandler)

		ritualGroup := apiGroup.Group("/rituals")
		ritualGroup.GET("", h.ListRitualsHandler)
		ritualGroup.POST("", h.CreateRitualHandler)
		ritualGroup.GET("/upcoming/list", h.UpcomingRitualsHandler)
		ritualGroup.GET("/:id", h.GetRitualHandler)
		ritualGroup.DELETE("/:id", h.DeleteRitualHandler)

		apiGroup.GET("/actions", h.ListActionsHandler)
	}

	return router
}
