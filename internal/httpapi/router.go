package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func SetupRoutes(router *gin.Engine, h *Handler) {
	api := router.Group("/api")
	{
		api.GET("/status", h.Status)
		api.POST("/classify", h.Classify)
		api.POST("/diagnose", h.Diagnose)

		ideas := api.Group("/ideas")
		ideas.POST("/brainstorm", h.Brainstorm)
		ideas.POST("/probe", h.Probe)
		ideas.POST("/judge", h.Judge)
	}
}

// NewRouter builds the engine with recovery, request logging and security
// headers in that order.
func NewRouter(h *Handler, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	router := gin.New()
	router.Use(Recovery(log))
	router.Use(Logger(log))
	router.Use(SecurityHeaders())
	SetupRoutes(router, h)
	return router
}
