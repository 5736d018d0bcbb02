package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the read-only results API
func NewRouter(handler *SessionHandler, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	sessions := router.Group("/sessions")
	{
		sessions.GET("", handler.ListSessions)
		sessions.GET("/:id", handler.GetSession)
		sessions.GET("/:id/trials", handler.ListTrials)
		sessions.GET("/:id/summary", handler.GetSummary)
	}
	return router
}
