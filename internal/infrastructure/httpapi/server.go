// Package httpapi exposes a small gin API for creating ingest items and
// triggering pipeline steps by hand or from upstream webhooks.
package httpapi

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer builds the gin engine with all routes configured.
func NewServer(handler *Handler, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := gin.New()
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/health", handler.Health)

	items := r.Group("/items")
	{
		items.POST("", handler.CreateItem)
		items.GET("/:id", handler.GetItem)
		items.POST("/:id/stages/:step", handler.RunStep)
		items.POST("/:id/advance", handler.Advance)
	}
	r.POST("/drain/:step", handler.Drain)

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(started),
			"client_ip", c.ClientIP())
	}
}
