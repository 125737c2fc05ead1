package router

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// New builds the gin engine with the middleware every route gets:
// panic recovery and a structured access log on the injected logger.
func New(logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLog(logger))
	return r
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
