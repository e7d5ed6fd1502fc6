package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/plugmesh/logging"
)

func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}

		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.String())
		}

		if c.Writer.Status() >= 500 {
			logger.Warn("request failed", args...)
			return
		}

		logger.Debug("request served", args...)
	}
}
