package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
)

type RequestLogMiddleware struct {
	log *logger.Logger
}

func NewRequestLogMiddleware(log *logger.Logger) *RequestLogMiddleware {
	return &RequestLogMiddleware{log: log.With("middleware", "RequestLog")}
}

// Handler logs one line per request with method, path, status and latency.
func (m *RequestLogMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		m.log.Info("Request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(started).Milliseconds(),
		)
	}
}
