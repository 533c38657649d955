// Package middleware provides HTTP middleware functions for request logging and processing.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/pillarbox/internal/logger"
	"github.com/stwalsh4118/pillarbox/internal/metrics"
)

// RequestLogger returns a Gin middleware for logging HTTP requests.
// Requests are also counted on m when it is not nil.
func RequestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Capture request start time
		start := time.Now()
		path := c.Request.URL.Path

		// Process request
		c.Next()

		// Calculate request duration
		duration := time.Since(start)
		status := c.Writer.Status()

		if m != nil {
			m.IncHTTPRequests(c.Request.Method, strconv.Itoa(status))
		}

		// Log request with structured fields
		logger.Log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")

		// Log errors separately if any occurred during request processing
		if len(c.Errors) > 0 {
			logger.Log.Error().
				Strs("errors", c.Errors.Errors()).
				Str("path", path).
				Msg("Request completed with errors")
		}
	}
}
