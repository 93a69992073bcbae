// Package middleware provides HTTP middleware for the sync API.
package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/storepulse/backend/internal/infrastructure/metrics"
)

// Metrics counts handled requests by method, route template and status.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.FullPath()
		if path == "" {
			// Unmatched routes collapse into one label to keep cardinality down.
			path = "unmatched"
		}
		metrics.IncHTTP(c.Request.Method, path, strconv.Itoa(c.Writer.Status()))
	}
}
