package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"kpi-service/internal/metrics"
)

// Metrics records request counts and latency per matched route template, so
// rider ids in paths do not become label values.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(started).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
