package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campushq/dept-portal-api/internal/service"
)

// Metrics records method, route, status and latency for every request.
// The route template is used instead of the raw path so /timetables/:id
// stays one series regardless of the id.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			// unmatched routes collapse into one label to keep cardinality bounded
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
