package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"nutriwatch/internal/metrics"
)

// Metrics records the latency of each request by route template. Requests
// that match no route are grouped under "unmatched".
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
