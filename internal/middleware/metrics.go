package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"fitdesk/internal/metrics"
)

// Metrics records request latency by route template so ids in paths do not
// explode label cardinality.
func Metrics(rec metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		rec.ObserveRequest(c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}
