package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// probePaths are logged at debug level so health checks and scrapes do not
// drown out client traffic.
var probePaths = map[string]bool{
	"/api/healthz": true,
	"/metrics":     true,
}

// Logger writes one access line per request. Only the path is logged: reset
// links and OAuth callbacks carry secrets in the query string.
func Logger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		path := c.Request.URL.Path

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status == 401 || status == 403 || status == 429:
			event = log.Warn()
		case status >= 400:
			event = log.Info()
		case probePaths[path]:
			event = log.Debug()
		default:
			event = log.Info()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("route", routeOf(c)).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("request_id", c.Writer.Header().Get(requestIDHeader))
		if p, ok := CurrentPrincipal(c); ok {
			event = event.Str("user_id", p.UserID).Str("tenant_id", p.TenantID)
		}
		event.Msg("http request")
	}
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
