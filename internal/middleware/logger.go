package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/homebase/referral-api/pkg/logger"
)

// RequestLogger logs every request with its latency and outcome. Bodies are
// never logged; billing webhooks carry account identifiers.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		evt := log.ZL.Info()
		if status >= 500 {
			evt = log.ZL.Error()
		} else if status >= 400 {
			evt = log.ZL.Warn()
		}

		evt.
			Str("request_id", c.GetString(ContextRequestID)).
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request processed")
	}
}
