package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/charity-iap-backend/internal/platform/ctxutil"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

var healthRoutes = map[string]bool{
	"/healthcheck": true,
	"/readyz":      true,
}

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	log = log.With("component", "HTTP")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		kv = append(kv, ctxutil.GetTraceData(c.Request.Context()).Fields()...)
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			kv = append(kv, "error", errs.String())
		}

		switch {
		case status >= 500:
			log.Error("request failed", kv...)
		case status >= 400:
			log.Warn("request rejected", kv...)
		case healthRoutes[route]:
			log.Debug("health check", kv...)
		default:
			log.Info("request", kv...)
		}
	}
}
