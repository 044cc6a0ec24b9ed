package app

import (
	"github.com/gin-gonic/gin"

	apphttp "github.com/yungbote/charity-iap-backend/internal/http"
	httpMW "github.com/yungbote/charity-iap-backend/internal/http/middleware"
	"github.com/yungbote/charity-iap-backend/internal/observability"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *gin.Engine {
	rc := apphttp.RouterConfig{
		Log:             log,
		CORSOrigins:     cfg.CORSOrigins,
		ServiceName:     serviceName,
		Metrics:         metrics,
		HealthHandler:   handlers.Health,
		ReportHandler:   handlers.Report,
		PurchaseHandler: handlers.Purchase,
		JobHandler:      handlers.Job,
	}
	if cfg.AdminToken != "" {
		rc.AdminAuth = httpMW.NewAdminAuthMiddleware(log, cfg.AdminToken)
	}
	return apphttp.NewRouter(rc)
}
