package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/charity-iap-backend/internal/http/handlers"
	httpMW "github.com/yungbote/charity-iap-backend/internal/http/middleware"
	"github.com/yungbote/charity-iap-backend/internal/observability"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	CORSOrigins []string
	ServiceName string
	Metrics     *observability.Metrics

	AdminAuth *httpMW.AdminAuthMiddleware

	HealthHandler   *httpH.HealthHandler
	ReportHandler   *httpH.ReportHandler
	PurchaseHandler *httpH.PurchaseHandler
	JobHandler      *httpH.JobHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	// Admin routes are never mounted without auth.
	if cfg.AdminAuth == nil {
		return r
	}
	admin := r.Group("/api/admin")
	admin.Use(cfg.AdminAuth.RequireAdmin())
	{
		if cfg.ReportHandler != nil {
			admin.POST("/reports/:month", cfg.ReportHandler.Generate)
			admin.GET("/reports/:month", cfg.ReportHandler.GetReport)
		}

		if cfg.PurchaseHandler != nil {
			admin.GET("/purchases/:id", cfg.PurchaseHandler.GetPurchase)
			admin.POST("/purchases/:id/revalidate", cfg.PurchaseHandler.Revalidate)
		}

		if cfg.JobHandler != nil {
			admin.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}
	}

	return r
}
