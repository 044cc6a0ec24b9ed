package app

import (
	"gorm.io/gorm"

	httpH "github.com/yungbote/charity-iap-backend/internal/http/handlers"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Report   *httpH.ReportHandler
	Purchase *httpH.PurchaseHandler
	Job      *httpH.JobHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	var pinger httpH.Pinger
	if sqlDB, err := db.DB(); err == nil {
		pinger = sqlDB
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(pinger),
		Report:   httpH.NewReportHandler(services.Reports),
		Purchase: httpH.NewPurchaseHandler(services.Purchases),
		Job:      httpH.NewJobHandler(services.Jobs),
	}
}
