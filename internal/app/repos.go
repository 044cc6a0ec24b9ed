package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/charity-iap-backend/internal/data/repos"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

type Repos struct {
	Purchase        repos.PurchaseRepo
	Charity         repos.CharityRepo
	CharityDonation repos.CharityDonationRepo
	MonthlyReport   repos.MonthlyReportRepo
	JobRun          repos.JobRunRepo
	JobRunEvent     repos.JobRunEventRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Purchase:        repos.NewPurchaseRepo(db, log),
		Charity:         repos.NewCharityRepo(db, log),
		CharityDonation: repos.NewCharityDonationRepo(db, log),
		MonthlyReport:   repos.NewMonthlyReportRepo(db, log),
		JobRun:          repos.NewJobRunRepo(db, log),
		JobRunEvent:     repos.NewJobRunEventRepo(db, log),
	}
}
