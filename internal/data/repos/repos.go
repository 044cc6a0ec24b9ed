package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/charity-iap-backend/internal/data/repos/charities"
	"github.com/yungbote/charity-iap-backend/internal/data/repos/donations"
	"github.com/yungbote/charity-iap-backend/internal/data/repos/jobs"
	"github.com/yungbote/charity-iap-backend/internal/data/repos/purchases"
	"github.com/yungbote/charity-iap-backend/internal/data/repos/reports"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

type PurchaseRepo = purchases.PurchaseRepo
type CharityRepo = charities.CharityRepo
type CharityDonationRepo = donations.CharityDonationRepo
type MonthlyReportRepo = reports.MonthlyReportRepo
type JobRunRepo = jobs.JobRunRepo
type JobRunEventRepo = jobs.JobRunEventRepo

func NewPurchaseRepo(db *gorm.DB, baseLog *logger.Logger) PurchaseRepo {
	return purchases.NewPurchaseRepo(db, baseLog)
}

func NewCharityRepo(db *gorm.DB, baseLog *logger.Logger) CharityRepo {
	return charities.NewCharityRepo(db, baseLog)
}

func NewCharityDonationRepo(db *gorm.DB, baseLog *logger.Logger) CharityDonationRepo {
	return donations.NewCharityDonationRepo(db, baseLog)
}

func NewMonthlyReportRepo(db *gorm.DB, baseLog *logger.Logger) MonthlyReportRepo {
	return reports.NewMonthlyReportRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}

func NewJobRunEventRepo(db *gorm.DB, baseLog *logger.Logger) JobRunEventRepo {
	return jobs.NewJobRunEventRepo(db, baseLog)
}
