package reports

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

// Totals sums completed purchases over a window.
type Totals struct {
	PurchaseCount int64 `gorm:"column:purchase_count"`
	GrossCents    int64 `gorm:"column:gross_cents"`
	AppleFeeCents int64 `gorm:"column:apple_fee_cents"`
	NetCents      int64 `gorm:"column:net_cents"`
	DonationCents int64 `gorm:"column:donation_cents"`
}

type CharityTotal struct {
	CharityID     uuid.UUID `gorm:"column:charity_id"`
	CharityName   string    `gorm:"column:charity_name"`
	DonationCents int64     `gorm:"column:donation_cents"`
	DonationCount int64     `gorm:"column:donation_count"`
}

type MonthlyReportRepo interface {
	// CompletedTotals covers purchases completed in [start, end).
	CompletedTotals(dbc dbctx.Context, start, end time.Time) (Totals, error)
	// DonationsByCharity covers donations whose purchase completed in [start, end),
	// ordered by charity id.
	DonationsByCharity(dbc dbctx.Context, start, end time.Time) ([]CharityTotal, error)
	Upsert(dbc dbctx.Context, month string, payload datatypes.JSON, generatedAt time.Time) (*types.MonthlyReport, error)
	GetByMonth(dbc dbctx.Context, month string) (*types.MonthlyReport, error)
	// Snapshot runs fn in one read-only transaction so every read inside it sees
	// the same committed state. An open dbc.Tx is reused as is.
	Snapshot(dbc dbctx.Context, fn func(dbc dbctx.Context) error) error
}

type monthlyReportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMonthlyReportRepo(db *gorm.DB, baseLog *logger.Logger) MonthlyReportRepo {
	return &monthlyReportRepo{
		db:  db,
		log: baseLog.With("repo", "MonthlyReportRepo"),
	}
}

func (r *monthlyReportRepo) Snapshot(dbc dbctx.Context, fn func(dbc dbctx.Context) error) error {
	if inTransaction(dbc.Tx) {
		return fn(dbc)
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var opts []*sql.TxOptions
	if transaction.Dialector != nil && transaction.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: dbc.Ctx, Tx: txx})
	}, opts...)
}

type txCommitter interface {
	Commit() error
	Rollback() error
}

func inTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil || db.Statement.ConnPool == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(txCommitter)
	return ok
}

func (r *monthlyReportRepo) CompletedTotals(dbc dbctx.Context, start, end time.Time) (Totals, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out Totals
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Purchase{}).
		Select(`
      COUNT(*) AS purchase_count,
      COALESCE(SUM(gross_cents), 0) AS gross_cents,
      COALESCE(SUM(apple_fee_cents), 0) AS apple_fee_cents,
      COALESCE(SUM(net_cents), 0) AS net_cents,
      COALESCE(SUM(donation_cents), 0) AS donation_cents
    `).
		Where("status = ? AND completed_at >= ? AND completed_at < ?", types.PurchaseStatusCompleted, start.UTC(), end.UTC()).
		Scan(&out).Error
	return out, err
}

func (r *monthlyReportRepo) DonationsByCharity(dbc dbctx.Context, start, end time.Time) ([]CharityTotal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []CharityTotal
	err := transaction.WithContext(dbc.Ctx).
		Table("charity_donation AS d").
		Select(`
      d.charity_id AS charity_id,
      COALESCE(c.name, '') AS charity_name,
      COALESCE(SUM(d.donation_cents), 0) AS donation_cents,
      COUNT(*) AS donation_count
    `).
		Joins("JOIN purchase AS p ON p.id = d.purchase_id").
		Joins("LEFT JOIN charity AS c ON c.id = d.charity_id").
		Where("p.status = ? AND p.completed_at >= ? AND p.completed_at < ?", types.PurchaseStatusCompleted, start.UTC(), end.UTC()).
		Group("d.charity_id, c.name").
		Order("d.charity_id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *monthlyReportRepo) Upsert(dbc dbctx.Context, month string, payload datatypes.JSON, generatedAt time.Time) (*types.MonthlyReport, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.MonthlyReport{
		Month:       month,
		Payload:     payload,
		GeneratedAt: generatedAt.UTC(),
	}
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "generated_at"}),
		}).
		Create(row).Error
	if err != nil {
		return nil, err
	}
	return r.GetByMonth(dbc, month)
}

func (r *monthlyReportRepo) GetByMonth(dbc dbctx.Context, month string) (*types.MonthlyReport, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.MonthlyReport
	if err := transaction.WithContext(dbc.Ctx).
		Where("month = ?", month).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}
