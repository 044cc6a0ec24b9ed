package donations

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

type CharityDonationRepo interface {
	// InsertIfAbsent writes the donation unless one already exists for the
	// purchase. It reports whether a row was inserted.
	InsertIfAbsent(dbc dbctx.Context, d *types.CharityDonation) (bool, error)
	GetByPurchaseID(dbc dbctx.Context, purchaseID uuid.UUID) (*types.CharityDonation, error)
	CountByPurchaseID(dbc dbctx.Context, purchaseID uuid.UUID) (int64, error)
}

type charityDonationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCharityDonationRepo(db *gorm.DB, baseLog *logger.Logger) CharityDonationRepo {
	return &charityDonationRepo{
		db:  db,
		log: baseLog.With("repo", "CharityDonationRepo"),
	}
}

func (r *charityDonationRepo) InsertIfAbsent(dbc dbctx.Context, d *types.CharityDonation) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if d.RecordedAt.IsZero() {
		d.RecordedAt = time.Now().UTC()
	}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "purchase_id"}},
			DoNothing: true,
		}).
		Create(d)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *charityDonationRepo) GetByPurchaseID(dbc dbctx.Context, purchaseID uuid.UUID) (*types.CharityDonation, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var d types.CharityDonation
	if err := transaction.WithContext(dbc.Ctx).
		Where("purchase_id = ?", purchaseID).
		Limit(1).
		Find(&d).Error; err != nil {
		return nil, err
	}
	if d.ID == uuid.Nil {
		return nil, nil
	}
	return &d, nil
}

func (r *charityDonationRepo) CountByPurchaseID(dbc dbctx.Context, purchaseID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.CharityDonation{}).
		Where("purchase_id = ?", purchaseID).
		Count(&n).Error
	return n, err
}
