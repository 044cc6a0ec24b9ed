package charities

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

type CharityRepo interface {
	Create(dbc dbctx.Context, charities []*types.Charity) ([]*types.Charity, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Charity, error)
	ListActive(dbc dbctx.Context) ([]*types.Charity, error)
}

type charityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCharityRepo(db *gorm.DB, baseLog *logger.Logger) CharityRepo {
	return &charityRepo{
		db:  db,
		log: baseLog.With("repo", "CharityRepo"),
	}
}

func (r *charityRepo) Create(dbc dbctx.Context, charities []*types.Charity) ([]*types.Charity, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(charities) == 0 {
		return []*types.Charity{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&charities).Error; err != nil {
		return nil, err
	}
	return charities, nil
}

func (r *charityRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Charity, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Charity
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *charityRepo) ListActive(dbc dbctx.Context) ([]*types.Charity, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Charity
	if err := transaction.WithContext(dbc.Ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
