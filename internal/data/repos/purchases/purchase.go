package purchases

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

// CompletionFields are the values written when a purchase is completed.
type CompletionFields struct {
	AppleTransactionID string
	AppleFeeCents      int64
	NetCents           int64
	DonationCents      int64
	CompletedAt        time.Time
}

type PurchaseRepo interface {
	Create(dbc dbctx.Context, p *types.Purchase) (*types.Purchase, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Purchase, error)
	// MarkCompleted flips a pending purchase to completed. It reports false when
	// the purchase was no longer pending.
	MarkCompleted(dbc dbctx.Context, id uuid.UUID, fields CompletionFields) (bool, error)
	// MarkFailed flips a pending purchase to failed. It reports false when the
	// purchase was no longer pending.
	MarkFailed(dbc dbctx.Context, id uuid.UUID, reason string) (bool, error)
}

type purchaseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPurchaseRepo(db *gorm.DB, baseLog *logger.Logger) PurchaseRepo {
	return &purchaseRepo{
		db:  db,
		log: baseLog.With("repo", "PurchaseRepo"),
	}
}

func (r *purchaseRepo) Create(dbc dbctx.Context, p *types.Purchase) (*types.Purchase, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if p == nil {
		return nil, errors.New("purchase is nil")
	}
	if err := transaction.WithContext(dbc.Ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (r *purchaseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Purchase, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var p types.Purchase
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, nil
	}
	return &p, nil
}

func (r *purchaseRepo) MarkCompleted(dbc dbctx.Context, id uuid.UUID, f CompletionFields) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{
		"status":          types.PurchaseStatusCompleted,
		"completed_at":    f.CompletedAt.UTC(),
		"failure_reason":  nil,
		"apple_fee_cents": f.AppleFeeCents,
		"net_cents":       f.NetCents,
		"donation_cents":  f.DonationCents,
		"updated_at":      time.Now().UTC(),
	}
	if f.AppleTransactionID != "" {
		updates["apple_transaction_id"] = f.AppleTransactionID
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Purchase{}).
		Where("id = ? AND status = ?", id, types.PurchaseStatusPendingValidation).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *purchaseRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, reason string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Purchase{}).
		Where("id = ? AND status = ?", id, types.PurchaseStatusPendingValidation).
		Updates(map[string]interface{}{
			"status":         types.PurchaseStatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
