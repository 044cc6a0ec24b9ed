package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/charity-iap-backend/internal/domain"
)

func SeedCharity(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Charity {
	tb.Helper()
	c := &types.Charity{ID: uuid.New(), Name: name, Active: true}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed charity: %v", err)
	}
	return c
}

type PurchaseOpt func(*types.Purchase)

func WithReceipt(data, transactionID string) PurchaseOpt {
	return func(p *types.Purchase) {
		p.ReceiptData = &data
		if transactionID != "" {
			p.AppleTransactionID = &transactionID
		}
	}
}

func WithJWS(token string) PurchaseOpt {
	return func(p *types.Purchase) { p.TransactionJWS = &token }
}

func WithTransactionID(id string) PurchaseOpt {
	return func(p *types.Purchase) { p.AppleTransactionID = &id }
}

// Completed marks the fixture as already completed at the given time with the
// given split, without writing a donation row.
func Completed(at time.Time, fee, net, donation int64) PurchaseOpt {
	return func(p *types.Purchase) {
		at = at.UTC()
		p.Status = types.PurchaseStatusCompleted
		p.CompletedAt = &at
		p.AppleFeeCents = fee
		p.NetCents = net
		p.DonationCents = donation
	}
}

func SeedPurchase(tb testing.TB, ctx context.Context, tx *gorm.DB, charityID uuid.UUID, grossCents int64, opts ...PurchaseOpt) *types.Purchase {
	tb.Helper()
	p := &types.Purchase{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		CharityID:  charityID,
		ProductID:  "donation.tier1",
		GrossCents: grossCents,
		Status:     types.PurchaseStatusPendingValidation,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed purchase: %v", err)
	}
	return p
}

func SeedDonation(tb testing.TB, ctx context.Context, tx *gorm.DB, p *types.Purchase) *types.CharityDonation {
	tb.Helper()
	d := &types.CharityDonation{
		ID:            uuid.New(),
		PurchaseID:    p.ID,
		CharityID:     p.CharityID,
		DonationCents: p.DonationCents,
		RecordedAt:    time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed donation: %v", err)
	}
	return d
}
