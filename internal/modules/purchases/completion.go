package purchases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/charity-iap-backend/internal/billing/split"
	dbpkg "github.com/yungbote/charity-iap-backend/internal/data/db"
	"github.com/yungbote/charity-iap-backend/internal/data/repos"
	purchaserepo "github.com/yungbote/charity-iap-backend/internal/data/repos/purchases"
	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
	"github.com/yungbote/charity-iap-backend/internal/platform/retry"
)

type CompletionInput struct {
	PurchaseID    uuid.UUID
	CharityID     uuid.UUID
	TransactionID string
	Split         split.Split
	CompletedAt   time.Time
}

type CompletionStore interface {
	// Complete marks the purchase completed and records its donation atomically.
	// It reports false when the purchase had already left pending_validation.
	Complete(ctx context.Context, in CompletionInput) (bool, error)
	// Fail records a terminal failure. It reports false when the purchase had
	// already left pending_validation.
	Fail(ctx context.Context, purchaseID uuid.UUID, reason string) (bool, error)
}

type completionStore struct {
	db        *gorm.DB
	log       *logger.Logger
	purchases repos.PurchaseRepo
	donations repos.CharityDonationRepo
}

func NewCompletionStore(db *gorm.DB, baseLog *logger.Logger, purchases repos.PurchaseRepo, donations repos.CharityDonationRepo) CompletionStore {
	return &completionStore{
		db:        db,
		log:       baseLog.With("component", "CompletionStore"),
		purchases: purchases,
		donations: donations,
	}
}

func (s *completionStore) Complete(ctx context.Context, in CompletionInput) (bool, error) {
	var completed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		ok, err := s.purchases.MarkCompleted(dbc, in.PurchaseID, purchaserepo.CompletionFields{
			AppleTransactionID: in.TransactionID,
			AppleFeeCents:      in.Split.AppleFeeCents,
			NetCents:           in.Split.NetCents,
			DonationCents:      in.Split.DonationCents,
			CompletedAt:        in.CompletedAt,
		})
		if err != nil {
			if dbpkg.IsUniqueViolation(err) {
				return errDuplicateTransaction
			}
			return fmt.Errorf("mark completed: %w", err)
		}
		if !ok {
			return nil
		}
		if _, err := s.donations.InsertIfAbsent(dbc, &types.CharityDonation{
			PurchaseID:    in.PurchaseID,
			CharityID:     in.CharityID,
			DonationCents: in.Split.DonationCents,
			RecordedAt:    in.CompletedAt.UTC(),
		}); err != nil {
			return fmt.Errorf("record donation: %w", err)
		}
		completed = true
		return nil
	})
	if errors.Is(err, errDuplicateTransaction) {
		return false, terminalf(ReasonTransactionAlreadyUsed, err)
	}
	if err != nil {
		return false, retry.Retryable(err)
	}
	if completed {
		s.log.Info("purchase completed",
			"purchase_id", in.PurchaseID,
			"charity_id", in.CharityID,
			"gross_cents", in.Split.GrossCents,
			"donation_cents", in.Split.DonationCents,
		)
	}
	return completed, nil
}

func (s *completionStore) Fail(ctx context.Context, purchaseID uuid.UUID, reason string) (bool, error) {
	ok, err := s.purchases.MarkFailed(dbctx.Context{Ctx: ctx}, purchaseID, reason)
	if err != nil {
		return false, retry.Retryable(fmt.Errorf("mark failed: %w", err))
	}
	if ok {
		s.log.Warn("purchase failed validation", "purchase_id", purchaseID, "reason", reason)
	}
	return ok, nil
}
