package purchases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/charity-iap-backend/internal/billing/split"
	"github.com/yungbote/charity-iap-backend/internal/data/repos"
	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/observability"
	"github.com/yungbote/charity-iap-backend/internal/platform/apple/receipt"
	"github.com/yungbote/charity-iap-backend/internal/platform/apple/signedtoken"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
	"github.com/yungbote/charity-iap-backend/internal/platform/retry"
)

type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeFailed           Outcome = "failed"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeAlreadyProcessed Outcome = "already_processed"
)

type Result struct {
	PurchaseID uuid.UUID `json:"purchase_id"`
	Outcome    Outcome   `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
}

type TokenVerifier interface {
	Verify(token string) (*signedtoken.Claims, error)
}

// Locker grants a short exclusive lease on a key. ok is false when someone else
// holds it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type ValidatorDeps struct {
	Log        *logger.Logger
	Purchases  repos.PurchaseRepo
	Completion CompletionStore
	Receipts   receipt.Verifier
	Tokens     TokenVerifier
	Rates      split.Rates

	// Optional single-flight lease per purchase.
	Locker   Locker
	LeaseTTL time.Duration

	Now func() time.Time
}

type Validator struct {
	deps   ValidatorDeps
	log    *logger.Logger
	tracer trace.Tracer
}

func NewValidator(deps ValidatorDeps) (*Validator, error) {
	if deps.Log == nil || deps.Purchases == nil || deps.Completion == nil {
		return nil, errors.New("purchases validator: missing deps")
	}
	if deps.Receipts == nil || deps.Tokens == nil {
		return nil, errors.New("purchases validator: missing store verifiers")
	}
	if err := deps.Rates.Validate(); err != nil {
		return nil, fmt.Errorf("purchases validator: %w", err)
	}
	if deps.LeaseTTL <= 0 {
		deps.LeaseTTL = 2 * time.Minute
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Validator{
		deps:   deps,
		log:    deps.Log.With("component", "ValidationWorker"),
		tracer: otel.Tracer("github.com/yungbote/charity-iap-backend/internal/modules/purchases"),
	}, nil
}

// Validate drives one purchase from pending_validation to completed or failed.
// A non-nil error is always retryable and leaves the purchase untouched;
// terminal problems are recorded on the purchase and reported through Result.
func (v *Validator) Validate(ctx context.Context, purchaseID uuid.UUID) (Result, error) {
	ctx, span := v.tracer.Start(ctx, "purchases.validate", trace.WithAttributes(
		attribute.String("purchase.id", purchaseID.String()),
	))
	defer span.End()

	res, err := v.validate(ctx, purchaseID)
	span.SetAttributes(attribute.String("purchase.outcome", string(res.Outcome)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (v *Validator) validate(ctx context.Context, purchaseID uuid.UUID) (Result, error) {
	res := Result{PurchaseID: purchaseID}
	log := v.log.With("purchase_id", purchaseID)

	p, err := v.deps.Purchases.GetByID(dbctx.Context{Ctx: ctx}, purchaseID)
	if err != nil {
		return res, retry.Retryable(fmt.Errorf("load purchase: %w", err))
	}
	if p == nil {
		log.Warn("purchase not found, skipping")
		res.Outcome = OutcomeNotFound
		return res, nil
	}
	if !p.IsPending() {
		log.Debug("purchase already processed", "status", p.Status)
		res.Outcome = OutcomeAlreadyProcessed
		return res, nil
	}

	if v.deps.Locker != nil {
		release, ok, err := v.deps.Locker.Acquire(ctx, "purchase_validate:"+purchaseID.String(), v.deps.LeaseTTL)
		if err != nil {
			return res, retry.Retryable(fmt.Errorf("acquire lease: %w", err))
		}
		if !ok {
			return res, retry.Retryable(ErrLeaseHeld)
		}
		defer release()
	}

	proof, err := v.verify(ctx, p)
	if err != nil {
		if retry.IsRetryable(err) {
			log.Warn("store verification deferred", "error", err)
			return res, err
		}
		return v.fail(ctx, res, failureReason(err))
	}

	amounts, err := split.Compute(p.GrossCents, v.deps.Rates)
	if err != nil {
		return v.fail(ctx, res, err.Error())
	}

	completed, err := v.deps.Completion.Complete(ctx, CompletionInput{
		PurchaseID:    p.ID,
		CharityID:     p.CharityID,
		TransactionID: proof.TransactionID,
		Split:         amounts,
		CompletedAt:   proof.PurchasedAt,
	})
	if err != nil {
		var term *TerminalError
		if errors.As(err, &term) {
			return v.fail(ctx, res, term.Reason)
		}
		return res, err
	}
	if !completed {
		res.Outcome = OutcomeAlreadyProcessed
		return res, nil
	}
	res.Outcome = OutcomeCompleted
	return res, nil
}

type verifiedProof struct {
	TransactionID string
	PurchasedAt   time.Time
}

func (v *Validator) verify(ctx context.Context, p *types.Purchase) (*verifiedProof, error) {
	expectedTx := ""
	if p.AppleTransactionID != nil {
		expectedTx = strings.TrimSpace(*p.AppleTransactionID)
	}

	switch {
	case p.ReceiptData != nil && strings.TrimSpace(*p.ReceiptData) != "":
		ctx, span := v.tracer.Start(ctx, "purchases.verify_receipt")
		defer span.End()
		tx, err := v.deps.Receipts.Verify(ctx, receipt.VerifyRequest{
			ReceiptData:   *p.ReceiptData,
			TransactionID: expectedTx,
			ProductID:     p.ProductID,
		})
		observability.Current().IncStoreVerification("receipt", verifyResult(err))
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if tx.ProductID != p.ProductID {
			return nil, terminalf(ReasonReceiptProductID, nil)
		}
		return &verifiedProof{TransactionID: tx.TransactionID, PurchasedAt: tx.PurchasedAt.UTC()}, nil

	case p.TransactionJWS != nil && strings.TrimSpace(*p.TransactionJWS) != "":
		_, span := v.tracer.Start(ctx, "purchases.verify_signed_token")
		defer span.End()
		claims, err := v.deps.Tokens.Verify(*p.TransactionJWS)
		observability.Current().IncStoreVerification("signed_token", verifyResult(err))
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if expectedTx != "" && claims.TransactionID != expectedTx {
			return nil, terminalf(ReasonTokenTransactionID, nil)
		}
		if claims.ProductID != p.ProductID {
			return nil, terminalf(ReasonTokenProductID, nil)
		}
		at, ok := claims.PurchasedAt()
		if !ok {
			at = v.deps.Now().UTC()
		}
		return &verifiedProof{TransactionID: claims.TransactionID, PurchasedAt: at}, nil

	default:
		return nil, terminalf(ReasonProofMissing, nil)
	}
}

func (v *Validator) fail(ctx context.Context, res Result, reason string) (Result, error) {
	ok, err := v.deps.Completion.Fail(ctx, res.PurchaseID, reason)
	if err != nil {
		return res, err
	}
	if !ok {
		res.Outcome = OutcomeAlreadyProcessed
		return res, nil
	}
	res.Outcome = OutcomeFailed
	res.Reason = reason
	return res, nil
}

func verifyResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case retry.IsRetryable(err):
		return "deferred"
	default:
		return "rejected"
	}
}

func failureReason(err error) string {
	var term *TerminalError
	if errors.As(err, &term) {
		return term.Reason
	}
	return err.Error()
}
