package services

import (
	"github.com/google/uuid"

	"github.com/yungbote/charity-iap-backend/internal/data/repos"
	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/jobs/pipeline/purchase_validate"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

type PurchaseService interface {
	// EnqueueValidation queues the validation job for a purchase. Intake calls
	// it once per purchase; requeue re-runs a job that already finished.
	EnqueueValidation(dbc dbctx.Context, purchaseID uuid.UUID, requeue bool) (*types.JobRun, bool, error)
	Get(dbc dbctx.Context, purchaseID uuid.UUID) (*types.Purchase, *types.CharityDonation, error)
}

type purchaseService struct {
	log       *logger.Logger
	purchases repos.PurchaseRepo
	donations repos.CharityDonationRepo
	jobs      JobService
}

func NewPurchaseService(baseLog *logger.Logger, purchases repos.PurchaseRepo, donations repos.CharityDonationRepo, jobs JobService) PurchaseService {
	return &purchaseService{
		log:       baseLog.With("service", "PurchaseService"),
		purchases: purchases,
		donations: donations,
		jobs:      jobs,
	}
}

func (s *purchaseService) EnqueueValidation(dbc dbctx.Context, purchaseID uuid.UUID, requeue bool) (*types.JobRun, bool, error) {
	id := purchaseID
	return s.jobs.Enqueue(dbc, EnqueueRequest{
		JobType:    purchase_validate.JobType,
		EntityType: "purchase",
		EntityID:   &id,
		Payload:    purchase_validate.Payload(purchaseID),
		JobKey:     purchase_validate.Key(purchaseID),
		Requeue:    requeue,
	})
}

func (s *purchaseService) Get(dbc dbctx.Context, purchaseID uuid.UUID) (*types.Purchase, *types.CharityDonation, error) {
	p, err := s.purchases.GetByID(dbc, purchaseID)
	if err != nil || p == nil {
		return nil, nil, err
	}
	d, err := s.donations.GetByPurchaseID(dbc, purchaseID)
	if err != nil {
		return nil, nil, err
	}
	return p, d, nil
}
