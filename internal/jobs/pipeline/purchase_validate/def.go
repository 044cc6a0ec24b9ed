package purchase_validate

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/charity-iap-backend/internal/modules/purchases"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

const JobType = "purchase_validate"

type Validator interface {
	Validate(ctx context.Context, purchaseID uuid.UUID) (purchases.Result, error)
}

type Pipeline struct {
	log       *logger.Logger
	validator Validator
}

func New(baseLog *logger.Logger, validator Validator) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", JobType),
		validator: validator,
	}
}

func (p *Pipeline) Type() string { return JobType }

// Payload builds the job payload for one purchase.
func Payload(purchaseID uuid.UUID) map[string]any {
	return map[string]any{"purchase_id": purchaseID.String()}
}

// Key dedupes validation jobs per purchase.
func Key(purchaseID uuid.UUID) string { return JobType + ":" + purchaseID.String() }
