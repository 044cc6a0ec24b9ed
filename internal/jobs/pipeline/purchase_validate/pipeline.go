package purchase_validate

import (
	"fmt"

	"github.com/yungbote/charity-iap-backend/internal/jobs/runtime"
	"github.com/yungbote/charity-iap-backend/internal/observability"
)

func (p *Pipeline) Run(jc *runtime.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	purchaseID, ok := jc.PayloadUUID("purchase_id")
	if !ok {
		jc.Fail("validate", fmt.Errorf("missing purchase_id"))
		return nil
	}
	if p.validator == nil {
		jc.Fail("validate", fmt.Errorf("validator not configured"))
		return nil
	}

	res, err := p.validator.Validate(jc.Ctx, purchaseID)
	if err != nil {
		observability.Current().IncValidation("deferred")
		// Retryable by contract; the worker schedules the next attempt.
		return err
	}
	p.log.Info("purchase validation finished",
		"purchase_id", purchaseID,
		"outcome", res.Outcome,
		"reason", res.Reason,
		"attempt", jc.Job.Attempts,
	)
	observability.Current().IncValidation(string(res.Outcome))
	jc.Succeed(string(res.Outcome), res)
	return nil
}
