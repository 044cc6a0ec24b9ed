package monthly_report

import (
	"errors"
	"fmt"

	"github.com/yungbote/charity-iap-backend/internal/jobs/runtime"
	"github.com/yungbote/charity-iap-backend/internal/modules/reports"
	"github.com/yungbote/charity-iap-backend/internal/observability"
)

type summary struct {
	Month         string `json:"month"`
	Reconciled    bool   `json:"reconciled"`
	PurchaseCount int64  `json:"purchase_count"`
	DonationCents int64  `json:"donation_cents"`
	Charities     int    `json:"charities"`
}

func (p *Pipeline) Run(jc *runtime.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p.aggregator == nil {
		jc.Fail("aggregate", fmt.Errorf("aggregator not configured"))
		return nil
	}
	month := jc.PayloadString("month")

	report, err := p.aggregator.Run(jc.Ctx, month)
	if err != nil {
		observability.Current().ObserveReport(month, false, err)
		if errors.Is(err, reports.ErrInvalidMonth) {
			jc.Fail("aggregate", err)
			return nil
		}
		return err
	}

	observability.Current().ObserveReport(report.Month, report.Reconciled, nil)
	p.log.Info("monthly report stored",
		"month", report.Month,
		"reconciled", report.Reconciled,
		"purchase_count", report.Totals.PurchaseCount,
	)
	jc.Succeed("aggregated", summary{
		Month:         report.Month,
		Reconciled:    report.Reconciled,
		PurchaseCount: report.Totals.PurchaseCount,
		DonationCents: report.Totals.DonationCents,
		Charities:     len(report.PerCharity),
	})
	return nil
}
