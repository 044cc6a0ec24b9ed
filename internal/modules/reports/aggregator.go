// Package reports reduces completed purchases into an auditable per-charity
// report for a calendar month.
package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	dbpkg "github.com/yungbote/charity-iap-backend/internal/data/db"
	"github.com/yungbote/charity-iap-backend/internal/data/repos"
	reportrepo "github.com/yungbote/charity-iap-backend/internal/data/repos/reports"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

type Totals struct {
	PurchaseCount int64 `json:"purchaseCount"`
	GrossCents    int64 `json:"grossCents"`
	AppleFeeCents int64 `json:"appleFeeCents"`
	NetCents      int64 `json:"netCents"`
	DonationCents int64 `json:"donationCents"`
	PlatformCents int64 `json:"platformCents"`
}

type CharityLine struct {
	CharityID     string `json:"charityId"`
	CharityName   string `json:"charityName"`
	DonationCents int64  `json:"donationCents"`
	DonationCount int64  `json:"donationCount"`
}

// Report is the payload stored for a month.
type Report struct {
	Month       string        `json:"month"`
	PeriodStart time.Time     `json:"periodStart"`
	PeriodEnd   time.Time     `json:"periodEnd"`
	Totals      Totals        `json:"totals"`
	PerCharity  []CharityLine `json:"perCharity"`
	Reconciled  bool          `json:"reconciled"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// Archiver keeps an external copy of each generated report.
type Archiver interface {
	Put(ctx context.Context, month string, payload []byte) error
}

type AggregatorDeps struct {
	Log      *logger.Logger
	Reports  repos.MonthlyReportRepo
	Archiver Archiver
	Now      func() time.Time
}

type Aggregator struct {
	deps AggregatorDeps
	log  *logger.Logger
}

func NewAggregator(deps AggregatorDeps) (*Aggregator, error) {
	if deps.Log == nil || deps.Reports == nil {
		return nil, errors.New("reports aggregator: missing deps")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Aggregator{deps: deps, log: deps.Log.With("component", "MonthlyAggregator")}, nil
}

// Run recomputes the report for month ("YYYY-MM", or the previous UTC month
// when empty) and overwrites any stored copy.
func (a *Aggregator) Run(ctx context.Context, month string) (*Report, error) {
	if month == "" {
		month = PreviousMonth(a.deps.Now())
	}
	first, key, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}
	start, end := Bounds(first)

	ctx, span := otel.Tracer("github.com/yungbote/charity-iap-backend/internal/modules/reports").
		Start(ctx, "reports.aggregate")
	defer span.End()
	span.SetAttributes(attribute.String("report.month", key))

	var (
		totals    reportrepo.Totals
		byCharity []reportrepo.CharityTotal
	)
	err = a.deps.Reports.Snapshot(dbctx.Context{Ctx: ctx}, func(dbc dbctx.Context) error {
		var err error
		if totals, err = a.deps.Reports.CompletedTotals(dbc, start, end); err != nil {
			return fmt.Errorf("sum completed purchases: %w", err)
		}
		if byCharity, err = a.deps.Reports.DonationsByCharity(dbc, start, end); err != nil {
			return fmt.Errorf("sum donations by charity: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, dbpkg.Classify(err)
	}

	report := &Report{
		Month:       key,
		PeriodStart: start,
		PeriodEnd:   end,
		Totals: Totals{
			PurchaseCount: totals.PurchaseCount,
			GrossCents:    totals.GrossCents,
			AppleFeeCents: totals.AppleFeeCents,
			NetCents:      totals.NetCents,
			DonationCents: totals.DonationCents,
			PlatformCents: totals.NetCents - totals.DonationCents,
		},
		PerCharity:  make([]CharityLine, 0, len(byCharity)),
		GeneratedAt: a.deps.Now().UTC(),
	}
	var perCharitySum int64
	for _, c := range byCharity {
		perCharitySum += c.DonationCents
		report.PerCharity = append(report.PerCharity, CharityLine{
			CharityID:     c.CharityID.String(),
			CharityName:   c.CharityName,
			DonationCents: c.DonationCents,
			DonationCount: c.DonationCount,
		})
	}
	report.Reconciled = perCharitySum == report.Totals.DonationCents
	if !report.Reconciled {
		a.log.Error("donation ledger does not reconcile with purchases",
			"month", key,
			"per_charity_cents", perCharitySum,
			"purchase_donation_cents", report.Totals.DonationCents,
		)
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if _, err := a.deps.Reports.Upsert(dbctx.Context{Ctx: ctx}, key, datatypes.JSON(payload), report.GeneratedAt); err != nil {
		return nil, dbpkg.Classify(fmt.Errorf("store report: %w", err))
	}

	if a.deps.Archiver != nil {
		if err := a.deps.Archiver.Put(ctx, key, payload); err != nil {
			a.log.Warn("report archive failed", "month", key, "error", err)
		}
	}

	a.log.Info("monthly report generated",
		"month", key,
		"purchases", report.Totals.PurchaseCount,
		"donation_cents", report.Totals.DonationCents,
		"charities", len(report.PerCharity),
		"reconciled", report.Reconciled,
	)
	return report, nil
}

// Decode reads a stored payload back into a Report.
func Decode(payload []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}
