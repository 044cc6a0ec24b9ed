package services

import (
	"context"
	"time"

	"github.com/yungbote/charity-iap-backend/internal/jobs/pipeline/monthly_report"
	"github.com/yungbote/charity-iap-backend/internal/modules/reports"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

// DefaultFinalRunDay is the day of month from which the previous month's
// report is recomputed a second time.
const DefaultFinalRunDay = 3

// MonthlyReportScheduler enqueues the previous month's report on every tick,
// and once the month is finalDay days old, a second run under its own key for
// purchases that were still being retried at the first run.
// The job keys make repeated ticks and extra replicas collapse to one job each.
type MonthlyReportScheduler struct {
	log      *logger.Logger
	jobs     JobService
	interval time.Duration
	finalDay int
	now      func() time.Time
}

func NewMonthlyReportScheduler(baseLog *logger.Logger, jobs JobService, interval time.Duration, finalDay int) *MonthlyReportScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if finalDay <= 1 || finalDay > 28 {
		finalDay = DefaultFinalRunDay
	}
	return &MonthlyReportScheduler{
		log:      baseLog.With("component", "MonthlyReportScheduler"),
		jobs:     jobs,
		interval: interval,
		finalDay: finalDay,
		now:      time.Now,
	}
}

func (s *MonthlyReportScheduler) Start(ctx context.Context) {
	go func() {
		s.Tick(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Tick enqueues the job for the previous UTC month and returns that month.
func (s *MonthlyReportScheduler) Tick(ctx context.Context) string {
	now := s.now().UTC()
	month := reports.PreviousMonth(now)
	s.enqueue(ctx, month, monthly_report.Key(month), "initial")
	if now.Day() >= s.finalDay {
		s.enqueue(ctx, month, monthly_report.FinalKey(month), "final")
	}
	return month
}

func (s *MonthlyReportScheduler) enqueue(ctx context.Context, month, key, run string) {
	job, deduped, err := s.jobs.Enqueue(dbctx.Context{Ctx: ctx}, EnqueueRequest{
		JobType:    monthly_report.JobType,
		EntityType: "monthly_report",
		Payload:    monthly_report.Payload(month),
		JobKey:     key,
	})
	if err != nil {
		s.log.Warn("monthly report enqueue failed", "month", month, "run", run, "error", err)
		return
	}
	if !deduped {
		s.log.Info("monthly report scheduled", "month", month, "run", run, "job_id", job.ID)
	}
}
