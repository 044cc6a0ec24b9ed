package services

import (
	"context"

	"github.com/yungbote/charity-iap-backend/internal/data/repos"
	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/jobs/pipeline/monthly_report"
	"github.com/yungbote/charity-iap-backend/internal/modules/reports"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

type ReportAggregator interface {
	Run(ctx context.Context, month string) (*reports.Report, error)
}

type ReportService interface {
	// Generate recomputes the month synchronously and returns the stored report.
	Generate(ctx context.Context, month string) (*reports.Report, error)
	// EnqueueGenerate queues a recompute, re-running a finished job for the month.
	EnqueueGenerate(dbc dbctx.Context, month string) (*types.JobRun, error)
	Get(dbc dbctx.Context, month string) (*reports.Report, error)
}

type reportService struct {
	log        *logger.Logger
	repo       repos.MonthlyReportRepo
	aggregator ReportAggregator
	jobs       JobService
}

func NewReportService(baseLog *logger.Logger, repo repos.MonthlyReportRepo, aggregator ReportAggregator, jobs JobService) ReportService {
	return &reportService{
		log:        baseLog.With("service", "ReportService"),
		repo:       repo,
		aggregator: aggregator,
		jobs:       jobs,
	}
}

func (s *reportService) Generate(ctx context.Context, month string) (*reports.Report, error) {
	if _, _, err := reports.ParseMonth(month); err != nil {
		return nil, err
	}
	return s.aggregator.Run(ctx, month)
}

func (s *reportService) EnqueueGenerate(dbc dbctx.Context, month string) (*types.JobRun, error) {
	_, key, err := reports.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	job, _, err := s.jobs.Enqueue(dbc, EnqueueRequest{
		JobType:    monthly_report.JobType,
		EntityType: "monthly_report",
		Payload:    monthly_report.Payload(key),
		JobKey:     monthly_report.Key(key),
		Requeue:    true,
	})
	return job, err
}

func (s *reportService) Get(dbc dbctx.Context, month string) (*reports.Report, error) {
	_, key, err := reports.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.GetByMonth(dbc, key)
	if err != nil || row == nil {
		return nil, err
	}
	return reports.Decode(row.Payload)
}
