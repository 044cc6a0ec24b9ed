package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/charity-iap-backend/internal/jobs/pipeline/monthly_report"
	"github.com/yungbote/charity-iap-backend/internal/jobs/pipeline/purchase_validate"
	jobrt "github.com/yungbote/charity-iap-backend/internal/jobs/runtime"
	"github.com/yungbote/charity-iap-backend/internal/jobs/worker"
	"github.com/yungbote/charity-iap-backend/internal/modules/purchases"
	"github.com/yungbote/charity-iap-backend/internal/modules/reports"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
	"github.com/yungbote/charity-iap-backend/internal/services"
	"github.com/yungbote/charity-iap-backend/internal/temporalx/jobrun"
	"github.com/yungbote/charity-iap-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Validator  *purchases.Validator
	Aggregator *reports.Aggregator
	Registry   *jobrt.Registry

	Jobs      services.JobService
	Purchases services.PurchaseService
	Reports   services.ReportService
	Scheduler *services.MonthlyReportScheduler

	// Exactly one of these consumes the queue.
	JobWorker      *worker.Worker
	TemporalWorker *temporalworker.Runner
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	validatorDeps := purchases.ValidatorDeps{
		Log:        log,
		Purchases:  reposet.Purchase,
		Completion: purchases.NewCompletionStore(db, log, reposet.Purchase, reposet.CharityDonation),
		Receipts:   clients.Receipts,
		Tokens:     clients.Tokens,
		Rates:      cfg.Rates,
		LeaseTTL:   cfg.LeaseTTL,
	}
	if clients.Locker != nil {
		validatorDeps.Locker = clients.Locker
	}
	validator, err := purchases.NewValidator(validatorDeps)
	if err != nil {
		return Services{}, err
	}

	aggregatorDeps := reports.AggregatorDeps{
		Log:     log,
		Reports: reposet.MonthlyReport,
	}
	if clients.Archive != nil {
		aggregatorDeps.Archiver = clients.Archive
	}
	aggregator, err := reports.NewAggregator(aggregatorDeps)
	if err != nil {
		return Services{}, err
	}

	registry := jobrt.NewRegistry()
	if err := registry.Register(purchase_validate.New(log, validator)); err != nil {
		return Services{}, fmt.Errorf("register %s: %w", purchase_validate.JobType, err)
	}
	if err := registry.Register(monthly_report.New(log, aggregator)); err != nil {
		return Services{}, fmt.Errorf("register %s: %w", monthly_report.JobType, err)
	}

	var dispatcher services.JobDispatcher
	if cfg.Jobs.Backend == JobBackendTemporal {
		dispatcher = jobrun.NewDispatcher(clients.Temporal, cfg.Temporal.TaskQueue)
	}
	jobs := services.NewJobService(db, log, reposet.JobRun, reposet.JobRunEvent, dispatcher, cfg.Jobs.MaxAttempts)

	out := Services{
		Validator:  validator,
		Aggregator: aggregator,
		Registry:   registry,
		Jobs:       jobs,
		Purchases:  services.NewPurchaseService(log, reposet.Purchase, reposet.CharityDonation, jobs),
		Reports:    services.NewReportService(log, reposet.MonthlyReport, aggregator, jobs),
		Scheduler:  services.NewMonthlyReportScheduler(log, jobs, cfg.ReportInterval, cfg.ReportFinalRunDay),
	}

	switch cfg.Jobs.Backend {
	case JobBackendTemporal:
		runner, err := temporalworker.NewRunner(
			log, cfg.Temporal, clients.Temporal, db,
			reposet.JobRun, reposet.JobRunEvent, registry,
			cfg.Jobs.Schedule, cfg.Jobs.Concurrency,
		)
		if err != nil {
			return Services{}, err
		}
		out.TemporalWorker = runner
	default:
		out.JobWorker = worker.NewWorker(db, log, reposet.JobRun, reposet.JobRunEvent, registry, worker.Config{
			Concurrency:  cfg.Jobs.Concurrency,
			PollInterval: cfg.Jobs.PollInterval,
			StaleRunning: cfg.Jobs.StaleRunning,
			Schedule:     cfg.Jobs.Schedule,
		})
	}

	return out, nil
}
