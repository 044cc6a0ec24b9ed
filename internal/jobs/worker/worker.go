package worker

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/charity-iap-backend/internal/data/repos"
	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/jobs/runtime"
	"github.com/yungbote/charity-iap-backend/internal/observability"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
	"github.com/yungbote/charity-iap-backend/internal/platform/retry"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	// StaleRunning is how long a running job may go without a heartbeat before
	// another worker reclaims it.
	StaleRunning time.Duration
	Heartbeat    time.Duration
	Schedule     retry.Schedule
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 10 * time.Minute
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = c.StaleRunning / 4
	}
	if len(c.Schedule) == 0 {
		c.Schedule = retry.DefaultSchedule()
	}
	return c
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	events   repos.JobRunEventRepo
	registry *runtime.Registry
	cfg      Config
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, events repos.JobRunEventRepo, registry *runtime.Registry, cfg Config) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		events:   events,
		registry: registry,
		cfg:      cfg.withDefaults(),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool",
		"concurrency", w.cfg.Concurrency,
		"backoff", w.cfg.Schedule.String(),
		"job_types", w.registry.Types(),
	)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		go w.runLoop(ctx, workerID)
	}
	go w.reapLoop(ctx)
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain everything runnable before waiting for the next tick.
			for ctx.Err() == nil {
				ran, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

// RunOnce claims and executes at most one runnable job. It reports whether a
// job was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.StaleRunning)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	started := time.Now()
	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.events, w.log)
	runErr := w.execute(jc)
	d, delay := runtime.Settle(jc, runErr, w.cfg.Schedule)
	observability.Current().ObserveJob(job.JobType, d.String(), time.Since(started))
	switch d {
	case runtime.DispositionRetry:
		w.log.Warn("Job attempt failed, retry scheduled",
			"job_id", job.ID, "job_type", job.JobType,
			"attempt", job.Attempts, "max_attempts", job.MaxAttempts,
			"delay", delay.String(), "error", runErr,
		)
	case runtime.DispositionExhaust:
		w.log.Error("Job retries exhausted, left for manual review",
			"job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts, "error", runErr,
		)
	case runtime.DispositionFail:
		w.log.Error("Job failed", "job_id", job.ID, "job_type", job.JobType, "error", runErr)
	default:
		w.log.Info("Job succeeded", "job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	}
	return true, nil
}

func (w *Worker) execute(jc *runtime.Context) error {
	hbCtx, stop := context.WithCancel(jc.Ctx)
	defer stop()
	go func() {
		t := time.NewTicker(w.cfg.Heartbeat)
		defer t.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-t.C:
				jc.Heartbeat()
			}
		}
	}()
	return runtime.Invoke(w.registry, jc)
}

func (w *Worker) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.StaleRunning / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ReapStale(ctx); err != nil {
				w.log.Warn("ExhaustStale failed", "error", err)
			}
		}
	}
}

// ReapStale closes jobs whose worker disappeared during their final attempt.
func (w *Worker) ReapStale(ctx context.Context) (int, error) {
	lost, err := w.repo.ExhaustStale(dbctx.Context{Ctx: ctx}, w.cfg.StaleRunning)
	if err != nil {
		return 0, err
	}
	for _, j := range lost {
		j.Status = types.JobStatusExhausted
		if err := w.events.Append(dbctx.Context{Ctx: ctx}, j, types.JobEventExhausted, "worker lost during final attempt"); err != nil {
			w.log.Warn("job event append failed", "job_id", j.ID, "error", err)
		}
		w.log.Error("Job exhausted after lost worker", "job_id", j.ID, "job_type", j.JobType)
	}
	return len(lost), nil
}
