package jobrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"gorm.io/gorm"

	"github.com/yungbote/charity-iap-backend/internal/data/repos"
	types "github.com/yungbote/charity-iap-backend/internal/domain"
	jobrt "github.com/yungbote/charity-iap-backend/internal/jobs/runtime"
	"github.com/yungbote/charity-iap-backend/internal/observability"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
	"github.com/yungbote/charity-iap-backend/internal/platform/retry"
)

var errAttemptsSpent = errors.New("attempts exhausted before the job finished")

type Activities struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Jobs     repos.JobRunRepo
	Events   repos.JobRunEventRepo
	Registry *jobrt.Registry
	Schedule retry.Schedule
}

// Attempt runs one attempt of the job. Retryable handler errors come back as
// application errors carrying the next delay; terminal outcomes come back
// non-retryable so Temporal stops.
func (a *Activities) Attempt(ctx context.Context, jobID string) (AttemptResult, error) {
	res := AttemptResult{JobID: jobID}
	if a == nil || a.Jobs == nil || a.Registry == nil {
		return res, temporal.NewNonRetryableApplicationError("jobrun: activity not configured", "config", nil)
	}
	id, err := uuid.Parse(jobID)
	if err != nil {
		return res, temporal.NewNonRetryableApplicationError("jobrun: invalid job_id", "payload", err)
	}
	dbc := dbctx.Context{Ctx: ctx}

	job, err := a.Jobs.ClaimByID(dbc, id)
	if err != nil {
		// Store hiccup; let Temporal try again without consuming a job attempt.
		return res, err
	}
	if job == nil {
		return a.unclaimable(ctx, id)
	}

	started := time.Now()
	jc := jobrt.NewContext(ctx, a.DB, job, a.Jobs, a.Events, a.Log)
	stop := a.heartbeat(ctx, jc)
	runErr := jobrt.Invoke(a.Registry, jc)
	stop()

	d, delay := jobrt.Settle(jc, runErr, a.Schedule)
	observability.Current().ObserveJob(job.JobType, d.String(), time.Since(started))
	res.Status, res.Stage, res.Attempt = jc.Job.Status, jc.Job.Stage, jc.Job.Attempts

	switch d {
	case jobrt.DispositionSucceed:
		return res, nil
	case jobrt.DispositionRetry:
		return res, temporal.NewApplicationErrorWithOptions(errText(runErr), "job_retry", temporal.ApplicationErrorOptions{
			NextRetryDelay: delay,
			Cause:          runErr,
		})
	default:
		return res, temporal.NewNonRetryableApplicationError(errText(jobErr(jc, runErr)), "job_"+d.String(), runErr)
	}
}

func (a *Activities) unclaimable(ctx context.Context, id uuid.UUID) (AttemptResult, error) {
	res := AttemptResult{JobID: id.String()}
	job, err := a.Jobs.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return res, err
	}
	if job == nil {
		return res, temporal.NewNonRetryableApplicationError("jobrun: job not found", "not_found", nil)
	}
	res.Status, res.Stage, res.Attempt = job.Status, job.Stage, job.Attempts
	switch job.Status {
	case types.JobStatusSucceeded:
		return res, nil
	case types.JobStatusFailed, types.JobStatusExhausted:
		return res, temporal.NewNonRetryableApplicationError(job.Error, "job_"+job.Status, nil)
	}
	// Out of attempts but never closed, e.g. the last attempt's worker died.
	jc := jobrt.NewContext(ctx, a.DB, job, a.Jobs, a.Events, a.Log)
	jc.Exhaust(errAttemptsSpent)
	res.Status = jc.Job.Status
	return res, temporal.NewNonRetryableApplicationError(errAttemptsSpent.Error(), "job_exhaust", nil)
}

func (a *Activities) heartbeat(ctx context.Context, jc *jobrt.Context) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
				jc.Heartbeat()
			}
		}
	}()
	return func() { close(done) }
}

func jobErr(jc *jobrt.Context, runErr error) error {
	if runErr != nil {
		return runErr
	}
	if jc.Job.Error != "" {
		return errors.New(jc.Job.Error)
	}
	return fmt.Errorf("job %s", jc.Job.Status)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
