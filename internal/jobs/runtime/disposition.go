package runtime

import (
	"time"

	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/platform/retry"
)

type Disposition int

const (
	DispositionSucceed Disposition = iota
	DispositionRetry
	DispositionExhaust
	DispositionFail
)

func (d Disposition) String() string {
	switch d {
	case DispositionSucceed:
		return "succeed"
	case DispositionRetry:
		return "retry"
	case DispositionExhaust:
		return "exhaust"
	default:
		return "fail"
	}
}

// Decide maps the outcome of a 1-based attempt to the next job state. Only
// retryable errors earn another attempt, and only while attempts remain.
func Decide(attempt, maxAttempts int, err error, schedule retry.Schedule) (Disposition, time.Duration) {
	if err == nil {
		return DispositionSucceed, 0
	}
	if !retry.IsRetryable(err) {
		return DispositionFail, 0
	}
	if attempt >= maxAttempts {
		return DispositionExhaust, 0
	}
	return DispositionRetry, schedule.Delay(attempt)
}

// Settle applies the outcome of a handler run to the job and returns the
// disposition it chose. Handlers that already finished the job are left alone.
func Settle(jc *Context, runErr error, schedule retry.Schedule) (Disposition, time.Duration) {
	if jc == nil || jc.Job == nil {
		return DispositionFail, 0
	}
	if jc.finished() {
		return dispositionOf(jc.Job.Status), 0
	}
	d, delay := Decide(jc.Job.Attempts, jc.Job.MaxAttempts, runErr, schedule)
	switch d {
	case DispositionSucceed:
		jc.Succeed("done", nil)
	case DispositionRetry:
		jc.Retry(runErr, delay)
	case DispositionExhaust:
		jc.Exhaust(runErr)
	default:
		jc.Fail("run", runErr)
	}
	return d, delay
}

func dispositionOf(status string) Disposition {
	switch status {
	case types.JobStatusSucceeded:
		return DispositionSucceed
	case types.JobStatusExhausted:
		return DispositionExhaust
	default:
		return DispositionFail
	}
}
