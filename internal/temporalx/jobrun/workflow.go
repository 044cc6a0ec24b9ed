package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow drives a job_run row to a terminal state. Temporal owns the retry
// loop; the activity supplies each delay from the job's backoff schedule.
func Workflow(ctx workflow.Context, in Input) (AttemptResult, error) {
	var out AttemptResult
	if strings.TrimSpace(in.JobID) == "" {
		return out, fmt.Errorf("jobrun: missing job_id")
	}
	maxAttempts := in.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Minute,
			MaximumAttempts:    int32(maxAttempts),
		},
	})
	err := workflow.ExecuteActivity(ctx, ActivityAttempt, in.JobID).Get(ctx, &out)
	return out, err
}
