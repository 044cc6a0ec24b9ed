package jobrun

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	types "github.com/yungbote/charity-iap-backend/internal/domain"
)

// Dispatcher starts one job_run workflow per job, keyed by job id.
type Dispatcher struct {
	tc        temporalsdkclient.Client
	taskQueue string
}

func NewDispatcher(tc temporalsdkclient.Client, taskQueue string) *Dispatcher {
	return &Dispatcher{tc: tc, taskQueue: taskQueue}
}

func (d *Dispatcher) Dispatch(ctx context.Context, job *types.JobRun) error {
	if d == nil || d.tc == nil {
		return fmt.Errorf("temporal not configured (TEMPORAL_ADDRESS)")
	}
	if job == nil {
		return fmt.Errorf("missing job")
	}
	_, err := d.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        job.ID.String(),
		TaskQueue: d.taskQueue,
		// A requeued job reuses its id once the previous run has closed.
		WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowIDConflictPolicy: enums.WORKFLOW_ID_CONFLICT_POLICY_FAIL,
	}, WorkflowName, Input{JobID: job.ID.String(), MaxAttempts: job.MaxAttempts})
	if err == nil {
		return nil
	}
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		return nil
	}
	return err
}
