package jobrun

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func runWorkflow(t *testing.T, maxAttempts int, attempt func(call int) (AttemptResult, error)) (AttemptResult, error, int) {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	calls := 0
	env.RegisterActivityWithOptions(func(ctx context.Context, jobID string) (AttemptResult, error) {
		calls++
		return attempt(calls)
	}, activity.RegisterOptions{Name: ActivityAttempt})

	env.ExecuteWorkflow(Workflow, Input{JobID: "job-1", MaxAttempts: maxAttempts})
	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	var out AttemptResult
	err := env.GetWorkflowError()
	if err == nil {
		if gErr := env.GetWorkflowResult(&out); gErr != nil {
			t.Fatalf("GetWorkflowResult: %v", gErr)
		}
	}
	return out, err, calls
}

func retryIn(d time.Duration) error {
	return temporal.NewApplicationErrorWithOptions("apple unreachable", "job_retry", temporal.ApplicationErrorOptions{NextRetryDelay: d})
}

func TestWorkflowRetriesUntilSuccess(t *testing.T) {
	out, err, calls := runWorkflow(t, 5, func(call int) (AttemptResult, error) {
		if call < 3 {
			return AttemptResult{}, retryIn(time.Duration(call) * time.Second)
		}
		return AttemptResult{JobID: "job-1", Status: "succeeded", Attempt: call}, nil
	})
	if err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if calls != 3 || out.Status != "succeeded" {
		t.Fatalf("want 3 calls and succeeded, got calls=%d out=%+v", calls, out)
	}
}

func TestWorkflowStopsAtMaxAttempts(t *testing.T) {
	_, err, calls := runWorkflow(t, 3, func(call int) (AttemptResult, error) {
		return AttemptResult{}, retryIn(time.Second)
	})
	if err == nil {
		t.Fatalf("expected workflow error")
	}
	if calls != 3 {
		t.Fatalf("calls: want=3 got=%d", calls)
	}
}

func TestWorkflowStopsOnTerminalError(t *testing.T) {
	_, err, calls := runWorkflow(t, 5, func(call int) (AttemptResult, error) {
		return AttemptResult{}, temporal.NewNonRetryableApplicationError("productId mismatch", "job_fail", errors.New("mismatch"))
	})
	if err == nil {
		t.Fatalf("expected workflow error")
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func TestWorkflowRejectsMissingJobID(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.ExecuteWorkflow(Workflow, Input{})
	if env.GetWorkflowError() == nil {
		t.Fatalf("expected error for empty job id")
	}
}
