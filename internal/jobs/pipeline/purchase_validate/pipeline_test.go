package purchase_validate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/jobs/runtime"
	"github.com/yungbote/charity-iap-backend/internal/modules/purchases"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
	"github.com/yungbote/charity-iap-backend/internal/platform/retry"
)

type stubValidator struct {
	got uuid.UUID
	res purchases.Result
	err error
}

func (s *stubValidator) Validate(ctx context.Context, id uuid.UUID) (purchases.Result, error) {
	s.got = id
	s.res.PurchaseID = id
	return s.res, s.err
}

func newJob(t *testing.T, payload map[string]any) *runtime.Context {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	job := &types.JobRun{ID: uuid.New(), JobType: JobType, Status: types.JobStatusRunning, Attempts: 1, MaxAttempts: 5, Payload: datatypes.JSON(b)}
	return runtime.NewContext(context.Background(), nil, job, nil, nil, logger.Nop())
}

func TestRunSucceedsWithOutcome(t *testing.T) {
	id := uuid.New()
	v := &stubValidator{res: purchases.Result{Outcome: purchases.OutcomeFailed, Reason: "receipt productId mismatch"}}
	jc := newJob(t, Payload(id))

	if err := New(logger.Nop(), v).Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.got != id {
		t.Fatalf("purchase id: want=%s got=%s", id, v.got)
	}
	// A failed purchase is a finished job; the failure lives on the purchase.
	if jc.Job.Status != types.JobStatusSucceeded || jc.Job.Stage != "failed" {
		t.Fatalf("job: want=succeeded/failed got=%s/%s", jc.Job.Status, jc.Job.Stage)
	}
	var res purchases.Result
	if err := json.Unmarshal(jc.Job.Result, &res); err != nil || res.Reason != "receipt productId mismatch" {
		t.Fatalf("result: got=%s err=%v", jc.Job.Result, err)
	}
}

func TestRunPropagatesRetryable(t *testing.T) {
	v := &stubValidator{err: retry.Retryable(errors.New("apple unreachable"))}
	jc := newJob(t, Payload(uuid.New()))

	err := New(logger.Nop(), v).Run(jc)
	if !retry.IsRetryable(err) {
		t.Fatalf("Run: want retryable error got=%v", err)
	}
	if jc.Job.Status != types.JobStatusRunning {
		t.Fatalf("job status touched: %s", jc.Job.Status)
	}
}

func TestRunRejectsBadPayload(t *testing.T) {
	jc := newJob(t, map[string]any{"purchase_id": "nope"})
	if err := New(logger.Nop(), &stubValidator{}).Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jc.Job.Status != types.JobStatusFailed {
		t.Fatalf("status: want=failed got=%s", jc.Job.Status)
	}
}

func TestKey(t *testing.T) {
	id := uuid.MustParse("7b0b3f5e-6a43-4c0f-9a53-1b1c2c3d4e5f")
	if got := Key(id); got != "purchase_validate:7b0b3f5e-6a43-4c0f-9a53-1b1c2c3d4e5f" {
		t.Fatalf("Key: got=%s", got)
	}
}
