package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/modules/reports"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/services"
)

type fakeReports struct {
	stored    map[string]*reports.Report
	generated []string
	enqueued  []string
	err       error
}

func (f *fakeReports) Generate(ctx context.Context, month string) (*reports.Report, error) {
	_, key, err := reports.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	month = key
	if f.err != nil {
		return nil, f.err
	}
	f.generated = append(f.generated, month)
	return &reports.Report{Month: month, Reconciled: true}, nil
}

func (f *fakeReports) EnqueueGenerate(dbc dbctx.Context, month string) (*types.JobRun, error) {
	if _, _, err := reports.ParseMonth(month); err != nil {
		return nil, err
	}
	f.enqueued = append(f.enqueued, month)
	return &types.JobRun{ID: uuid.New(), JobType: "monthly_report", Status: types.JobStatusQueued}, nil
}

func (f *fakeReports) Get(dbc dbctx.Context, month string) (*reports.Report, error) {
	if _, _, err := reports.ParseMonth(month); err != nil {
		return nil, err
	}
	return f.stored[month], nil
}

type fakePurchases struct {
	purchases map[uuid.UUID]*types.Purchase
	requeued  []uuid.UUID
}

func (f *fakePurchases) EnqueueValidation(dbc dbctx.Context, id uuid.UUID, requeue bool) (*types.JobRun, bool, error) {
	if requeue {
		f.requeued = append(f.requeued, id)
	}
	return &types.JobRun{ID: uuid.New(), JobType: "purchase_validate", Status: types.JobStatusQueued}, false, nil
}

func (f *fakePurchases) Get(dbc dbctx.Context, id uuid.UUID) (*types.Purchase, *types.CharityDonation, error) {
	return f.purchases[id], nil, nil
}

type fakeJobs struct {
	job    *types.JobRun
	events []*types.JobRunEvent
}

func (f *fakeJobs) Enqueue(dbctx.Context, services.EnqueueRequest) (*types.JobRun, bool, error) {
	return nil, false, errors.New("unused")
}

func (f *fakeJobs) Dispatch(dbctx.Context, *types.JobRun) error { return nil }

func (f *fakeJobs) Get(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, []*types.JobRunEvent, error) {
	if f.job == nil || f.job.ID != id {
		return nil, nil, nil
	}
	return f.job, f.events, nil
}

func router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v body=%s", err, rec.Body.String())
	}
	return env.Error.Code
}

func TestReportHandler(t *testing.T) {
	fake := &fakeReports{stored: map[string]*reports.Report{"2024-03": {Month: "2024-03"}}}
	h := NewReportHandler(fake)
	r := router()
	r.POST("/reports/:month", h.Generate)
	r.GET("/reports/:month", h.GetReport)

	if rec := serve(r, http.MethodPost, "/reports/2024-03"); rec.Code != http.StatusOK {
		t.Fatalf("sync generate: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(fake.generated) != 1 || fake.generated[0] != "2024-03" {
		t.Fatalf("generated: got=%v", fake.generated)
	}

	if rec := serve(r, http.MethodPost, "/reports/2024-03?async=true"); rec.Code != http.StatusAccepted {
		t.Fatalf("async generate: want=202 got=%d", rec.Code)
	}
	if len(fake.enqueued) != 1 {
		t.Fatalf("enqueued: got=%v", fake.enqueued)
	}

	rec := serve(r, http.MethodPost, "/reports/2024-13")
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_month" {
		t.Fatalf("bad month: status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = serve(r, http.MethodPost, "/reports/2024-03?async=maybe")
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_async" {
		t.Fatalf("bad async: status=%d body=%s", rec.Code, rec.Body.String())
	}

	if rec := serve(r, http.MethodGet, "/reports/2024-03"); rec.Code != http.StatusOK {
		t.Fatalf("get stored: want=200 got=%d", rec.Code)
	}
	rec = serve(r, http.MethodGet, "/reports/2024-04")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "report_not_found" {
		t.Fatalf("get missing: status=%d body=%s", rec.Code, rec.Body.String())
	}

	fake.err = errors.New("db down")
	rec = serve(r, http.MethodPost, "/reports/2024-03")
	if rec.Code != http.StatusInternalServerError || errorCode(t, rec) != "generate_report_failed" {
		t.Fatalf("generate failure: status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestPurchaseHandler(t *testing.T) {
	known := uuid.New()
	fake := &fakePurchases{purchases: map[uuid.UUID]*types.Purchase{known: {ID: known}}}
	h := NewPurchaseHandler(fake)
	r := router()
	r.GET("/purchases/:id", h.GetPurchase)
	r.POST("/purchases/:id/revalidate", h.Revalidate)

	if rec := serve(r, http.MethodGet, "/purchases/"+known.String()); rec.Code != http.StatusOK {
		t.Fatalf("get: want=200 got=%d", rec.Code)
	}
	if rec := serve(r, http.MethodGet, "/purchases/not-a-uuid"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: want=400 got=%d", rec.Code)
	}
	if rec := serve(r, http.MethodGet, "/purchases/"+uuid.NewString()); rec.Code != http.StatusNotFound {
		t.Fatalf("missing: want=404 got=%d", rec.Code)
	}

	if rec := serve(r, http.MethodPost, "/purchases/"+known.String()+"/revalidate"); rec.Code != http.StatusAccepted {
		t.Fatalf("revalidate: want=202 got=%d", rec.Code)
	}
	if len(fake.requeued) != 1 || fake.requeued[0] != known {
		t.Fatalf("requeued: got=%v", fake.requeued)
	}
	if rec := serve(r, http.MethodPost, "/purchases/"+uuid.NewString()+"/revalidate"); rec.Code != http.StatusNotFound {
		t.Fatalf("revalidate missing: want=404 got=%d", rec.Code)
	}
	if len(fake.requeued) != 1 {
		t.Fatalf("missing purchase must not enqueue: got=%v", fake.requeued)
	}
}

func TestJobHandler(t *testing.T) {
	job := &types.JobRun{ID: uuid.New(), JobType: "purchase_validate", Status: types.JobStatusExhausted, Attempts: 5}
	fake := &fakeJobs{job: job, events: []*types.JobRunEvent{{JobID: job.ID, Kind: "exhausted", Attempt: 5}}}
	r := router()
	r.GET("/jobs/:id", NewJobHandler(fake).GetJob)

	rec := serve(r, http.MethodGet, "/jobs/"+job.ID.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("get: want=200 got=%d", rec.Code)
	}
	var body struct {
		Job    types.JobRun        `json:"job"`
		Events []types.JobRunEvent `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Job.ID != job.ID || len(body.Events) != 1 {
		t.Fatalf("body: job=%s events=%d", body.Job.ID, len(body.Events))
	}

	if rec := serve(r, http.MethodGet, "/jobs/"+uuid.NewString()); rec.Code != http.StatusNotFound {
		t.Fatalf("missing: want=404 got=%d", rec.Code)
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	var down bool
	h := NewHealthHandler(pingFunc(func(context.Context) error {
		if down {
			return errors.New("connection refused")
		}
		return nil
	}))
	r := router()
	r.GET("/healthcheck", h.HealthCheck)
	r.GET("/readyz", h.Ready)

	if rec := serve(r, http.MethodGet, "/healthcheck"); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: status=%d body=%q", rec.Code, rec.Body.String())
	}
	if rec := serve(r, http.MethodGet, "/readyz"); rec.Code != http.StatusOK {
		t.Fatalf("ready: want=200 got=%d", rec.Code)
	}
	down = true
	rec := serve(r, http.MethodGet, "/readyz")
	if rec.Code != http.StatusServiceUnavailable || errorCode(t, rec) != "db_unavailable" {
		t.Fatalf("not ready: status=%d body=%s", rec.Code, rec.Body.String())
	}
	// Liveness does not depend on the database.
	if rec := serve(r, http.MethodGet, "/healthcheck"); rec.Code != http.StatusOK {
		t.Fatalf("healthcheck while db down: want=200 got=%d", rec.Code)
	}
}
