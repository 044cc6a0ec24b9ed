package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/charity-iap-backend/internal/http/handlers"
	httpMW "github.com/yungbote/charity-iap-backend/internal/http/middleware"
	"github.com/yungbote/charity-iap-backend/internal/observability"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

func TestRouterHealthAndAdminGate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.New()
	r := NewRouter(RouterConfig{
		Log:           logger.Nop(),
		Metrics:       m,
		AdminAuth:     httpMW.NewAdminAuthMiddleware(logger.Nop(), "tok"),
		HealthHandler: httpH.NewHealthHandler(nil),
		JobHandler:    httpH.NewJobHandler(nil),
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: status=%d body=%q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/jobs/not-a-uuid", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("admin without token: want=401 got=%d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/jobs/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("admin with token: want=400 got=%d", rec.Code)
	}

	var sb strings.Builder
	if err := m.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	if !strings.Contains(sb.String(), `route="/healthcheck"`) {
		t.Fatalf("api metrics missing healthcheck route:\n%s", sb.String())
	}
}

func TestRouterWithoutAdminAuthHidesAdminRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{JobHandler: httpH.NewJobHandler(nil)})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/jobs/x", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want=404 got=%d", rec.Code)
	}
}
