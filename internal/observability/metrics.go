package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/platform/envutil"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec

	jobAttempts *CounterVec
	jobDuration *HistogramVec
	queueDepth  *GaugeVec

	validations   *CounterVec
	storeVerifies *CounterVec

	reportRuns       *CounterVec
	reportReconciled *GaugeVec

	pgStats *GaugeVec
	redisUp *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool { return envutil.Bool("METRICS_ENABLED", false) }

// Current returns the process metrics, or nil when Init was never called.
// Every method is safe on a nil receiver.
func Current() *Metrics { return instance }

func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		instance = New()
		log.Info("metrics initialized")
	})
	return instance
}

func New() *Metrics {
	latency := []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	return &Metrics{
		apiRequests: NewCounterVec("ciap_api_requests_total", "Admin API requests.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("ciap_api_latency_seconds", "Admin API latency.", []string{"method", "route"}, latency),

		jobAttempts: NewCounterVec("ciap_job_attempts_total", "Job attempts by outcome.", []string{"job_type", "disposition"}),
		jobDuration: NewHistogramVec("ciap_job_duration_seconds", "Job attempt duration.", []string{"job_type"}, latency),
		queueDepth:  NewGaugeVec("ciap_job_queue_depth", "Jobs by status.", []string{"status"}),

		validations:   NewCounterVec("ciap_purchase_validations_total", "Purchase validations by outcome.", []string{"outcome"}),
		storeVerifies: NewCounterVec("ciap_store_verifications_total", "Store proof verifications.", []string{"proof", "result"}),

		reportRuns:       NewCounterVec("ciap_report_runs_total", "Monthly report runs.", []string{"status"}),
		reportReconciled: NewGaugeVec("ciap_report_reconciled", "1 when the month's donation ledger matches its purchases.", []string{"month"}),

		pgStats: NewGaugeVec("ciap_db_pool", "database/sql pool stats.", []string{"stat"}),
		redisUp: NewGaugeVec("ciap_redis_up", "Redis connectivity (1=up, 0=down).", []string{"role"}),
	}
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) ObserveJob(jobType, disposition string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobAttempts.Inc(jobType, disposition)
	m.jobDuration.Observe(dur.Seconds(), jobType)
}

func (m *Metrics) IncValidation(outcome string) {
	if m == nil {
		return
	}
	m.validations.Inc(outcome)
}

func (m *Metrics) IncStoreVerification(proof, result string) {
	if m == nil {
		return
	}
	m.storeVerifies.Inc(proof, result)
}

func (m *Metrics) ObserveReport(month string, reconciled bool, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.reportRuns.Inc("error")
		return
	}
	m.reportRuns.Inc("ok")
	v := 0.0
	if reconciled {
		v = 1
	}
	m.reportReconciled.Set(v, month)
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency,
		m.jobAttempts, m.jobDuration, m.queueDepth,
		m.validations, m.storeVerifies,
		m.reportRuns, m.reportReconciled,
		m.pgStats, m.redisUp,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

// StartServer exposes /metrics on its own listener so it never shares the
// admin surface or its auth.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil || addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", m.WriteHTTP)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
}

func scrapeInterval() time.Duration {
	return envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 15*time.Second)
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go every(ctx, scrapeInterval(), func() {
		sqlDB, err := db.DB()
		if err != nil {
			log.Warn("metrics: db stats unavailable", "error", err)
			return
		}
		stats := sqlDB.Stats()
		m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
		m.pgStats.Set(float64(stats.InUse), "in_use")
		m.pgStats.Set(float64(stats.Idle), "idle")
		m.pgStats.Set(float64(stats.WaitCount), "wait_count")
		m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
	})
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb goredis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go every(ctx, scrapeInterval(), func() {
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0, "lease")
			log.Warn("metrics: redis ping failed", "error", err)
			return
		}
		m.redisUp.Set(1, "lease")
	})
}

func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	statuses := []string{
		types.JobStatusQueued, types.JobStatusRunning, types.JobStatusRetrying,
		types.JobStatusSucceeded, types.JobStatusFailed, types.JobStatusExhausted,
	}
	go every(ctx, scrapeInterval(), func() {
		var rows []struct {
			Status string
			Count  int64
		}
		if err := db.WithContext(ctx).
			Model(&types.JobRun{}).
			Select("status, count(*) as count").
			Group("status").
			Scan(&rows).Error; err != nil {
			log.Warn("metrics: job queue depth query failed", "error", err)
			return
		}
		for _, s := range statuses {
			m.queueDepth.Set(0, s)
		}
		for _, row := range rows {
			m.queueDepth.Set(float64(row.Count), row.Status)
		}
	})
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
