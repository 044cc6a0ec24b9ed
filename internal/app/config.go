package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/charity-iap-backend/internal/billing/split"
	"github.com/yungbote/charity-iap-backend/internal/platform/envutil"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
	"github.com/yungbote/charity-iap-backend/internal/platform/retry"
	"github.com/yungbote/charity-iap-backend/internal/services"
	"github.com/yungbote/charity-iap-backend/internal/temporalx"
)

const (
	JobBackendDB       = "db"
	JobBackendTemporal = "temporal"
)

type AppleConfig struct {
	SharedSecret  string
	ProductionURL string
	SandboxURL    string
	Timeout       time.Duration
	BundleID      string
	// RootCAPEM is a PEM bundle, inline or a path to one.
	RootCAPEM  string
	Algorithms []string
}

type JobsConfig struct {
	Backend      string
	Concurrency  int
	MaxAttempts  int
	Schedule     retry.Schedule
	StaleRunning time.Duration
	PollInterval time.Duration
}

type ArchiveConfig struct {
	Bucket       string
	Prefix       string
	EmulatorHost string
	Credentials  string
}

type Config struct {
	Env         string
	Port        string
	AdminToken  string
	CORSOrigins []string
	MetricsAddr string

	Rates split.Rates
	Apple AppleConfig
	Jobs  JobsConfig

	ReportInterval    time.Duration
	ReportFinalRunDay int
	Archive           ArchiveConfig

	RedisAddr string
	LeaseTTL  time.Duration

	Temporal temporalx.Config
}

// revenueFile is the optional YAML overlay named by REVENUE_CONFIG_FILE.
type revenueFile struct {
	AppleFeeRate string `yaml:"apple_fee_rate"`
	DonationRate string `yaml:"donation_rate"`
}

func LoadConfig(log *logger.Logger) (Config, error) {
	rates, err := loadRates()
	if err != nil {
		return Config{}, err
	}

	schedule := retry.DefaultSchedule()
	if raw := envutil.String("JOB_BACKOFF_SCHEDULE", ""); raw != "" {
		schedule, err = retry.ParseSchedule(raw)
		if err != nil {
			return Config{}, fmt.Errorf("JOB_BACKOFF_SCHEDULE: %w", err)
		}
	}

	backend := strings.ToLower(envutil.String("JOB_BACKEND", JobBackendDB))
	if backend != JobBackendDB && backend != JobBackendTemporal {
		return Config{}, fmt.Errorf("JOB_BACKEND must be %q or %q, got %q", JobBackendDB, JobBackendTemporal, backend)
	}

	cfg := Config{
		Env:         envutil.String("APP_ENV", "development"),
		Port:        envutil.String("PORT", "8080"),
		AdminToken:  envutil.String("ADMIN_API_TOKEN", ""),
		CORSOrigins: envutil.List("CORS_ALLOW_ORIGINS", nil),
		MetricsAddr: envutil.String("METRICS_ADDR", ":9090"),

		Rates: rates,
		Apple: AppleConfig{
			SharedSecret:  envutil.String("APPLE_SHARED_SECRET", ""),
			ProductionURL: envutil.String("APPLE_PRODUCTION_URL", ""),
			SandboxURL:    envutil.String("APPLE_SANDBOX_URL", ""),
			Timeout:       envutil.Seconds("APPLE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			BundleID:      envutil.String("APPLE_BUNDLE_ID", ""),
			RootCAPEM:     envutil.String("APPLE_ROOT_CA_PEM", ""),
			Algorithms:    envutil.List("SIGNED_TOKEN_ALGORITHMS", nil),
		},
		Jobs: JobsConfig{
			Backend:      backend,
			Concurrency:  envutil.Int("WORKER_CONCURRENCY", 4),
			MaxAttempts:  envutil.Int("JOB_MAX_ATTEMPTS", 5),
			Schedule:     schedule,
			StaleRunning: envutil.Seconds("JOB_STALE_RUNNING_SECONDS", 10*time.Minute),
			PollInterval: envutil.Seconds("JOB_POLL_INTERVAL_SECONDS", time.Second),
		},

		ReportInterval:    envutil.Seconds("REPORT_SCHEDULE_INTERVAL_SECONDS", time.Hour),
		ReportFinalRunDay: envutil.Int("REPORT_FINAL_RUN_DAY", services.DefaultFinalRunDay),
		Archive: ArchiveConfig{
			Bucket:       envutil.String("REPORT_ARCHIVE_BUCKET", ""),
			Prefix:       envutil.String("REPORT_ARCHIVE_PREFIX", "reports"),
			EmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", ""),
			Credentials: envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON",
				envutil.String("GOOGLE_APPLICATION_CREDENTIALS", "")),
		},

		RedisAddr: envutil.String("REDIS_ADDR", ""),
		LeaseTTL:  envutil.Seconds("VALIDATION_LEASE_SECONDS", 2*time.Minute),

		Temporal: temporalx.LoadConfig(),
	}

	if cfg.Apple.SharedSecret == "" {
		return Config{}, errors.New("APPLE_SHARED_SECRET is required")
	}
	if cfg.Jobs.Backend == JobBackendTemporal && !cfg.Temporal.Enabled() {
		return Config{}, errors.New("JOB_BACKEND=temporal requires TEMPORAL_ADDRESS")
	}
	if cfg.AdminToken == "" {
		log.Warn("ADMIN_API_TOKEN is not set; admin routes are disabled")
	}

	log.Info("Config loaded",
		"env", cfg.Env,
		"job_backend", cfg.Jobs.Backend,
		"job_max_attempts", cfg.Jobs.MaxAttempts,
		"job_schedule", cfg.Jobs.Schedule.String(),
		"apple_fee_rate", cfg.Rates.AppleFee.String(),
		"donation_rate", cfg.Rates.Donation.String(),
		"redis_lease", cfg.RedisAddr != "",
		"report_archive", cfg.Archive.Bucket != "",
	)
	return cfg, nil
}

// loadRates reads the revenue rates from REVENUE_CONFIG_FILE, then lets
// APPLE_FEE_RATE and DONATION_RATE override it. Both rates must end up set.
func loadRates() (split.Rates, error) {
	var file revenueFile
	if path := envutil.String("REVENUE_CONFIG_FILE", ""); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return split.Rates{}, fmt.Errorf("read revenue config: %w", err)
		}
		if err := yaml.Unmarshal(b, &file); err != nil {
			return split.Rates{}, fmt.Errorf("parse revenue config %s: %w", path, err)
		}
	}
	fee := envutil.String("APPLE_FEE_RATE", strings.TrimSpace(file.AppleFeeRate))
	donation := envutil.String("DONATION_RATE", strings.TrimSpace(file.DonationRate))
	if fee == "" || donation == "" {
		return split.Rates{}, errors.New("APPLE_FEE_RATE and DONATION_RATE are required (env or REVENUE_CONFIG_FILE)")
	}
	return split.ParseRates(fee, donation)
}

func readPEM(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "-----BEGIN") {
		return []byte(raw), nil
	}
	return os.ReadFile(raw)
}
