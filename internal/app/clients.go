package app

import (
	"context"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/charity-iap-backend/internal/platform/apple/receipt"
	"github.com/yungbote/charity-iap-backend/internal/platform/apple/signedtoken"
	"github.com/yungbote/charity-iap-backend/internal/platform/gcp"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
	"github.com/yungbote/charity-iap-backend/internal/platform/redislock"
	"github.com/yungbote/charity-iap-backend/internal/temporalx"
)

type Clients struct {
	Receipts *receipt.Client
	Tokens   *signedtoken.Verifier

	// Optional.
	Locker   *redislock.Locker
	Archive  *gcp.ReportArchive
	Temporal temporalsdkclient.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	out.Receipts = receipt.New(receipt.Config{
		SharedSecret:  cfg.Apple.SharedSecret,
		ProductionURL: cfg.Apple.ProductionURL,
		SandboxURL:    cfg.Apple.SandboxURL,
		Timeout:       cfg.Apple.Timeout,
	}, log)

	tokenCfg := signedtoken.Config{
		Algorithms: cfg.Apple.Algorithms,
		BundleID:   cfg.Apple.BundleID,
	}
	if cfg.Apple.RootCAPEM != "" {
		pemData, err := readPEM(cfg.Apple.RootCAPEM)
		if err != nil {
			return out, fmt.Errorf("read APPLE_ROOT_CA_PEM: %w", err)
		}
		roots, err := signedtoken.RootsFromPEM(pemData)
		if err != nil {
			return out, fmt.Errorf("parse APPLE_ROOT_CA_PEM: %w", err)
		}
		tokenCfg.Roots = roots
	} else {
		log.Warn("APPLE_ROOT_CA_PEM not set; signed tokens are checked against their own x5c leaf only")
	}
	out.Tokens = signedtoken.New(tokenCfg)

	if cfg.RedisAddr != "" {
		locker, err := redislock.Dial(ctx, log, cfg.RedisAddr)
		if err != nil {
			return out, fmt.Errorf("init redis lease: %w", err)
		}
		out.Locker = locker
	}

	if cfg.Archive.Bucket != "" {
		archive, err := gcp.NewReportArchive(ctx, log, gcp.ArchiveConfig{
			Bucket:       cfg.Archive.Bucket,
			Prefix:       cfg.Archive.Prefix,
			EmulatorHost: cfg.Archive.EmulatorHost,
			Credentials:  cfg.Archive.Credentials,
		})
		if err != nil {
			out.close(log)
			return Clients{}, fmt.Errorf("init report archive: %w", err)
		}
		out.Archive = archive
	}

	if cfg.Jobs.Backend == JobBackendTemporal {
		tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
		if err != nil {
			out.close(log)
			return Clients{}, fmt.Errorf("init temporal client: %w", err)
		}
		out.Temporal = tc
	}

	return out, nil
}

func (c Clients) close(log *logger.Logger) {
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Archive != nil {
		if err := c.Archive.Close(); err != nil {
			log.Warn("report archive close failed", "error", err)
		}
	}
	if c.Locker != nil {
		if err := c.Locker.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
}
