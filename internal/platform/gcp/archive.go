package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

type ArchiveConfig struct {
	Bucket string
	// EmulatorHost points the client at a fake-gcs server without credentials.
	EmulatorHost string
	Prefix       string
	// Credentials is a service-account JSON document or a path to one. Empty
	// uses application default credentials.
	Credentials string
}

// ReportArchive writes immutable JSON snapshots to a GCS bucket.
type ReportArchive struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
	prefix string
}

func NewReportArchive(ctx context.Context, log *logger.Logger, cfg ArchiveConfig) (*ReportArchive, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	var opts []option.ClientOption
	if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
		opts = append(opts, option.WithoutAuthentication(), option.WithEndpoint(host+"/storage/v1/"))
	} else {
		opts = append(credentialOptions(cfg.Credentials), option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if prefix == "" {
		prefix = "reports"
	}
	serviceLog := log.With("service", "ReportArchive")
	serviceLog.Info("report archive initialized", "bucket", bucket, "prefix", prefix, "emulator_host", cfg.EmulatorHost)
	return &ReportArchive{log: serviceLog, client: client, bucket: bucket, prefix: prefix}, nil
}

// ObjectKey returns the object name used for a month.
func (a *ReportArchive) ObjectKey(month string) string {
	return a.prefix + "/" + month + ".json"
}

func (a *ReportArchive) Put(ctx context.Context, month string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(a.ObjectKey(month)).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := io.Copy(w, bytes.NewReader(payload)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write report to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (a *ReportArchive) Close() error {
	return a.client.Close()
}

func credentialOptions(creds string) []option.ClientOption {
	creds = strings.TrimSpace(creds)
	switch {
	case creds == "":
		return nil
	case strings.HasPrefix(creds, "{"):
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	default:
		return []option.ClientOption{option.WithCredentialsFile(creds)}
	}
}
