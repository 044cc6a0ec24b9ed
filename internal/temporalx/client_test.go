package temporalx

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

func TestClampBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 250 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, time.Second},
		{6, 5 * time.Second},
	}
	for _, tc := range cases {
		if got := clampBackoff(250*time.Millisecond, 5*time.Second, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: want=%s got=%s", tc.attempt, tc.want, got)
		}
	}
}

func TestIsRetryableRPC(t *testing.T) {
	if !isRetryableRPC(status.Error(codes.Unavailable, "down")) {
		t.Fatalf("Unavailable should be retryable")
	}
	if isRetryableRPC(status.Error(codes.PermissionDenied, "no")) {
		t.Fatalf("PermissionDenied should not be retryable")
	}
	if !isRetryableRPC(context.DeadlineExceeded) {
		t.Fatalf("deadline should be retryable")
	}
	if isRetryableRPC(errors.New("boom")) {
		t.Fatalf("plain error should not be retryable")
	}
}

func TestNewClientDisabled(t *testing.T) {
	c, err := NewClient(context.Background(), logger.Nop(), Config{})
	if c != nil || err != nil {
		t.Fatalf("NewClient without address: want nil,nil got=%v,%v", c, err)
	}
}

func TestLoadTLSConfigRequiresPair(t *testing.T) {
	if _, err := loadTLSConfig(Config{ClientCAPath: "/tmp/ca.pem"}); err == nil {
		t.Fatalf("expected error without cert/key")
	}
}
