package redislock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

func dialOrSkip(t *testing.T) *Locker {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	l, err := Dial(context.Background(), logger.Nop(), addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAcquireIsExclusive(t *testing.T) {
	l := dialOrSkip(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	release, ok, err := l.Acquire(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, err := l.Acquire(ctx, key, time.Minute); err != nil || ok {
		t.Fatalf("second Acquire: want held got ok=%v err=%v", ok, err)
	}
	release()
	release2, ok, err := l.Acquire(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire after release: ok=%v err=%v", ok, err)
	}
	release2()
}

func TestReleaseKeepsForeignLease(t *testing.T) {
	l := dialOrSkip(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	release, ok, err := l.Acquire(ctx, key, 50*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("Acquire: ok=%v err=%v", ok, err)
	}
	time.Sleep(100 * time.Millisecond)
	other, ok, err := l.Acquire(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire after expiry: ok=%v err=%v", ok, err)
	}
	defer other()

	// The first holder's late release must not drop the new lease.
	release()
	if _, ok, _ := l.Acquire(ctx, key, time.Minute); ok {
		t.Fatalf("foreign lease was released")
	}
}

func TestAcquireUninitialized(t *testing.T) {
	var l *Locker
	if _, _, err := l.Acquire(context.Background(), "k", time.Second); err == nil {
		t.Fatalf("Acquire on nil locker: expected error")
	}
}
