package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	base := errors.New("boom")
	if IsRetryable(base) {
		t.Fatalf("plain error should not be retryable")
	}
	if IsRetryable(nil) {
		t.Fatalf("nil should not be retryable")
	}
	wrapped := fmt.Errorf("verify: %w", Retryable(base))
	if !IsRetryable(wrapped) {
		t.Fatalf("wrapped transient error should be retryable")
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("transient error should unwrap to cause")
	}
	if !IsRetryable(fmt.Errorf("call: %w", context.DeadlineExceeded)) {
		t.Fatalf("deadline exceeded should be retryable")
	}
	if Retryable(nil) != nil {
		t.Fatalf("Retryable(nil) should be nil")
	}
}

func TestScheduleDelay(t *testing.T) {
	s := DefaultSchedule()
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 10 * time.Second},
		{3, time.Minute},
		{4, 5 * time.Minute},
		{5, 30 * time.Minute},
		{9, 30 * time.Minute},
	}
	for _, tc := range cases {
		if got := s.Delay(tc.attempt); got != tc.want {
			t.Fatalf("Delay(%d): want=%s got=%s", tc.attempt, tc.want, got)
		}
	}
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("2s, 20s ,3m")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	if s.String() != "2s,20s,3m0s" {
		t.Fatalf("schedule: want=%q got=%q", "2s,20s,3m0s", s.String())
	}
	if _, err := ParseSchedule("1s,soon"); err == nil {
		t.Fatalf("expected parse error")
	}
	def, err := ParseSchedule("")
	if err != nil || len(def) != 5 {
		t.Fatalf("empty should yield default schedule, got=%v err=%v", def, err)
	}
}
