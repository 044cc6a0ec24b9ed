// Package retry tags errors as transient and describes the escalating delay
// schedule the job queue applies between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type retryable interface {
	Retryable() bool
}

type transientError struct {
	err error
}

func (e *transientError) Error() string   { return e.err.Error() }
func (e *transientError) Unwrap() error   { return e.err }
func (e *transientError) Retryable() bool { return true }

// Retryable marks err as transient. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	if IsRetryable(err) {
		return err
	}
	return &transientError{err: err}
}

// Retryablef formats a new transient error.
func Retryablef(format string, args ...interface{}) error {
	return &transientError{err: fmt.Errorf(format, args...)}
}

// IsRetryable reports whether any error in the chain declares itself transient.
// Context expiry counts as transient so that interrupted attempts are rescheduled.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

// Schedule holds the delay before attempt n+1, indexed by n-1.
type Schedule []time.Duration

func DefaultSchedule() Schedule {
	return Schedule{
		1 * time.Second,
		10 * time.Second,
		1 * time.Minute,
		5 * time.Minute,
		30 * time.Minute,
	}
}

// ParseSchedule reads a comma-separated list of Go durations, e.g. "1s,10s,1m".
func ParseSchedule(raw string) (Schedule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultSchedule(), nil
	}
	var out Schedule
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("parse backoff %q: %w", part, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("negative backoff %q", part)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, errors.New("empty backoff schedule")
	}
	return out, nil
}

// Delay returns the wait after the given 1-based failed attempt. Attempts past
// the end of the schedule reuse the last entry.
func (s Schedule) Delay(attempt int) time.Duration {
	if len(s) == 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(s) {
		return s[len(s)-1]
	}
	return s[attempt-1]
}

func (s Schedule) String() string {
	parts := make([]string, 0, len(s))
	for _, d := range s {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, ",")
}
