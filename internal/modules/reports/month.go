package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const monthLayout = "2006-01"

var ErrInvalidMonth = errors.New("month must be formatted as YYYY-MM")

// ParseMonth returns the UTC start of the month and its canonical key.
func ParseMonth(raw string) (time.Time, string, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.ParseInLocation(monthLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %q", ErrInvalidMonth, raw)
	}
	return t, t.Format(monthLayout), nil
}

// PreviousMonth returns the key of the calendar month before now, in UTC.
func PreviousMonth(now time.Time) string {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -1, 0).Format(monthLayout)
}

// Bounds returns [start, end) for the month starting at start.
func Bounds(start time.Time) (time.Time, time.Time) {
	start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
