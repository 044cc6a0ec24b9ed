package db

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yungbote/charity-iap-backend/internal/platform/retry"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("update: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"connection", &pgconn.PgError{Code: "08006"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"bad conn", driver.ErrBadConn, true},
		{"sqlite busy", errors.New("database is locked"), true},
		{"plain", errors.New("syntax error"), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}

func TestClassify(t *testing.T) {
	if !retry.IsRetryable(Classify(&pgconn.PgError{Code: "40001"})) {
		t.Fatalf("serialization failure should be retryable")
	}
	if retry.IsRetryable(Classify(&pgconn.PgError{Code: "23505"})) {
		t.Fatalf("unique violation should not be retryable")
	}
	if Classify(nil) != nil {
		t.Fatalf("Classify(nil) should be nil")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("23505 should be a unique violation")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: purchase.apple_transaction_id")) {
		t.Fatalf("sqlite unique error should be detected")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("serialization failure is not a unique violation")
	}
}
