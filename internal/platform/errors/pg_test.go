package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestFromPostgres(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		err   error
		code  ErrorCode
		field string
	}{
		{"unique", &pgconn.PgError{Code: "23505"}, ErrorCodeDuplicateKey, ""},
		{"not null names column", &pgconn.PgError{Code: "23502", ColumnName: "task_id"}, ErrorCodeValidation, "task_id"},
		{"bad timestamp", fmt.Errorf("scan: %w", &pgconn.PgError{Code: "22007"}), ErrorCodeInvalidArgument, ""},
		{"read only", &pgconn.PgError{Code: "25006"}, ErrorCodeUnavailable, ""},
		{"unmapped sqlstate", &pgconn.PgError{Code: "42P01"}, ErrorCodeDB, ""},
		{"driver error", stderrs.New("conn closed"), ErrorCodeDB, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := FromPostgres(tc.err, "write %d events", 3)
			e, ok := As(err)
			if !ok || e.Code() != tc.code || e.Field() != tc.field {
				t.Fatalf("got %#v", err)
			}
			if !stderrs.Is(err, tc.err) {
				t.Fatal("cause should stay reachable")
			}
			if e.msg != "write 3 events" {
				t.Fatalf("msg = %q", e.msg)
			}
		})
	}
	if FromPostgres(nil, "noop") != nil {
		t.Fatal("nil stays nil")
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&pgconn.PgError{Code: "40001"}, true},
		{FromPostgres(&pgconn.PgError{Code: "40P01"}, "flush"), true},
		{&pgconn.PgError{Code: "23505"}, false},
		{stderrs.New("ERROR: could not serialize access due to concurrent update"), true},
		{fmt.Errorf("commit: %w", stderrs.New("commit unexpectedly resulted in rollback")), true},
		{context.DeadlineExceeded, false},
		{fmt.Errorf("flush: %w", context.Canceled), false},
		{stderrs.New("syntax error"), false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
