package store

import (
	"context"
	"errors"
	"testing"

	"captchahub/internal/platform/store/ch"
)

type fakeCHRows struct {
	nexts  int
	closed bool
}

func (f *fakeCHRows) Next() bool             { f.nexts++; return f.nexts == 1 }
func (f *fakeCHRows) Scan(dest ...any) error { *(dest[0].(*uint64)) = 42; return nil }
func (f *fakeCHRows) Err() error             { return nil }
func (f *fakeCHRows) Close() error           { f.closed = true; return nil }
func (f *fakeCHRows) Columns() []string      { return []string{"task_id", "kind"} }

type fakeCH struct {
	table  string
	rows   [][]any
	rs     *fakeCHRows
	err    error
	pinged bool
	shut   bool
}

func (f *fakeCH) Insert(_ context.Context, table string, rows [][]any) error {
	f.table, f.rows = table, rows
	return f.err
}

func (f *fakeCH) Query(context.Context, string, ...any) (ch.Rows, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rs, nil
}

func (f *fakeCH) Ping(context.Context) error { f.pinged = true; return f.err }
func (f *fakeCH) Close() error               { f.shut = true; return nil }

func TestCHStore_Insert(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		data any
		rows int
		ok   bool
	}{
		{"batch", [][]any{{uint64(1), "registered"}, {uint64(1), "solved"}}, 2, true},
		{"single row", []any{uint64(2), "timeout"}, 1, true},
		{"struct", struct{}{}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := &fakeCH{}
			err := (&chStore{conn: f}).Insert(context.Background(), "captcha_events", tc.data)
			if (err == nil) != tc.ok || len(f.rows) != tc.rows {
				t.Fatalf("err=%v rows=%v", err, f.rows)
			}
			if tc.ok && f.table != "captcha_events" {
				t.Fatalf("table = %q", f.table)
			}
		})
	}
}

func TestCHStore_Query(t *testing.T) {
	t.Parallel()
	rs := &fakeCHRows{}
	rows, err := (&chStore{conn: &fakeCH{rs: rs}}).Query(context.Background(), "SELECT task_id FROM captcha_events")
	if err != nil {
		t.Fatal(err)
	}
	if cols := rows.Columns(); len(cols) != 2 || cols[0] != "task_id" {
		t.Fatalf("columns = %v", cols)
	}
	var id uint64
	if !rows.Next() || rows.Scan(&id) != nil || id != 42 {
		t.Fatalf("id = %d", id)
	}
	rows.Close()
	if !rs.closed {
		t.Fatal("close should reach the driver rows")
	}

	boom := errors.New("boom")
	if rows, err := (&chStore{conn: &fakeCH{err: boom}}).Query(context.Background(), "SELECT 1"); !errors.Is(err, boom) || rows != nil {
		t.Fatalf("rows=%v err=%v", rows, err)
	}
}

func TestCHStore_PingClose(t *testing.T) {
	t.Parallel()
	f := &fakeCH{}
	s := &chStore{conn: f}
	if err := s.Ping(context.Background()); err != nil || !f.pinged {
		t.Fatalf("ping = %v", err)
	}
	if err := s.Close(); err != nil || !f.shut {
		t.Fatalf("close = %v", err)
	}
	var unset *chStore
	if unset.Ping(context.Background()) == nil {
		t.Fatal("nil store must fail ping")
	}
}
