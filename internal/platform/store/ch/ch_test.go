package ch

import (
	"context"
	"errors"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// fakeBatch embeds the interface so only the methods Insert uses need bodies
type fakeBatch struct {
	driver.Batch
	rows      [][]any
	appendErr error
	sent      bool
	aborted   bool
}

func (b *fakeBatch) Append(v ...any) error {
	if b.appendErr != nil {
		return b.appendErr
	}
	b.rows = append(b.rows, v)
	return nil
}
func (b *fakeBatch) Send() error  { b.sent = true; return nil }
func (b *fakeBatch) Abort() error { b.aborted = true; return nil }

type fakeConn struct {
	batch    *fakeBatch
	query    string
	queryErr error
	closed   bool
}

func (c *fakeConn) PrepareBatch(_ context.Context, q string, _ ...driver.PrepareBatchOption) (driver.Batch, error) {
	c.query = q
	return c.batch, nil
}

func (c *fakeConn) Query(context.Context, string, ...any) (driver.Rows, error) {
	return nil, c.queryErr
}

func (c *fakeConn) Ping(context.Context) error { return nil }
func (c *fakeConn) Close() error               { c.closed = true; return nil }

// TestOpen parses the DSN without dialing
func TestOpen(t *testing.T) {
	t.Parallel()

	cl, err := Open(context.Background(), Config{URL: "clickhouse://localhost:9000/default", Role: "test"})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if cl == nil {
		t.Fatal("Open returned nil client")
	}
	_ = cl.Close()
}

func TestOpen_BadDSN(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{URL: "://nope"}); err == nil {
		t.Fatal("expected dsn error")
	}
}

func TestInsert_BatchesRows(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{batch: &fakeBatch{}}
	c := New(fc)

	rows := [][]any{{"a", 1}, {"b", 2}}
	if err := c.Insert(context.Background(), "captcha.events", rows); err != nil {
		t.Fatal(err)
	}
	if fc.query != "INSERT INTO captcha.events" {
		t.Fatalf("query = %q", fc.query)
	}
	if len(fc.batch.rows) != 2 || !fc.batch.sent {
		t.Fatalf("batch = %+v", fc.batch)
	}
}

func TestInsert_AppendFailureAborts(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{batch: &fakeBatch{appendErr: errors.New("type mismatch")}}
	c := New(fc)

	if err := c.Insert(context.Background(), "events", [][]any{{1}}); err == nil {
		t.Fatal("expected append error")
	}
	if !fc.batch.aborted || fc.batch.sent {
		t.Fatalf("batch = %+v", fc.batch)
	}
}

func TestInsert_EmptyAndBadTable(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{}
	c := New(fc)

	if err := c.Insert(context.Background(), "events", nil); err != nil {
		t.Fatalf("empty insert: %v", err)
	}
	if fc.query != "" {
		t.Fatal("empty insert must not prepare a batch")
	}
	for _, name := range []string{"", "a;drop", "db..t", "x y"} {
		if err := c.Insert(context.Background(), name, [][]any{{1}}); err == nil {
			t.Fatalf("table %q accepted", name)
		}
	}
}

func TestQuery_PropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	c := New(&fakeConn{queryErr: boom})
	rows, err := c.Query(context.Background(), "SELECT 1")
	if !errors.Is(err, boom) || rows != nil {
		t.Fatalf("rows=%v err=%v", rows, err)
	}
}

func TestClose_Delegates(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{}
	if err := New(fc).Close(); err != nil || !fc.closed {
		t.Fatalf("closed=%v err=%v", fc.closed, err)
	}
}
