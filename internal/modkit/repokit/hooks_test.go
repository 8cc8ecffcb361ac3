package repokit

import (
	"context"
	"errors"
	"testing"
	"time"

	"captchahub/internal/platform/store"
)

type tag struct{}

func (tag) String() string      { return "SET" }
func (tag) RowsAffected() int64 { return 0 }

// recDB logs statements and whether they ran inside Tx
type recDB struct {
	log  []string
	inTx bool
	err  error
}

func (r *recDB) Exec(_ context.Context, sql string, _ ...any) (store.CommandTag, error) {
	if r.inTx {
		sql = "tx: " + sql
	}
	r.log = append(r.log, sql)
	return tag{}, r.err
}
func (r *recDB) Query(context.Context, string, ...any) (store.Rows, error) { return nil, nil }
func (r *recDB) QueryRow(context.Context, string, ...any) store.Row        { return nil }
func (r *recDB) Tx(ctx context.Context, fn func(Queryer) error) error {
	r.inTx = true
	defer func() { r.inTx = false }()
	return fn(r)
}

func TestWithBeginHooks(t *testing.T) {
	t.Parallel()
	db := &recDB{}
	wrapped := WithBeginHooks(db, LockTimeout(2*time.Second), func(ctx context.Context, q Queryer) error {
		_, err := q.Exec(ctx, "SET LOCAL application_name = 'ledger'")
		return err
	})

	err := WithTx(context.Background(), wrapped, func(q Queryer) error {
		_, err := q.Exec(context.Background(), "DELETE FROM captcha_events")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wrapped.Exec(context.Background(), "SELECT 1"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"tx: SET LOCAL lock_timeout = '2000ms'",
		"tx: SET LOCAL application_name = 'ledger'",
		"tx: DELETE FROM captcha_events",
		"SELECT 1",
	}
	if len(db.log) != len(want) {
		t.Fatalf("log = %q", db.log)
	}
	for i := range want {
		if db.log[i] != want[i] {
			t.Fatalf("stmt %d = %q, want %q", i, db.log[i], want[i])
		}
	}
}

func TestWithBeginHooks_HookErrorSkipsFn(t *testing.T) {
	t.Parallel()
	boom := errors.New("permission denied")
	db := &recDB{err: boom}
	ran := false
	err := WithBeginHooks(db, LockTimeout(time.Second)).Tx(context.Background(), func(Queryer) error {
		ran = true
		return nil
	})
	if !errors.Is(err, boom) || ran {
		t.Fatalf("err = %v ran = %v", err, ran)
	}
	if WithBeginHooks(db) != TxRunner(db) {
		t.Fatal("no hooks should return inner")
	}
}

func TestBindFunc(t *testing.T) {
	t.Parallel()
	db := &recDB{}
	b := BindFunc[int](func(q Queryer) int {
		if q != Queryer(db) {
			t.Fatal("wrong queryer")
		}
		return 7
	})
	if b.Bind(db) != 7 {
		t.Fatal("bind")
	}
}
