package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"captchahub/internal/platform/store"
	"captchahub/internal/services/ledger/domain"
)

type fakeCH struct {
	table string
	rows  [][]any
}

func (f *fakeCH) Insert(_ context.Context, table string, data any) error {
	f.table = table
	f.rows = data.([][]any)
	return nil
}

func (f *fakeCH) Query(context.Context, string, ...any) (store.Rows, error) { return nil, nil }
func (f *fakeCH) Close() error                                             { return nil }

func TestCHSink_Write(t *testing.T) {
	t.Parallel()
	ch := &fakeCH{}
	s := NewCHSink(ch, "")

	if err := s.Write(context.Background(), nil); err != nil || ch.table != "" {
		t.Fatalf("empty batch should be a no-op: %v %q", err, ch.table)
	}

	id := uuid.New()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := s.Write(context.Background(), []domain.Record{{ID: id, Kind: "result", TaskID: "9", ResultType: "positional", At: at}})
	if err != nil {
		t.Fatal(err)
	}
	if ch.table != "captcha_events" || len(ch.rows) != 1 {
		t.Fatalf("table = %q rows = %v", ch.table, ch.rows)
	}
	row := ch.rows[0]
	if row[0] != id || row[1] != "result" || row[2] != "9" || row[3] != "positional" || row[6] != at {
		t.Fatalf("row = %v", row)
	}
}
