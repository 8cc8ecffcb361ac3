package store

import (
	"context"
	"errors"
	"fmt"

	"captchahub/internal/platform/store/ch"
)

// chConn is what the store needs from *ch.CH
type chConn interface {
	Insert(ctx context.Context, table string, rows [][]any) error
	Query(ctx context.Context, sql string, args ...any) (ch.Rows, error)
	Ping(ctx context.Context) error
	Close() error
}

// chStore serves the Clickhouse seam over a clickhouse client
type chStore struct{ conn chConn }

var _ Clickhouse = (*chStore)(nil)

func newCHAdapter(c *ch.CH) Clickhouse { return &chStore{conn: c} }

// Insert takes a batch as [][]any or a single row as []any
func (s *chStore) Insert(ctx context.Context, table string, data any) error {
	switch v := data.(type) {
	case [][]any:
		return s.conn.Insert(ctx, table, v)
	case []any:
		return s.conn.Insert(ctx, table, [][]any{v})
	default:
		return fmt.Errorf("ch insert into %s: unsupported row shape %T", table, data)
	}
}

func (s *chStore) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return chRows{r}, nil
}

func (s *chStore) Ping(ctx context.Context) error {
	if s == nil || s.conn == nil {
		return errors.New("ch: not connected")
	}
	return s.conn.Ping(ctx)
}

func (s *chStore) Close() error { return s.conn.Close() }

// chRows drops the Close error so ch.Rows satisfies Rows
type chRows struct{ ch.Rows }

func (r chRows) Close() { _ = r.Rows.Close() }
