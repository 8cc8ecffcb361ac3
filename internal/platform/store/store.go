// Package store opens the optional postgres and clickhouse backends behind small seams
package store

import (
	"context"
	"errors"
	"fmt"

	"captchahub/internal/platform/logger"
)

// Store holds whichever backends are enabled, a nil seam means disabled
type Store struct {
	Log logger.Logger
	PG  TxRunner
	CH  Clickhouse
}

type (
	// Row is a single result awaiting Scan
	Row interface {
		Scan(dest ...any) error
	}

	// Rows is a result set, Close must be called once iteration stops
	Rows interface {
		Row
		Next() bool
		Err() error
		Close()
		Columns() []string
	}

	// CommandTag reports what an Exec touched
	CommandTag interface {
		String() string
		RowsAffected() int64
	}
)

// RowQuerier runs statements, repos are written against it
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner is a RowQuerier that can also run fn inside a transaction
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Clickhouse appends rows to and reads from columnar tables
type Clickhouse interface {
	Insert(ctx context.Context, table string, data any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Close() error
}

// Pinger reports backend reachability
type Pinger interface{ Ping(context.Context) error }

// Open connects every backend enabled in cfg, the others stay nil
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	s.Log = s.Log.With().Logger()

	if cfg.PG.Enabled {
		p, err := openPG(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.PG = p
	}
	if cfg.CH.Enabled {
		c, err := openCH(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.CH = c
	}
	return s, nil
}

// seams lists the configured backends by name
func (s *Store) seams() map[string]any {
	out := map[string]any{}
	if s.PG != nil {
		out["pg"] = s.PG
	}
	if s.CH != nil {
		out["ch"] = s.CH
	}
	return out
}

// Guard pings every configured backend that can be pinged
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	for name, seam := range s.seams() {
		if p, ok := seam.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every configured backend and joins their errors
func (s *Store) Close(context.Context) error {
	var errs []error
	for name, seam := range s.seams() {
		if c, ok := seam.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
