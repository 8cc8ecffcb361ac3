// Package repo provides ledger persistence for postgres and clickhouse
package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"captchahub/internal/modkit/repokit"
	perr "captchahub/internal/platform/errors"
	"captchahub/internal/platform/store"
	"captchahub/internal/services/ledger/domain"
)

// Schema creates the postgres ledger table
const Schema = `
CREATE TABLE IF NOT EXISTS captcha_events (
	id          uuid PRIMARY KEY,
	kind        text        NOT NULL,
	task_id     text        NOT NULL,
	result_type text        NOT NULL DEFAULT '',
	handler     text        NOT NULL DEFAULT '',
	detail      text        NOT NULL DEFAULT '',
	at          timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS captcha_events_at_idx ON captcha_events (at);
CREATE INDEX IF NOT EXISTS captcha_events_task_idx ON captcha_events (task_id, kind);
`

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the ledger write surface
type Storage interface {
	EnsureSchema(ctx context.Context) error
	WriteBatch(ctx context.Context, xs []domain.Record) error

	// TryLease takes a transaction scoped advisory lock, false when another process holds it
	TryLease(ctx context.Context, key int64) (bool, error)

	// PruneBefore deletes at most limit events older than cutoff
	PruneBefore(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

const cols = 7

// EnsureSchema implements Storage
func (s *pg) EnsureSchema(ctx context.Context) error {
	_, err := s.q.Exec(ctx, Schema)
	return perr.FromPostgres(err, "ledger schema")
}

// WriteBatch implements Storage
func (s *pg) WriteBatch(ctx context.Context, xs []domain.Record) error {
	if len(xs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO captcha_events
		(id, kind, task_id, result_type, handler, detail, at) VALUES `)

	args := make([]any, 0, len(xs)*cols)
	for i, r := range xs {
		if i > 0 {
			sb.WriteByte(',')
		}
		base := i*cols + 1
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base, base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, r.ID, r.Kind, r.TaskID, r.ResultType, r.Handler, r.Detail, r.At)
	}
	// replays of a flushed batch are harmless
	sb.WriteString(` ON CONFLICT (id) DO NOTHING`)
	_, err := s.q.Exec(ctx, sb.String(), args...)
	return perr.FromPostgres(err, "write %d ledger events", len(xs))
}

// TryLease implements Storage
func (s *pg) TryLease(ctx context.Context, key int64) (bool, error) {
	ok, err := store.Scalar[bool](ctx, s.q, `SELECT pg_try_advisory_xact_lock($1)`, key)
	return ok, perr.FromPostgres(err, "ledger lease")
}

// PruneBefore implements Storage
func (s *pg) PruneBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	tag, err := s.q.Exec(ctx, `
		DELETE FROM captcha_events
		 WHERE id IN (
			SELECT id FROM captcha_events
			 WHERE at < $1
			 ORDER BY at
			 LIMIT $2
		 )`, cutoff.UTC(), limit)
	if err != nil {
		return 0, perr.FromPostgres(err, "prune ledger")
	}
	return int(tag.RowsAffected()), nil
}
