// Package repo provides postgres reads over the captcha ledger
package repo

import (
	"context"

	"captchahub/internal/modkit/repokit"
	perr "captchahub/internal/platform/errors"
	"captchahub/internal/platform/store"
)

// Repo is the minimal persistence surface for ledger stats
type Repo interface {
	Events(ctx context.Context, start, end, resultType string) ([]RowEvents, error)
	Solve(ctx context.Context, start, end string) ([]RowSolve, error)
	Handlers(ctx context.Context, start, end string) ([]RowHandlers, error)
}

// RowEvents represents an event count bucket
type RowEvents struct {
	Kind       string
	ResultType string
	Count      int64
}

// RowSolve represents answer latency for one result type
type RowSolve struct {
	ResultType string
	Solved     int64
	AvgSeconds float64
	MaxSeconds float64
}

// RowHandlers represents failures of one handler
type RowHandlers struct {
	Handler  string
	Failures int64
}

type (
	// PG is a binder that can bind the repo to a Queryer or TxRunner
	PG struct{}
	// queries implements the Repo interface
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder that can bind the repo to a Queryer or TxRunner
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind wires a Queryer to the repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

const eventsSQL = `
select kind, result_type, count(*) as n
from captcha_events
where at >= $1::date and at < $2::date + 1
and ($3 = '' or result_type = $3)
group by kind, result_type
order by kind asc, result_type asc
`

// task ids restart with the process, pair each registration with the next result only
const solveSQL = `
select g.result_type, count(*) as solved,
	avg(extract(epoch from s.at - g.at))::float8,
	max(extract(epoch from s.at - g.at))::float8
from captcha_events g
join lateral (
	select r.at from captcha_events r
	where r.task_id = g.task_id and r.kind = 'result' and r.at >= g.at
	order by r.at asc
	limit 1
) s on true
where g.kind = 'registered'
and g.at >= $1::date and g.at < $2::date + 1
group by g.result_type
order by g.result_type asc
`

const handlersSQL = `
select handler, count(*) as failures
from captcha_events
where kind = 'handler_failed'
and at >= $1::date and at < $2::date + 1
group by handler
order by failures desc, handler asc
`

func (r *queries) Events(ctx context.Context, start, end, resultType string) ([]RowEvents, error) {
	out, err := store.Many(ctx, r.q, func(row store.Row) (RowEvents, error) {
		var rr RowEvents
		return rr, row.Scan(&rr.Kind, &rr.ResultType, &rr.Count)
	}, eventsSQL, start, end, resultType)
	return out, perr.FromPostgres(err, "event counts")
}

func (r *queries) Solve(ctx context.Context, start, end string) ([]RowSolve, error) {
	out, err := store.Many(ctx, r.q, func(row store.Row) (RowSolve, error) {
		var rr RowSolve
		return rr, row.Scan(&rr.ResultType, &rr.Solved, &rr.AvgSeconds, &rr.MaxSeconds)
	}, solveSQL, start, end)
	return out, perr.FromPostgres(err, "solve latency")
}

func (r *queries) Handlers(ctx context.Context, start, end string) ([]RowHandlers, error) {
	out, err := store.Many(ctx, r.q, func(row store.Row) (RowHandlers, error) {
		var rr RowHandlers
		return rr, row.Scan(&rr.Handler, &rr.Failures)
	}, handlersSQL, start, end)
	return out, perr.FromPostgres(err, "handler failures")
}
