// Package service answers ledger stats queries over a day range
package service

import (
	"context"
	"time"

	"captchahub/internal/modkit/repokit"
	perr "captchahub/internal/platform/errors"
	"captchahub/internal/services/api/stats/domain"
	"captchahub/internal/services/api/stats/repo"
)

// Service is the stats contract handlers depend on
type Service interface {
	domain.ServicePort
}

// Svc reads through a repo bound once to the pool
type Svc struct {
	repo repo.Repo
}

var _ Service = (*Svc)(nil)

// New binds the repo to db and panics on missing wiring
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo]) *Svc {
	if db == nil || binder == nil {
		panic("stats service needs a TxRunner and a repo binder")
	}
	return &Svc{repo: binder.Bind(db)}
}

func day(s, field string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return t, perr.WithField(perr.InvalidArgf("%q is not a YYYY-MM-DD day", s), field)
	}
	return t, nil
}

// validRange rejects unparsable days and windows that end before they start
func validRange(r domain.TimeRange) error {
	start, err := day(r.Start, "range.start")
	if err != nil {
		return err
	}
	end, err := day(r.End, "range.end")
	if err != nil {
		return err
	}
	if end.Before(start) {
		return perr.WithField(perr.InvalidArgf("range ends before it starts"), "range")
	}
	return nil
}

// collect validates rng, runs fetch and maps every row with conv
func collect[R, D any](rng domain.TimeRange, fetch func() ([]R, error), conv func(R) D) ([]D, error) {
	if err := validRange(rng); err != nil {
		return nil, err
	}
	rows, err := fetch()
	if err != nil {
		return nil, err
	}
	out := make([]D, len(rows))
	for i, r := range rows {
		out[i] = conv(r)
	}
	return out, nil
}

// Events counts lifecycle events by kind, optionally for one result type
func (s *Svc) Events(ctx context.Context, in domain.EventsInput) ([]domain.EventsRow, error) {
	return collect(in.Range,
		func() ([]repo.RowEvents, error) {
			return s.repo.Events(ctx, in.Range.Start, in.Range.End, in.ResultType)
		},
		func(r repo.RowEvents) domain.EventsRow {
			return domain.EventsRow{Kind: r.Kind, ResultType: r.ResultType, Count: r.Count}
		})
}

// Solve reports answer latency per result type
func (s *Svc) Solve(ctx context.Context, in domain.SolveInput) ([]domain.SolveRow, error) {
	return collect(in.Range,
		func() ([]repo.RowSolve, error) { return s.repo.Solve(ctx, in.Range.Start, in.Range.End) },
		func(r repo.RowSolve) domain.SolveRow {
			return domain.SolveRow{ResultType: r.ResultType, Solved: r.Solved, AvgSeconds: r.AvgSeconds, MaxSeconds: r.MaxSeconds}
		})
}

// Handlers counts failures per solver handler
func (s *Svc) Handlers(ctx context.Context, in domain.HandlersInput) ([]domain.HandlersRow, error) {
	return collect(in.Range,
		func() ([]repo.RowHandlers, error) { return s.repo.Handlers(ctx, in.Range.Start, in.Range.End) },
		func(r repo.RowHandlers) domain.HandlersRow {
			return domain.HandlersRow{Handler: r.Handler, Failures: r.Failures}
		})
}
