// Package service buffers registry events and flushes them to the ledger sinks
package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"captchahub/internal/core/captcha"
	"captchahub/internal/modkit/repokit"
	perr "captchahub/internal/platform/errors"
	"captchahub/internal/platform/logger"
	"captchahub/internal/services/ledger/domain"
	"captchahub/internal/services/ledger/repo"
)

// Config tunes buffering and flushing
type Config struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
	FlushTimeout  time.Duration
}

func (c *Config) defaults() {
	if c.Buffer <= 0 {
		c.Buffer = 4096
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 256
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Second
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = 10 * time.Second
	}
}

// Recorder is a captcha.Observer that never blocks the registry
// events are dropped when the buffer is full
type Recorder struct {
	cfg   Config
	in    chan domain.Record
	sinks []domain.Sink
	log   *logger.Logger

	dropped atomic.Int64
	written atomic.Int64
	failed  atomic.Int64
}

// New builds a Recorder writing to sinks in order
func New(cfg Config, sinks ...domain.Sink) *Recorder {
	cfg.defaults()
	return &Recorder{
		cfg:   cfg,
		in:    make(chan domain.Record, cfg.Buffer),
		sinks: sinks,
		log:   logger.Named("ledger"),
	}
}

// Observe implements captcha.Observer
func (r *Recorder) Observe(e captcha.Event) {
	select {
	case r.in <- domain.FromEvent(e):
	default:
		if r.dropped.Add(1)%100 == 1 {
			r.log.Warn().Int64("dropped", r.dropped.Load()).Msg("ledger buffer full")
		}
	}
}

// Dropped returns how many events never reached the buffer
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Written returns how many records all sinks accepted
func (r *Recorder) Written() int64 { return r.written.Load() }

// Failed returns how many records a sink rejected
func (r *Recorder) Failed() int64 { return r.failed.Load() }

// Run drains the buffer in batches until ctx ends, then flushes what is left
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]domain.Record, 0, r.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			batch = r.drain(batch)
			r.flush(context.Background(), batch)
			return ctx.Err()
		case rec := <-r.in:
			batch = append(batch, rec)
			if len(batch) >= r.cfg.BatchSize {
				r.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *Recorder) drain(batch []domain.Record) []domain.Record {
	for {
		select {
		case rec := <-r.in:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
}

// flush hands the batch to every sink, a failing sink does not stop the others
func (r *Recorder) flush(ctx context.Context, batch []domain.Record) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.FlushTimeout)
	defer cancel()

	ok := true
	for _, s := range r.sinks {
		if err := s.Write(ctx, batch); err != nil {
			ok = false
			r.failed.Add(int64(len(batch)))
			r.log.Error().Err(err).Int("records", len(batch)).Msgf("ledger sink %T failed", s)
		}
	}
	if ok {
		r.written.Add(int64(len(batch)))
	}
}

// PGSink writes records through the repo binder inside one transaction
type PGSink struct {
	db     repokit.TxRunner
	binder repokit.Binder[repo.Storage]
}

// NewPGSink wires a transaction runner to the ledger repo
func NewPGSink(db repokit.TxRunner, binder repokit.Binder[repo.Storage]) *PGSink {
	if db == nil {
		panic("ledger.PGSink requires a non nil TxRunner")
	}
	if binder == nil {
		panic("ledger.PGSink requires a non nil Repo binder")
	}
	return &PGSink{db: db, binder: binder}
}

// EnsureSchema creates the ledger table when missing
func (s *PGSink) EnsureSchema(ctx context.Context) error {
	return s.binder.Bind(s.db).EnsureSchema(ctx)
}

// writeAttempts bounds retries of a batch that lost to lock contention
const writeAttempts = 3

// pause before the first retry, doubling up to writeMaxBackoff
var (
	writeFirstBackoff = 25 * time.Millisecond
	writeMaxBackoff   = 250 * time.Millisecond
)

// Write implements domain.Sink
func (s *PGSink) Write(ctx context.Context, xs []domain.Record) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = writeFirstBackoff
	eb.MaxInterval = writeMaxBackoff
	eb.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
			return s.binder.Bind(q).WriteBatch(ctx, xs)
		})
		if err != nil && !perr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(eb, writeAttempts-1), ctx))
}
