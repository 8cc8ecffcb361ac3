package retention

import (
	"context"
	"errors"
	"time"

	"captchahub/internal/modkit/repokit"
	"captchahub/internal/platform/logger"
	"captchahub/internal/services/ledger/repo"
)

// ErrLeaseHeld signals another process is pruning already
var ErrLeaseHeld = errors.New("retention: lease already held")

// leaseKey is the advisory lock id shared by every captchad pruning captcha_events
const leaseKey int64 = 0x63617074636861 // "captcha"

// Config controls the prune schedule
type Config struct {
	Mode      Mode
	Interval  time.Duration
	BatchSize int
}

// Result summarizes one prune pass
type Result struct {
	Cutoff  time.Time
	Deleted int
	Skipped bool
	Took    time.Duration
}

// Service deletes ledger events older than the retention window
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Storage]
	Cfg    Config

	now func() time.Time
}

// New constructs the retention service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Storage], cfg Config) *Service {
	if db == nil {
		panic("retention.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("retention.Service requires a non nil Repo binder")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5000
	}
	return &Service{DB: db, Binder: binder, Cfg: cfg, now: time.Now}
}

// WithClock swaps the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PruneOnce deletes expired events batch by batch, each batch in its own leased transaction
func (s *Service) PruneOnce(ctx context.Context) (Result, error) {
	start := s.now()
	res := Result{}
	if s.Cfg.Mode.Full() {
		res.Skipped = true
		return res, nil
	}
	res.Cutoff = start.Add(-s.Cfg.Mode.Keep).UTC()

	l := logger.C(ctx).With().Str("mod", "ledger-retention").Time("cutoff", res.Cutoff).Logger()

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var n int
		err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
			st := s.Binder.Bind(q)
			ok, err := st.TryLease(ctx, leaseKey)
			if err != nil {
				return err
			}
			if !ok {
				return ErrLeaseHeld
			}
			n, err = st.PruneBefore(ctx, res.Cutoff, s.Cfg.BatchSize)
			return err
		})
		if errors.Is(err, ErrLeaseHeld) {
			l.Debug().Msg("retention: lease not acquired; clean skip")
			res.Skipped = true
			break
		}
		if err != nil {
			res.Took = s.now().Sub(start)
			return res, err
		}
		res.Deleted += n
		if n < s.Cfg.BatchSize {
			break
		}
	}

	res.Took = s.now().Sub(start)
	if res.Deleted > 0 {
		l.Info().Int("deleted", res.Deleted).Dur("took", res.Took).Msg("retention: pruned")
	}
	return res, nil
}

// Run prunes on every interval tick until ctx ends
func (s *Service) Run(ctx context.Context) error {
	l := logger.Named("ledger-retention")
	if s.Cfg.Mode.Full() {
		l.Info().Msg("retention: full mode, nothing to prune")
		<-ctx.Done()
		return ctx.Err()
	}
	l.Info().Str("mode", s.Cfg.Mode.String()).Dur("interval", s.Cfg.Interval).Msg("retention: started")

	t := time.NewTicker(s.Cfg.Interval)
	defer t.Stop()
	for {
		if _, err := s.PruneOnce(ctx); err != nil && ctx.Err() == nil {
			l.Error().Err(err).Msg("retention: prune failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
