package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	chx "captchahub/internal/platform/store/ch"
	"captchahub/internal/platform/store/pg"
)

// first retry waits this long, later ones double up to maxBackoff
var (
	firstBackoff = 150 * time.Millisecond
	maxBackoff   = 2 * time.Second
)

// openPG opens the pool and only hands out the adapter once postgres answers a ping
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
		AppName:  cfg.AppName,
	}, tracer)
	if err != nil {
		return nil, err
	}

	// ping the pool directly so boot retries stay out of the sql trace
	if err := pingRetry(ctx, p.Pool.Ping, cfg.PG.ConnectRetries, cfg.PG.PingTimeout); err != nil {
		p.Close()
		return nil, err
	}
	return newPGAdapter(p), nil
}

// pingRetry calls ping until it succeeds, retries run out or ctx ends,
// zero retries or timeout fall back to 6 and 5s
func pingRetry(ctx context.Context, ping func(context.Context) error, retries int, timeout time.Duration) error {
	if retries <= 0 {
		retries = 6
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = firstBackoff
	eb.MaxInterval = maxBackoff
	eb.MaxElapsedTime = 0

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return ping(pctx)
	}, backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("postgres ping failed after %d attempts: %w", attempts, err)
}

func openCH(ctx context.Context, cfg Config) (Clickhouse, error) {
	c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, Role: cfg.AppName, Tag: cfg.CH.Tag})
	if err != nil {
		return nil, err
	}
	return newCHAdapter(c), nil
}
