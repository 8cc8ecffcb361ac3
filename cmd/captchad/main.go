// @title         captchahub API
// @version       0.1.0
// @description   Captcha task registry and interactive solving for download workers
// @BasePath      /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

//go:generate go tool swag init --v3.1 --instanceName api -g main.go -d ./,../../internal/services/api -o ../../internal/services/api/docs --outputTypes go --parseInternal

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"captchahub/internal/core/captcha"
	"captchahub/internal/core/version"
	"captchahub/internal/modkit"
	"captchahub/internal/modkit/module"
	"captchahub/internal/platform/config"
	"captchahub/internal/platform/logger"
	"captchahub/internal/platform/metrics"
	phttp "captchahub/internal/platform/net/http"
	"captchahub/internal/platform/store"

	"captchahub/internal/services/api"
	captchamod "captchahub/internal/services/captcha/module"
	csvc "captchahub/internal/services/captcha/service"
	ledgermod "captchahub/internal/services/ledger/module"
)

func main() {
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	l := logger.Get()
	info := version.Info()
	l.Info().Str("version", info.Version).Str("commit", info.Commit).Msg("captchad starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stores are optional, without them the ledger stays off
	pgURL := pgCfg.MayString("DBURL", "")
	chURL := chCfg.MayString("DBURL", "")
	st, err := store.Open(ctx, store.Config{
		AppName: "captchad",
		PG: store.PGConfig{
			Enabled:     pgURL != "",
			URL:         pgURL,
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),

			ConnectRetries: pgCfg.MayInt("CONNECT_RETRIES", 6),
			PingTimeout:    pgCfg.MayDuration("PING_TIMEOUT", 5*time.Second),
		},
		CH: store.CHConfig{
			Enabled: chURL != "",
			URL:     chURL,
			Tag:     info.Version,
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	if err := st.Guard(ctx); err != nil {
		l.Panic().Err(err).Msg("store guard failed")
	}

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		CH:  st.CH,
		Log: *l,
	}

	col := metrics.FromConfig(root)
	observers := []captcha.Observer{csvc.NewMetricsObserver(col)}

	ledger := ledgermod.New(deps, ledgermod.Options{})
	if err := ledger.Migrate(ctx); err != nil {
		l.Panic().Err(err).Msg("ledger migrate failed")
	}
	lp := module.MustPortsOf[ledgermod.Ports](ledger)
	if ledger.Enabled() {
		observers = append(observers, lp.Recorder)
	}

	cm := captchamod.New(deps, captchamod.Options{Observers: observers})
	defer func() {
		if err := cm.Close(); err != nil {
			l.Error().Err(err).Msg("failed to stop solver plugins")
		}
	}()
	module.Register(cm.Name(), cm.Ports())
	module.Register(ledger.Name(), ledger.Ports())
	cp := module.MustPortsOf[captchamod.Ports](cm)

	// http server (reads CORE_API_API_PORT)
	srv := phttp.NewServer(apiCfg)
	api.Mount(srv.Router(), api.Options{
		Config:         apiCfg,
		Store:          st,
		Logger:         l,
		EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
		EnableProfiler: apiCfg.MayBool("PROFILER", false),
		ProfilerPrefix: apiCfg.MayString("PROFILER_PREFIX", phttp.DefaultProfilerPrefix),
		Captcha:        cp.Service,
		Metrics:        col,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return quiet(cp.Worker.Run(gctx)) })
	if ledger.Enabled() {
		g.Go(func() error { return quiet(lp.Worker.Run(gctx)) })
	}
	if lp.Pruner != nil {
		g.Go(func() error { return quiet(lp.Pruner.Run(gctx)) })
	}
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), apiCfg.MayDuration("SHUTDOWN_TIMEOUT", 10*time.Second))
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		l.Error().Err(err).Msg("captchad stopped")
		return
	}
	l.Info().Msg("captchad stopped")
}

// quiet drops the cancellation error workers return on shutdown
func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
