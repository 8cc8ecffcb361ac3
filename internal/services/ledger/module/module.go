// Package module wires the ledger recorder worker and exposes its ports
package module

import (
	"context"

	"captchahub/internal/modkit"
	"captchahub/internal/modkit/httpkit"
	"captchahub/internal/modkit/repokit"
	"captchahub/internal/platform/logger"
	"captchahub/internal/services/ledger/domain"
	"captchahub/internal/services/ledger/repo"
	"captchahub/internal/services/ledger/retention"
	"captchahub/internal/services/ledger/service"
)

// Module defines the ledger worker module
type Module struct {
	deps  modkit.Deps
	opts  Options
	pg    *service.PGSink
	ports Ports
}

// Ports holds the ports exposed by the ledger module, zero when the ledger is off
// Pruner is set only when postgres is wired
type Ports struct {
	Recorder domain.RecorderPort
	Worker   domain.WorkerPort
	Pruner   domain.WorkerPort
}

// New constructs the ledger module, it stays inert without any store
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.Buffer != 0 {
		opts.Buffer = overrides.Buffer
	}
	if overrides.BatchSize != 0 {
		opts.BatchSize = overrides.BatchSize
	}
	if overrides.FlushInterval != 0 {
		opts.FlushInterval = overrides.FlushInterval
	}
	if overrides.CHTable != "" {
		opts.CHTable = overrides.CHTable
	}
	if overrides.LockTimeout != 0 {
		opts.LockTimeout = overrides.LockTimeout
	}
	if overrides.Retention != "" {
		opts.Retention = overrides.Retention
	}
	mode, err := retention.ParseMode(opts.Retention)
	if err != nil {
		panic("ledger: " + err.Error())
	}

	m := &Module{deps: deps, opts: opts}
	log := logger.Named("ledger")

	var sinks []domain.Sink
	db := deps.PG
	if db != nil && opts.LockTimeout > 0 {
		db = repokit.WithBeginHooks(db, repokit.LockTimeout(opts.LockTimeout))
	}
	if db != nil {
		m.pg = service.NewPGSink(db, repo.NewPG())
		sinks = append(sinks, m.pg)
	}
	if deps.CH != nil {
		sinks = append(sinks, repo.NewCHSink(deps.CH, opts.CHTable))
	}
	if !opts.Enabled || len(sinks) == 0 {
		log.Info().Bool("enabled", opts.Enabled).Int("sinks", len(sinks)).Msg("ledger off")
		return m
	}

	rec := service.New(service.Config{
		Buffer:        opts.Buffer,
		BatchSize:     opts.BatchSize,
		FlushInterval: opts.FlushInterval,
	}, sinks...)
	m.ports = Ports{Recorder: rec, Worker: rec}
	if db != nil {
		m.ports.Pruner = retention.New(db, repo.NewPG(), retention.Config{
			Mode:      mode,
			Interval:  opts.RetentionInterval,
			BatchSize: opts.PruneBatch,
		})
	}
	return m
}

// Migrate creates the postgres table when auto migration is on
func (m *Module) Migrate(ctx context.Context) error {
	if m.pg == nil || !m.opts.AutoMigrate || m.ports.Recorder == nil {
		return nil
	}
	return m.pg.EnsureSchema(ctx)
}

// Enabled reports whether events are recorded
func (m *Module) Enabled() bool { return m.ports.Recorder != nil }

// Ports returns the module ports (Recorder, Worker, Pruner)
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "ledger" }

// Prefix returns the module config prefix (none for worker-only service)
func (m *Module) Prefix() string { return "" }

// MountRoutes returns no HTTP routes
func (m *Module) MountRoutes(_ httpkit.Router) {}
