// Package module wires the captcha registry, its solver plugins and the sweeper worker
package module

import (
	"strings"

	"captchahub/internal/adapters/browser/cdp"
	"captchahub/internal/adapters/browser/webdriver"
	"captchahub/internal/adapters/solver/capsolver"
	"captchahub/internal/core/captcha"
	"captchahub/internal/modkit"
	"captchahub/internal/modkit/httpkit"
	"captchahub/internal/platform/logger"
	"captchahub/internal/services/captcha/presence"
	"captchahub/internal/services/captcha/service"
)

// Module defines the captcha worker module
type Module struct {
	deps     modkit.Deps
	ports    Ports
	mgr      *captcha.Manager
	handlers *captcha.Handlers
	plugin   *capsolver.Plugin
}

// New constructs the captcha module, non-zero overrides win over env
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)

	if overrides.Grace != 0 {
		opts.Grace = overrides.Grace
	}
	if overrides.Debug {
		opts.Debug = true
	}
	if overrides.ClientWindow != 0 {
		opts.ClientWindow = overrides.ClientWindow
	}
	if overrides.SweepInterval != 0 {
		opts.SweepInterval = overrides.SweepInterval
	}
	if overrides.Retention != 0 {
		opts.Retention = overrides.Retention
	}
	if overrides.Backend != "" {
		opts.Backend = overrides.Backend
	}
	if overrides.Extension != "" {
		opts.Extension = overrides.Extension
	}
	if overrides.BrowserBinary != "" {
		opts.BrowserBinary = overrides.BrowserBinary
	}
	if overrides.DriverBinary != "" {
		opts.DriverBinary = overrides.DriverBinary
	}
	if overrides.ReadyTimeout != 0 {
		opts.ReadyTimeout = overrides.ReadyTimeout
	}
	opts.Observers = append(opts.Observers, overrides.Observers...)
	opts.Launcher = overrides.Launcher
	if opts.Launcher == nil {
		opts.Launcher = launcher(opts.Backend)
	}
	opts.Humanizer = overrides.Humanizer

	log := logger.Named("captcha")
	m := &Module{deps: deps, handlers: captcha.NewHandlers()}

	solver := capsolver.FromConfig(deps.Cfg)
	if solver.Enabled {
		m.plugin = capsolver.New(solver)
		m.handlers.Activate(m.plugin)
		log.Info().Str("handler", m.plugin.Name()).Msg("solver plugin active")
	}

	tracker := presence.New(opts.ClientWindow)
	m.mgr = captcha.NewManager(captcha.Options{
		Grace:     opts.Grace,
		Debug:     opts.Debug,
		Presence:  tracker,
		Handlers:  m.handlers,
		Launcher:  opts.Launcher,
		Humanizer: opts.Humanizer,
		Observers: opts.Observers,
		Browser: captcha.BrowserConfig{
			ExtensionPath: opts.Extension,
			BrowserBinary: opts.BrowserBinary,
			DriverBinary:  opts.DriverBinary,
			Headless:      opts.Headless,
			ReadyTimeout:  opts.ReadyTimeout,
		},
		Logger: log,
	})

	svc := service.New(m.mgr, tracker, service.Config{
		SweepInterval: opts.SweepInterval,
		Retention:     opts.Retention,
	})
	m.ports = Ports{Service: svc, Worker: svc}
	return m
}

func launcher(backend string) captcha.Launcher {
	switch strings.ToLower(backend) {
	case BackendCDP:
		return cdp.New()
	case BackendChrome:
		return webdriver.New(webdriver.Chrome, nil)
	default:
		return webdriver.New(webdriver.Firefox, nil)
	}
}

// Manager exposes the registry to in-process download workers
func (m *Module) Manager() *captcha.Manager { return m.mgr }

// Handlers exposes the activation set so hosts can plug extra solvers in
func (m *Module) Handlers() *captcha.Handlers { return m.handlers }

// Close releases the browser sessions of registered tasks and stops solver plugins
func (m *Module) Close() error {
	log := logger.Named("captcha")
	for _, v := range m.mgr.Snapshot() {
		t := m.mgr.GetTaskByID(v.ID)
		if t == nil {
			continue
		}
		if err := t.Abort(); err != nil {
			log.Warn().Err(err).Str("task_id", v.ID).Msg("close browser session on shutdown")
		}
	}
	if m.plugin != nil {
		return m.plugin.Close()
	}
	return nil
}

// Ports returns the module ports (Service, Worker)
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "captcha" }

// Prefix returns the module config prefix (none for worker-only service)
func (m *Module) Prefix() string { return "" }

// MountRoutes returns no HTTP routes
func (m *Module) MountRoutes(_ httpkit.Router) {}
