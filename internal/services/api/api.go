// Package api provides the HTTP API for the application
package api

import (
	"net/http"

	"captchahub/internal/platform/config"
	"captchahub/internal/platform/logger"
	"captchahub/internal/platform/metrics"
	phttp "captchahub/internal/platform/net/http"
	"captchahub/internal/platform/store"

	"captchahub/internal/modkit"
	"captchahub/internal/modkit/httpkit"
	"captchahub/internal/modkit/module"
	"captchahub/internal/modkit/swaggerkit"

	captchamod "captchahub/internal/services/api/captcha/module"
	metamod "captchahub/internal/services/api/meta/module"
	statsmod "captchahub/internal/services/api/stats/module"
	cdom "captchahub/internal/services/captcha/domain"
	workermod "captchahub/internal/services/captcha/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
	ProfilerPrefix string // default /debug

	// Captcha is the registry port owned by the captcha worker module,
	// nil looks it up in the module registry
	Captcha cdom.ServicePort
	// Metrics is optional, nil leaves /metrics unmounted
	Metrics *metrics.Collector
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	if opt.Captcha == nil {
		// fall back to the worker module registered during bootstrap
		if p, ok := module.PortsAs[workermod.Ports]("captcha"); ok {
			opt.Captcha = p.Service
		}
	}
	if opt.Captcha == nil {
		panic("api.Mount requires the captcha Service port")
	}

	// shared deps for modules
	deps := modkit.Deps{Cfg: opt.Config}
	if opt.Store != nil {
		deps.PG = opt.Store.PG
		deps.CH = opt.Store.CH
	}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}

	mods := []module.Module{
		metamod.New(deps, modkit.WithPorts(metamod.Ports{Registry: opt.Captcha})),
		captchamod.New(deps, modkit.WithPorts(captchamod.Ports{Service: opt.Captcha})),
	}
	// ledger reads need postgres
	if deps.PG != nil {
		mods = append(mods, statsmod.New(deps))
	}

	stack := httpkit.CommonStack(opt.Config)
	if opt.Metrics != nil {
		stack = append([]func(http.Handler) http.Handler{opt.Metrics.Middleware}, stack...)
		r.Handle("/metrics", opt.Metrics.Handler())
	}

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, stack, func(api httpkit.Router) {
		// Swagger + profiler
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, opt.ProfilerPrefix, opt.EnableProfiler)

		for _, m := range mods {
			// API ports live beside the worker ports, which own the bare names
			module.Register("api/"+m.Name(), m.Ports())

			// mount module routes under its Prefix()
			m.MountRoutes(api)
		}
	})
}
