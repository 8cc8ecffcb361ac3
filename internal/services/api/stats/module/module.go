// Package module wires ledger stats into the API using modkit
package module

import (
	"github.com/go-chi/chi/v5/middleware"

	modkit "captchahub/internal/modkit"
	statsdom "captchahub/internal/services/api/stats/domain"
	statshttp "captchahub/internal/services/api/stats/http"
	statsrepo "captchahub/internal/services/api/stats/repo"
	statssvc "captchahub/internal/services/api/stats/service"
)

// Ports exposes the stats queries to other modules
type Ports struct {
	Stats statsdom.ServicePort
}

// Module implements the stats module
type Module struct {
	modkit.Base
	svc statssvc.Service
}

// New constructs the stats module, deps.PG must be set
// ledger scans are capped at STATS_INFLIGHT concurrent requests
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	inflight := deps.Cfg.MayInt("STATS_INFLIGHT", 4)
	m := &Module{
		Base: modkit.Build(append([]modkit.Option{
			modkit.WithName("ledger-stats"),
			modkit.WithPrefix("/ledger"),
			modkit.WithMiddlewares(middleware.Throttle(inflight)),
		}, opts...)...),
		svc: statssvc.New(deps.PG, statsrepo.NewPG()),
	}
	m.Provide(Ports{Stats: m.svc})
	m.Routes(func(r modkit.Router) { statshttp.Register(r, m.svc) })
	return m
}
