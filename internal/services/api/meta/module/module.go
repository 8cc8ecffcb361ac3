// Package module wires meta endpoints into the API
package module

import (
	"time"

	modkit "captchahub/internal/modkit"
	"captchahub/internal/core/version"
	metahttp "captchahub/internal/services/api/meta/http"
)

// Ports are the optional injected ports of the meta module
type Ports struct {
	Registry metahttp.Registry
}

// Module serves health, readiness, version and registry snapshots
type Module struct {
	modkit.Base
	startedAt time.Time
}

// New constructs the meta module, a nil Registry serves an empty /registry snapshot
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	m := &Module{
		Base: modkit.Build(append([]modkit.Option{
			modkit.WithName("meta"),
			modkit.WithPrefix("/meta"),
		}, opts...)...),
		startedAt: time.Now(),
	}
	injected, _ := m.Ports().(Ports)
	m.Routes(func(r modkit.Router) {
		metahttp.Register(r, metahttp.Deps{
			ServiceName: version.Info().Service,
			StartedAt:   m.startedAt,
			PG:          deps.PG,
			CH:          deps.CH,
			Registry:    injected.Registry,
		})
	})
	return m
}
