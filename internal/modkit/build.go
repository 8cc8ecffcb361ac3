package modkit

import (
	"net/http"

	"captchahub/internal/modkit/httpkit"
	str "captchahub/internal/platform/strings"
)

// Base is embedded by API modules and implements Module around a routes func
type Base struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler
	ports  any
	routes func(httpkit.Router)
}

// Build applies opts in order, modules pass their defaults first
func Build(opts ...Option) Base {
	var b Base
	for _, o := range opts {
		o(&b)
	}
	return b
}

// Routes sets the function that registers the module's endpoints
func (b *Base) Routes(fn func(httpkit.Router)) { b.routes = fn }

// Provide replaces the port set the module exposes
func (b *Base) Provide(ports any) { b.ports = ports }

// Ports returns the exposed or injected port set
func (b *Base) Ports() any { return b.ports }

// Name panics when unset
func (b *Base) Name() string { return str.MustString(b.name, "module name") }

// Prefix returns the normalized mount path
func (b *Base) Prefix() string { return str.MustPrefix(b.prefix) }

// Middlewares returns the per module middleware
func (b *Base) Middlewares() []func(http.Handler) http.Handler { return b.mws }

// MountRoutes mounts the module under its prefix with its own middleware
func (b *Base) MountRoutes(r httpkit.Router) {
	r.Route(b.Prefix(), func(rr httpkit.Router) {
		for _, mw := range b.mws {
			rr.Use(mw)
		}
		if b.routes != nil {
			b.routes(rr)
		}
	})
}
