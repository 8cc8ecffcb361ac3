package modkit

import "net/http"

// Option overrides part of a module's Base
type Option func(*Base)

// WithName sets the module name used in logs and the port registry
func WithName(name string) Option {
	return func(b *Base) { b.name = name }
}

// WithPrefix mounts a module under a path prefix
func WithPrefix(prefix string) Option {
	return func(b *Base) { b.prefix = prefix }
}

// WithMiddlewares appends per module middleware, run in order after the common stack
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(b *Base) { b.mws = append(b.mws, mw...) }
}

// WithPorts injects ports owned by another module,
// the concrete type is declared by the receiving module
func WithPorts[T any](p T) Option {
	return func(b *Base) { b.ports = p }
}
