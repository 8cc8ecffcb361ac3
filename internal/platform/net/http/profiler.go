package http

import (
	stdhttp "net/http"
	"strings"

	mw "github.com/go-chi/chi/v5/middleware"

	"captchahub/internal/platform/logger"
)

// DefaultProfilerPrefix is where pprof lands when no prefix is configured
const DefaultProfilerPrefix = "/debug"

// ProfilerPrefix normalizes a configured mount point to "/name" form
func ProfilerPrefix(p string) string {
	p = "/" + strings.Trim(strings.TrimSpace(p), "/")
	if p == "/" {
		return DefaultProfilerPrefix
	}
	return p
}

// MountProfiler serves pprof under prefix, a no-op unless enabled
// the profiler mux expects /pprof/* at the root so the prefix is stripped first
func MountProfiler(r Router, prefix string, enabled bool) {
	if !enabled {
		return
	}
	prefix = ProfilerPrefix(prefix)
	h := stdhttp.StripPrefix(prefix, mw.Profiler())

	r.Get(prefix, h.ServeHTTP)
	r.Get(prefix+"/*", h.ServeHTTP)
	logger.Named("profiler").Warn().Str("prefix", prefix).Msg("pprof endpoints exposed")
}
