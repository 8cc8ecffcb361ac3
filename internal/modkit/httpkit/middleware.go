package httpkit

import (
	"net/http"

	"captchahub/internal/platform/config"
	phttp "captchahub/internal/platform/net/http"
	"captchahub/internal/platform/net/middleware"
)

// CommonStack returns the middleware every versioned API route runs behind
// cfg is the api scoped config, e.g. CORE_API_
func CommonStack(cfg config.Conf) []func(http.Handler) http.Handler {
	return middleware.Stack(middleware.FromConfig(cfg))
}

// Auth wires the auth middleware to the platform JSON writer
func Auth(p middleware.AuthPort) func(http.Handler) http.Handler {
	return middleware.Auth(p, phttp.JSON)
}
