// Package middleware holds the request pipeline shared by every API route
package middleware

import (
	"compress/flate"
	"net/http"
	"time"

	"captchahub/internal/platform/config"

	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
)

// Options tunes the shared stack
type Options struct {
	// CORSOrigins lists allowed browser origins, empty allows none
	CORSOrigins []string
	// Timeout cancels the request context, 0 disables it
	Timeout time.Duration
	// Slow logs requests at warn level once they take this long
	Slow time.Duration
}

// FromConfig reads CORS_ORIGINS, REQUEST_TIMEOUT and SLOW_REQUEST
func FromConfig(cfg config.Conf) Options {
	return Options{
		CORSOrigins: cfg.MayCSV("CORS_ORIGINS", nil),
		Timeout:     cfg.MayDuration("REQUEST_TIMEOUT", 30*time.Second),
		Slow:        cfg.MayDuration("SLOW_REQUEST", 500*time.Millisecond),
	}
}

// Stack returns the middleware chain, outermost first
// interactive steps drive a browser so the timeout must stay above the browser step budget
func Stack(o Options) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		chimw.RequestID,
		chimw.RealIP,
		AccessLog(o.Slow),
		RecoverJSON,
		chimw.NoCache,
		CORS(o.CORSOrigins),
		chimw.NewCompressor(flate.BestSpeed).Handler,
		chimw.Heartbeat("/health"),
		chimw.StripSlashes,
	}
	if o.Timeout > 0 {
		stack = append(stack, chimw.Timeout(o.Timeout))
	}
	return stack
}

// CORS allows the operator UI origins to drive the captcha API
func CORS(origins []string) func(http.Handler) http.Handler {
	return chicors.Handler(chicors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})
}
