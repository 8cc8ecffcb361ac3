// Package http serves liveness, readiness and registry snapshots under /meta
package http

import (
	stdctx "context"
	"net/http"
	"time"

	"captchahub/internal/core/version"
	"captchahub/internal/modkit/httpkit"
	cdom "captchahub/internal/services/captcha/domain"
)

// readyTimeout bounds all store pings of one /ready call
const readyTimeout = 2 * time.Second

// check outcomes, skipped means the store is not configured
const (
	statusOK      = "ok"
	statusFail    = "fail"
	statusSkipped = "skipped"
	statusUnknown = "unknown"
	statusDegr    = "degraded"
)

// Pinger is any store that can report its health
type Pinger interface {
	Ping(stdctx.Context) error
}

// Registry is what /registry needs from the captcha service
type Registry interface {
	List(ctx stdctx.Context) (cdom.ListOutput, error)
}

// Deps feed the meta routes, PG and CH may be nil
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	PG          any
	CH          any
	Registry    Registry
}

type handlers struct{ Deps }

// Register mounts the meta routes on r
func Register(r httpkit.Router, d Deps) {
	h := handlers{d}
	for path, fn := range map[string]func(*http.Request) (any, error){
		"/health":   h.health,
		"/ready":    h.ready,
		"/version":  h.version,
		"/service":  h.service,
		"/registry": h.registry,
	} {
		httpkit.Get(r, path, fn)
	}
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// swagger:route GET /meta/health Meta metaHealth
// @Summary Liveness
// @Tags Meta
// @Produce json
// @Success 200 type HealthResponse ok
// @Router /meta/health [get]
func (h handlers) health(*http.Request) (any, error) {
	return HealthResponse{OK: true, Service: h.ServiceName, Started: stamp(h.StartedAt), Now: stamp(time.Now())}, nil
}

func probe(ctx stdctx.Context, name string, target any) ReadyCheck {
	c := ReadyCheck{Name: name, Status: statusUnknown}
	switch p := target.(type) {
	case nil:
		c.Status = statusSkipped
	case Pinger:
		c.Status = statusOK
		if err := p.Ping(ctx); err != nil {
			c.Status, c.Error = statusFail, err.Error()
		}
	}
	return c
}

// swagger:route GET /meta/ready Meta metaReady
// @Summary Readiness with store pings
// @Tags Meta
// @Produce json
// @Success 200 type ReadyResponse ok
// @Router /meta/ready [get]
func (h handlers) ready(r *http.Request) (any, error) {
	ctx, cancel := stdctx.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := ReadyResponse{
		Status: statusOK,
		Checks: []ReadyCheck{probe(ctx, "pg", h.PG), probe(ctx, "ch", h.CH)},
	}
	for _, c := range resp.Checks {
		switch {
		case c.Status == statusFail:
			resp.Status = statusFail
		case c.Status == statusUnknown && resp.Status == statusOK:
			resp.Status = statusDegr
		}
	}
	resp.Now = stamp(time.Now())
	return resp, nil
}

// swagger:route GET /meta/version Meta metaVersion
// @Summary Build info
// @Tags Meta
// @Produce json
// @Success 200 type version.BuildInfo ok
// @Router /meta/version [get]
func (h handlers) version(*http.Request) (any, error) { return version.Info(), nil }

// swagger:route GET /meta/service Meta metaService
// @Summary Process uptime
// @Tags Meta
// @Produce json
// @Success 200 type ServiceResponse ok
// @Router /meta/service [get]
func (h handlers) service(*http.Request) (any, error) {
	return ServiceResponse{
		Name:    h.ServiceName,
		Started: stamp(h.StartedAt),
		Uptime:  int64(time.Since(h.StartedAt).Seconds()),
	}, nil
}

// swagger:route GET /meta/registry Meta metaRegistry
// @Summary Counts of registered tasks, waiting tasks and connected clients
// @Tags Meta
// @Produce json
// @Success 200 type RegistryResponse ok
// @Router /meta/registry [get]
func (h handlers) registry(r *http.Request) (any, error) {
	var resp RegistryResponse
	if h.Registry == nil {
		return resp, nil
	}
	out, err := h.Registry.List(r.Context())
	if err != nil {
		return nil, err
	}
	resp.Registered, resp.Clients, resp.Connected = len(out.Tasks), len(out.Clients), out.Connected
	for _, t := range out.Tasks {
		if t.Waiting {
			resp.Waiting++
		}
	}
	return resp, nil
}
