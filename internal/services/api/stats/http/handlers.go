// Package http provides http transport for ledger stats
package http

import (
	stdhttp "net/http"

	"captchahub/internal/modkit/httpkit"
	"captchahub/internal/services/api/stats/domain"
	svc "captchahub/internal/services/api/stats/service"
)

// Register mounts stats endpoints on the given router
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	// event counts by kind
	httpkit.PostJSON[domain.EventsInput](r, "/stats", h.events)

	// answer latency
	httpkit.PostJSON[domain.SolveInput](r, "/solve", h.solve)

	// plugin failures
	httpkit.PostJSON[domain.HandlersInput](r, "/handlers", h.handlers)
}

type handlers struct{ svc svc.Service }

// swagger:route POST /ledger/stats Ledger ledgerStats
// @Summary Lifecycle event counts
// @Tags Ledger
// @Accept json
// @Produce json
// @Param payload body domain.EventsInput true "Query"
// @Success 200 {array} domain.EventsRow "ok"
// @Router /ledger/stats [post]
func (h *handlers) events(r *stdhttp.Request, in domain.EventsInput) (any, error) {
	return h.svc.Events(r.Context(), in)
}

// swagger:route POST /ledger/solve Ledger ledgerSolve
// @Summary Answer latency by result type
// @Tags Ledger
// @Accept json
// @Produce json
// @Param payload body domain.SolveInput true "Query"
// @Success 200 {array} domain.SolveRow "ok"
// @Router /ledger/solve [post]
func (h *handlers) solve(r *stdhttp.Request, in domain.SolveInput) (any, error) {
	return h.svc.Solve(r.Context(), in)
}

// swagger:route POST /ledger/handlers Ledger ledgerHandlers
// @Summary Solver plugin failures
// @Tags Ledger
// @Accept json
// @Produce json
// @Param payload body domain.HandlersInput true "Query"
// @Success 200 {array} domain.HandlersRow "ok"
// @Router /ledger/handlers [post]
func (h *handlers) handlers(r *stdhttp.Request, in domain.HandlersInput) (any, error) {
	return h.svc.Handlers(r.Context(), in)
}
