// Package http provides http transport for the captcha client API
package http

import (
	"net"
	stdhttp "net/http"

	"captchahub/internal/modkit/httpkit"
	"captchahub/internal/services/captcha/domain"
)

// Register mounts the client endpoints
func Register(r httpkit.Router, s domain.ServicePort) {
	h := &handlers{svc: s}

	// operator loop
	httpkit.PostJSON[domain.NextInput](r, "/next", h.next)
	httpkit.PostJSON[domain.TaskRef](r, "/status", h.status)
	httpkit.PostJSON[domain.ResultInput](r, "/result", h.result)
	httpkit.PostJSON[domain.VerdictInput](r, "/verdict", h.verdict)
	httpkit.PostJSON[domain.TaskRef](r, "/abort", h.abort)

	// interactive recaptcha
	httpkit.PostJSON[domain.TaskRef](r, "/start", h.start)
	httpkit.PostJSON[domain.InteractInput](r, "/interact", h.interact)
	httpkit.PostJSON[domain.TaskRef](r, "/reload", h.reload)

	// remote workers
	httpkit.PostJSON[domain.SubmitInput](r, "/submit", h.submit)
	httpkit.Get(r, "/list", h.list)
}

// Token roles, operators solve while workers only submit and poll
const (
	RoleOperator = "operator"
	RoleWorker   = "worker"
)

type handlers struct{ svc domain.ServicePort }

// clientID prefers the explicit id, then the token owner, then the peer address
func clientID(r *stdhttp.Request, given string) string {
	if given != "" {
		return given
	}
	if uid, err := httpkit.User(r); err == nil {
		return uid
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// swagger:route POST /captcha/next Captcha captchaNext
// @Summary Claim the oldest waiting task
// @Tags Captcha
// @Accept json
// @Produce json
// @Param payload body domain.NextInput true "Next"
// @Success 200 {object} domain.NextOutput "ok"
// @Failure 403 {object} httpkit.Envelope "operator role required"
// @Router /captcha/next [post]
func (h *handlers) next(r *stdhttp.Request, in domain.NextInput) (any, error) {
	if err := httpkit.RequireRole(r, RoleOperator); err != nil {
		return nil, err
	}
	in.ClientID = clientID(r, in.ClientID)
	return h.svc.Next(r.Context(), in)
}

// swagger:route POST /captcha/status Captcha captchaStatus
// @Summary Task status
// @Tags Captcha
// @Accept json
// @Produce json
// @Param payload body domain.TaskRef true "Task"
// @Success 200 {object} domain.TaskView "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /captcha/status [post]
func (h *handlers) status(r *stdhttp.Request, in domain.TaskRef) (any, error) {
	in.ClientID = clientID(r, in.ClientID)
	in.Solver = httpkit.RequireRole(r, RoleOperator) == nil
	return h.svc.Status(r.Context(), in)
}

// swagger:route POST /captcha/result Captcha captchaResult
// @Summary Answer a task
// @Description A malformed positional answer is accepted and the task keeps waiting
// @Tags Captcha
// @Accept json
// @Produce json
// @Param payload body domain.ResultInput true "Answer"
// @Success 200 {object} domain.TaskView "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Failure 409 {object} httpkit.Envelope "already answered or failed"
// @Failure 410 {object} httpkit.Envelope "timed out"
// @Failure 403 {object} httpkit.Envelope "operator role required"
// @Router /captcha/result [post]
func (h *handlers) result(r *stdhttp.Request, in domain.ResultInput) (any, error) {
	if err := httpkit.RequireRole(r, RoleOperator); err != nil {
		return nil, err
	}
	in.ClientID = clientID(r, in.ClientID)
	return h.svc.Answer(r.Context(), in)
}

// swagger:route POST /captcha/verdict Captcha captchaVerdict
// @Summary Report whether the answer was accepted
// @Tags Captcha
// @Accept json
// @Produce json
// @Param payload body domain.VerdictInput true "Verdict"
// @Success 200 {object} domain.TaskView "ok"
// @Failure 409 {object} httpkit.Envelope "no result yet"
// @Router /captcha/verdict [post]
func (h *handlers) verdict(r *stdhttp.Request, in domain.VerdictInput) (any, error) {
	return h.svc.Verdict(r.Context(), in)
}

// swagger:route POST /captcha/abort Captcha captchaAbort
// @Summary Give up on a task
// @Tags Captcha
// @Accept json
// @Produce json
// @Param payload body domain.TaskRef true "Task"
// @Success 200 {object} domain.TaskView "ok"
// @Router /captcha/abort [post]
func (h *handlers) abort(r *stdhttp.Request, in domain.TaskRef) (any, error) {
	in.ClientID = clientID(r, in.ClientID)
	in.Solver = httpkit.RequireRole(r, RoleOperator) == nil
	return h.svc.Abort(r.Context(), in)
}

// swagger:route POST /captcha/start Captcha captchaStart
// @Summary Open the browser session of an interactive task
// @Tags Captcha
// @Accept json
// @Produce json
// @Param payload body domain.TaskRef true "Task"
// @Success 200 {object} domain.StartOutput "ok"
// @Failure 422 {object} httpkit.Envelope "not interactive"
// @Failure 502 {object} httpkit.Envelope "browser automation failed"
// @Failure 403 {object} httpkit.Envelope "operator role required"
// @Router /captcha/start [post]
func (h *handlers) start(r *stdhttp.Request, in domain.TaskRef) (any, error) {
	if err := httpkit.RequireRole(r, RoleOperator); err != nil {
		return nil, err
	}
	in.ClientID = clientID(r, in.ClientID)
	return h.svc.Start(r.Context(), in)
}

// swagger:route POST /captcha/interact Captcha captchaInteract
// @Summary Click a tile or the verify button
// @Tags Captcha
// @Accept json
// @Produce json
// @Param payload body domain.InteractInput true "Step"
// @Success 200 {object} domain.StepOutput "ok"
// @Failure 502 {object} httpkit.Envelope "browser automation failed"
// @Failure 403 {object} httpkit.Envelope "operator role required"
// @Router /captcha/interact [post]
func (h *handlers) interact(r *stdhttp.Request, in domain.InteractInput) (any, error) {
	if err := httpkit.RequireRole(r, RoleOperator); err != nil {
		return nil, err
	}
	in.ClientID = clientID(r, in.ClientID)
	return h.svc.Interact(r.Context(), in)
}

// swagger:route POST /captcha/reload Captcha captchaReload
// @Summary Refresh the challenge snapshot
// @Tags Captcha
// @Accept json
// @Produce json
// @Param payload body domain.TaskRef true "Task"
// @Success 200 {object} domain.TaskView "ok"
// @Failure 403 {object} httpkit.Envelope "operator role required"
// @Router /captcha/reload [post]
func (h *handlers) reload(r *stdhttp.Request, in domain.TaskRef) (any, error) {
	if err := httpkit.RequireRole(r, RoleOperator); err != nil {
		return nil, err
	}
	in.ClientID = clientID(r, in.ClientID)
	return h.svc.Reload(r.Context(), in)
}

// swagger:route POST /captcha/submit Captcha captchaSubmit
// @Summary Register a challenge for solving
// @Tags Captcha
// @Accept json
// @Produce json
// @Param payload body domain.SubmitInput true "Challenge"
// @Success 200 {object} domain.SubmitOutput "ok"
// @Failure 503 {object} httpkit.Envelope "no solver available"
// @Router /captcha/submit [post]
func (h *handlers) submit(r *stdhttp.Request, in domain.SubmitInput) (any, error) {
	return h.svc.Submit(r.Context(), in)
}

// swagger:route GET /captcha/list Captcha captchaList
// @Summary Registry snapshot and connected clients
// @Tags Captcha
// @Produce json
// @Success 200 {object} domain.ListOutput "ok"
// @Router /captcha/list [get]
func (h *handlers) list(r *stdhttp.Request) (any, error) {
	return h.svc.List(r.Context())
}
