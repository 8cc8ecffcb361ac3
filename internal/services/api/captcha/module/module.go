// Package module wires the captcha client API using modkit
package module

import (
	modkit "captchahub/internal/modkit"
	"captchahub/internal/modkit/httpkit"
	chttp "captchahub/internal/services/api/captcha/http"
	cdom "captchahub/internal/services/captcha/domain"
)

// Module implements the captcha API module
type Module struct {
	modkit.Base
	svc  cdom.ServicePort
	auth *httpkit.Port
}

// Ports declares the injected registry port this API module requires
type Ports struct {
	Service cdom.ServicePort
}

// New constructs the captcha API module around the injected service port,
// routes are bearer protected once CAPTCHA_API_TOKENS is set
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	m := &Module{Base: modkit.Build(append([]modkit.Option{
		modkit.WithName("captcha"),
		modkit.WithPrefix("/captcha"),
	}, opts...)...)}

	injected, _ := m.Ports().(Ports)
	if injected.Service == nil {
		panic("captcha API module requires Service port (from services/captcha)")
	}
	m.svc = injected.Service

	auth, err := tokenPort(FromConfig(deps.Cfg).Tokens)
	if err != nil {
		panic("captcha api: " + err.Error())
	}
	m.auth = auth

	m.Routes(func(r modkit.Router) {
		if m.auth == nil {
			chttp.Register(r, m.svc)
			return
		}
		httpkit.Protected(r, m.Prefix(), m.auth, func(pr httpkit.Router) { chttp.Register(pr, m.svc) })
	})
	return m
}
