package httpkit

import (
	"net/http"
	"path"

	"captchahub/internal/modkit/swaggerkit"
	"captchahub/internal/platform/net/middleware"
)

// Protected groups routes under bearer auth and marks them secured in the served spec
// base is the mount path of r relative to the api root, e.g. "/captcha"
func Protected(r Router, base string, p middleware.AuthPort, fn func(Router)) {
	r.Group(func(gr Router) {
		gr.Use(Auth(p))
		fn(securedRouter{Router: gr, base: base})
	})
}

type securedRouter struct {
	Router
	base string
}

func (s securedRouter) Get(p string, h Handler) {
	swaggerkit.MarkSecure(http.MethodGet, path.Join(s.base, p))
	s.Router.Get(p, h)
}

func (s securedRouter) Post(p string, h Handler) {
	swaggerkit.MarkSecure(http.MethodPost, path.Join(s.base, p))
	s.Router.Post(p, h)
}

func (s securedRouter) Route(prefix string, fn func(Router)) {
	s.Router.Route(prefix, func(sub Router) {
		fn(securedRouter{Router: sub, base: path.Join(s.base, prefix)})
	})
}
