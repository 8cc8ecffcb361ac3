// Package swaggerkit serves the OpenAPI document and the swagger UI for the api
package swaggerkit

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	phttp "captchahub/internal/platform/net/http"
)

const docsBase = "/api/docs"

// Mount registers the UI under /api/docs when enabled, doing nothing otherwise
func Mount(r phttp.Router, enabled bool) {
	if !enabled {
		return
	}
	spec := docsBase + "/doc.json"
	r.Get(docsBase, func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, docsBase+"/", http.StatusPermanentRedirect)
	})
	r.Get(spec, serveDocJSON())
	r.Handle(docsBase+"/*", httpSwagger.Handler(httpSwagger.InstanceName("api"), httpSwagger.URL(spec)))
}
