// Package module holds the module contract and the bootstrap port registry
package module

import phttp "captchahub/internal/platform/net/http"

// Module is a unit the composition root can mount and cross wire
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
