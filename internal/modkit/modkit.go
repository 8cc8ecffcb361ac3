package modkit

import (
	"captchahub/internal/modkit/httpkit"
	"captchahub/internal/modkit/module"
)

type (
	// Module is what the API mounts, see module.Module
	Module = module.Module

	// Router is the seam modules register endpoints on
	Router = httpkit.Router
)
