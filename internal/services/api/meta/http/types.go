package http

// HealthResponse answers liveness
// swagger:model
type HealthResponse struct {
	OK      bool   `json:"ok"      example:"true"`
	Service string `json:"service" example:"captchad"`
	Started string `json:"started" example:"2026-03-01T09:00:00Z"`
	Now     string `json:"now"     example:"2026-03-01T09:04:12Z"`
}

// ReadyCheck is the outcome of probing one store
type ReadyCheck struct {
	Name   string `json:"name"            example:"ch"`
	Status string `json:"status"          example:"ok"`
	Error  string `json:"error,omitempty" example:"dial tcp 127.0.0.1:9000: connect: connection refused"`
}

// ReadyResponse folds the store checks into ok, degraded or fail
type ReadyResponse struct {
	Status string       `json:"status" example:"ok"`
	Checks []ReadyCheck `json:"checks"`
	Now    string       `json:"now"    example:"2026-03-01T09:04:12Z"`
}

// ServiceResponse reports the process name and uptime in seconds
type ServiceResponse struct {
	Name    string `json:"name"    example:"captchad"`
	Started string `json:"started" example:"2026-03-01T09:00:00Z"`
	Uptime  int64  `json:"uptime"  example:"252"`
}

// RegistryResponse counts what the captcha registry currently holds
type RegistryResponse struct {
	Registered int  `json:"registered" example:"4"`
	Waiting    int  `json:"waiting"    example:"1"`
	Clients    int  `json:"clients"    example:"2"`
	Connected  bool `json:"connected"  example:"true"`
}
