// Package domain holds DTOs for ledger stats http and service contracts
package domain

// Dates are UTC days, the end day is inclusive

// TimeRange defines a start and end day for queries
type TimeRange struct {
	Start string `json:"start" validate:"required,datetime=2006-01-02" example:"2026-03-01"`
	End   string `json:"end" validate:"required,datetime=2006-01-02" example:"2026-03-31"`
}

// EventsInput counts lifecycle events in a window
type EventsInput struct {
	Range      TimeRange `json:"range"`
	ResultType string    `json:"result_type,omitempty" validate:"omitempty,result_type" example:"textual"`
}

// EventsRow is one kind and result type bucket
type EventsRow struct {
	Kind       string `json:"kind" example:"registered"`
	ResultType string `json:"result_type" example:"textual"`
	Count      int64  `json:"count" example:"42"`
}

// SolveInput asks for answer latency per result type
type SolveInput struct {
	Range TimeRange `json:"range"`
}

// SolveRow summarizes the time between registration and the first result
type SolveRow struct {
	ResultType string  `json:"result_type" example:"positional"`
	Solved     int64   `json:"solved" example:"17"`
	AvgSeconds float64 `json:"avg_seconds" example:"12.5"`
	MaxSeconds float64 `json:"max_seconds" example:"80.1"`
}

// HandlersInput asks for solver plugin failures
type HandlersInput struct {
	Range TimeRange `json:"range"`
}

// HandlersRow counts failures of one handler
type HandlersRow struct {
	Handler  string `json:"handler" example:"capsolver"`
	Failures int64  `json:"failures" example:"3"`
}
