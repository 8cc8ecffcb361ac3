package domain

import "context"

// ServicePort is consumed by handlers and other modules
type ServicePort interface {
	Events(ctx context.Context, in EventsInput) ([]EventsRow, error)
	Solve(ctx context.Context, in SolveInput) ([]SolveRow, error)
	Handlers(ctx context.Context, in HandlersInput) ([]HandlersRow, error)
}
