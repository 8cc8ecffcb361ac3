package domain

import "context"

// ServicePort is consumed by handlers, the CLI client mirrors it over HTTP
type ServicePort interface {
	Next(ctx context.Context, in NextInput) (NextOutput, error)
	Status(ctx context.Context, in TaskRef) (TaskView, error)
	Answer(ctx context.Context, in ResultInput) (TaskView, error)
	Start(ctx context.Context, in TaskRef) (StartOutput, error)
	Interact(ctx context.Context, in InteractInput) (StepOutput, error)
	Reload(ctx context.Context, in TaskRef) (TaskView, error)
	Verdict(ctx context.Context, in VerdictInput) (TaskView, error)
	Abort(ctx context.Context, in TaskRef) (TaskView, error)
	Submit(ctx context.Context, in SubmitInput) (SubmitOutput, error)
	List(ctx context.Context) (ListOutput, error)
}

// WorkerPort sweeps expired tasks until ctx ends
type WorkerPort interface {
	Run(ctx context.Context) error
}
