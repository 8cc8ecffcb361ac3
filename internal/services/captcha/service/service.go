// Package service implements the client-facing captcha workflows over the task registry
package service

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"captchahub/internal/core/captcha"
	perr "captchahub/internal/platform/errors"
	"captchahub/internal/platform/logger"
	dom "captchahub/internal/services/captcha/domain"
	"captchahub/internal/services/captcha/presence"
)

// Service implements both the client and the sweeper ports
type Service interface {
	dom.ServicePort
	dom.WorkerPort
}

// Config controls retention and sweeping
type Config struct {
	SweepInterval time.Duration
	Retention     time.Duration // how long settled or expired tasks stay visible
}

// Svc implements the captcha service
type Svc struct {
	mgr      *captcha.Manager
	presence *presence.Tracker
	cfg      Config
	log      *logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	settled  map[string]settledTask // answered, aborted or rejected tasks no longer in the registry
	expiring map[string]time.Time   // first time the sweeper saw a registered task timed out
}

type settledTask struct {
	t  *captcha.Task
	at time.Time
}

// New constructs the service
func New(mgr *captcha.Manager, tr *presence.Tracker, cfg Config) *Svc {
	if mgr == nil {
		panic("captcha.Service requires a non nil Manager")
	}
	if tr == nil {
		tr = presence.New(0)
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 10 * time.Minute
	}
	return &Svc{
		mgr:      mgr,
		presence: tr,
		cfg:      cfg,
		log:      logger.Named("captcha-service"),
		now:      time.Now,
		settled:  map[string]settledTask{},
		expiring: map[string]time.Time{},
	}
}

// Next hands the oldest waiting task to the calling client
func (s *Svc) Next(_ context.Context, in dom.NextInput) (dom.NextOutput, error) {
	s.presence.Touch(in.ClientID)
	t := s.mgr.GetTask()
	if t == nil {
		return dom.NextOutput{}, nil
	}
	t.SetWaitingForUser(in.Exclusive)
	v := t.View()
	return dom.NextOutput{Found: true, Task: &v}, nil
}

// Status returns a registered or recently settled task
// only solver callers refresh presence, and only for a known task
func (s *Svc) Status(_ context.Context, in dom.TaskRef) (dom.TaskView, error) {
	t, err := s.lookup(in.ID)
	if err != nil {
		return dom.TaskView{}, err
	}
	if in.Solver {
		s.presence.Touch(in.ClientID)
	}
	return t.View(), nil
}

// Answer stores a client result and drops the task from the registry
// a malformed positional answer is not an error, the task just keeps waiting
func (s *Svc) Answer(_ context.Context, in dom.ResultInput) (dom.TaskView, error) {
	s.presence.Touch(in.ClientID)
	t, err := s.registered(in.ID)
	if err != nil {
		return dom.TaskView{}, err
	}
	switch {
	case t.HasResult():
		return dom.TaskView{}, perr.Conflictf("captcha task %s already answered", t.ID())
	case t.Failure() != "":
		return dom.TaskView{}, perr.Conflictf("captcha task %s failed: %s", t.ID(), t.Failure())
	case !t.WaitUntil().IsZero() && t.TimedOut():
		return dom.TaskView{}, perr.Expiredf("captcha task %s timed out", t.ID())
	}
	if !t.SetResult(in.Result) {
		return t.View(), nil
	}
	s.settle(t)
	return t.View(), nil
}

// Start opens the browser session of an interactive task
func (s *Svc) Start(ctx context.Context, in dom.TaskRef) (dom.StartOutput, error) {
	s.presence.Touch(in.ClientID)
	t, err := s.registered(in.ID)
	if err != nil {
		return dom.StartOutput{}, err
	}
	if !t.IsInteractive() {
		return dom.StartOutput{}, perr.WithField(perr.InvalidArgf("captcha task %s is %s, not interactive", t.ID(), t.ResultType()), "id")
	}
	started, err := t.StartInteraction(ctx)
	if err != nil {
		return dom.StartOutput{}, err
	}
	out := dom.StartOutput{Started: started, Completed: t.Stage() == captcha.StageCompleted}
	if out.Completed {
		s.settle(t)
	}
	out.Task = t.View()
	return out, nil
}

// Interact clicks one element of the challenge
func (s *Svc) Interact(ctx context.Context, in dom.InteractInput) (dom.StepOutput, error) {
	s.presence.Touch(in.ClientID)
	t, err := s.registered(in.ID)
	if err != nil {
		return dom.StepOutput{}, err
	}
	done, err := t.Interact(ctx, in.Element, in.Index)
	if err != nil {
		return dom.StepOutput{}, err
	}
	if done {
		s.settle(t)
	}
	return dom.StepOutput{Done: done, Task: t.View()}, nil
}

// Reload recaptures the current challenge markup
func (s *Svc) Reload(ctx context.Context, in dom.TaskRef) (dom.TaskView, error) {
	s.presence.Touch(in.ClientID)
	t, err := s.registered(in.ID)
	if err != nil {
		return dom.TaskView{}, err
	}
	if err := t.Reload(ctx); err != nil {
		return dom.TaskView{}, err
	}
	return t.View(), nil
}

// Verdict relays whether the answer worked to the handlers that claimed the task
func (s *Svc) Verdict(ctx context.Context, in dom.VerdictInput) (dom.TaskView, error) {
	t, err := s.lookup(in.ID)
	if err != nil {
		return dom.TaskView{}, err
	}
	if !t.HasResult() {
		return dom.TaskView{}, perr.Conflictf("captcha task %s has no result yet", t.ID())
	}
	if *in.Correct {
		t.Correct(ctx)
	} else {
		t.Invalid(ctx)
	}
	return t.View(), nil
}

// Abort drops a task and closes its browser session
func (s *Svc) Abort(_ context.Context, in dom.TaskRef) (dom.TaskView, error) {
	t, err := s.registered(in.ID)
	if err != nil {
		return dom.TaskView{}, err
	}
	if in.Solver {
		s.presence.Touch(in.ClientID)
	}
	t.Fail("aborted by client")
	s.settle(t)
	return t.View(), nil
}

// Submit creates and dispatches a task for a remote worker
func (s *Svc) Submit(ctx context.Context, in dom.SubmitInput) (dom.SubmitOutput, error) {
	rt, ok := captcha.ParseResultType(in.ResultType)
	if !ok {
		return dom.SubmitOutput{}, perr.WithField(perr.InvalidArgf("unknown result type %q", in.ResultType), "result_type")
	}
	var data []byte
	if in.Data != "" {
		b, err := base64.StdEncoding.DecodeString(in.Data)
		if err != nil {
			return dom.SubmitOutput{}, perr.WithField(perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "data is not base64"), "data")
		}
		data = b
	}

	t := s.mgr.NewTask(captcha.Challenge{Source: in.Source, Format: in.Format, Data: data}, rt, nil)
	if !s.mgr.HandleCaptcha(ctx, t) {
		s.remember(t)
		return dom.SubmitOutput{}, perr.Unavailablef("captcha task %s: %s", t.ID(), captcha.FailureNoClient)
	}
	return dom.SubmitOutput{Accepted: true, Task: t.View()}, nil
}

// List returns the registry snapshot and the connected clients
func (s *Svc) List(_ context.Context) (dom.ListOutput, error) {
	clients := s.presence.Connected()
	return dom.ListOutput{
		Tasks:     s.mgr.Snapshot(),
		Clients:   clients,
		Connected: len(clients) > 0,
	}, nil
}

// registered finds a task still held by the registry
func (s *Svc) registered(id string) (*captcha.Task, error) {
	if t := s.mgr.GetTaskByID(id); t != nil {
		return t, nil
	}
	s.mu.Lock()
	_, gone := s.settled[id]
	s.mu.Unlock()
	if gone {
		return nil, perr.WithField(perr.Expiredf("captcha task %s is no longer pending", id), "id")
	}
	return nil, perr.WithField(perr.NotFoundf("captcha task %s not found", id), "id")
}

// lookup also sees settled tasks within retention
func (s *Svc) lookup(id string) (*captcha.Task, error) {
	if t := s.mgr.GetTaskByID(id); t != nil {
		return t, nil
	}
	s.mu.Lock()
	st, ok := s.settled[id]
	s.mu.Unlock()
	if ok {
		return st.t, nil
	}
	return nil, perr.WithField(perr.NotFoundf("captcha task %s not found", id), "id")
}

// settle removes t from the registry, releases its browser session
// and keeps it readable for Status and Verdict
func (s *Svc) settle(t *captcha.Task) {
	if t.IsInteractive() {
		if err := t.Abort(); err != nil {
			s.log.Warn().Err(err).Str("task_id", t.ID()).Msg("close browser session")
		}
	}
	s.mgr.RemoveTask(t)
	s.remember(t)
}

func (s *Svc) remember(t *captcha.Task) {
	s.mu.Lock()
	s.settled[t.ID()] = settledTask{t: t, at: s.now()}
	delete(s.expiring, t.ID())
	s.mu.Unlock()
}
