package captcha

import (
	"context"
	"strconv"
	"sync"
	"time"

	"captchahub/internal/platform/logger"
)

// DefaultGrace is how long a connected client gets to answer a new task
const DefaultGrace = 500 * time.Second

// DefaultReadyTimeout bounds the wait for the challenge page to finish loading
const DefaultReadyTimeout = 10 * time.Second

// FailureNoClient is recorded on tasks nobody can solve
const FailureNoClient = "no client connected for captcha decrypting"

// Options configures a Manager
type Options struct {
	Grace     time.Duration
	Debug     bool // log handler failures
	Presence  Presence
	Handlers  HandlerSource
	Launcher  Launcher
	Browser   BrowserConfig
	Humanizer *Humanizer
	Observers []Observer
	Logger    *logger.Logger
	Clock     func() time.Time
}

// Manager is the process-wide ordered registry of tasks
type Manager struct {
	grace    time.Duration
	presence Presence
	handlers HandlerSource
	env      *env

	mu     sync.Mutex
	tasks  []*Task
	nextID uint64
}

// NewManager builds a Manager, zero options fall back to defaults
func NewManager(opt Options) *Manager {
	if opt.Grace <= 0 {
		opt.Grace = DefaultGrace
	}
	if opt.Presence == nil {
		opt.Presence = PresenceFunc(func() bool { return false })
	}
	if opt.Handlers == nil {
		opt.Handlers = NewHandlers()
	}
	if opt.Humanizer == nil {
		opt.Humanizer = NewHumanizer(nil, nil)
	}
	if opt.Logger == nil {
		opt.Logger = logger.Named("captcha")
	}
	if opt.Clock == nil {
		opt.Clock = time.Now
	}
	if opt.Browser.ReadyTimeout <= 0 {
		opt.Browser.ReadyTimeout = DefaultReadyTimeout
	}
	return &Manager{
		grace:    opt.Grace,
		presence: opt.Presence,
		handlers: opt.Handlers,
		env: &env{
			log:       opt.Logger,
			now:       opt.Clock,
			debug:     opt.Debug,
			observers: append([]Observer(nil), opt.Observers...),
			launcher:  opt.Launcher,
			browser:   opt.Browser,
			human:     opt.Humanizer,
		},
	}
}

// NewTask allocates the next id and returns an unregistered task
func (m *Manager) NewTask(ch Challenge, rt ResultType, init SessionInitializer) *Task {
	if !rt.Valid() {
		rt = ResultTextual
	}
	m.mu.Lock()
	m.nextID++
	id := strconv.FormatUint(m.nextID, 10)
	m.mu.Unlock()

	t := newTask(id, ch, rt, init, m.env)
	m.env.emit(Event{Kind: EventCreated, TaskID: id, ResultType: rt})
	return t
}

// HandleCaptcha offers t to the active handlers and registers it when anyone can answer
// returns false and records a failure when no handler claimed it and no client is connected
func (m *Manager) HandleCaptcha(ctx context.Context, t *Task) bool {
	connected := m.presence.ClientConnected()
	if connected {
		t.SetWaiting(m.grace)
	}

	for _, h := range m.handlers.Active() {
		if err := safeCall(func() error { return h.NewCaptchaTask(ctx, t) }); err != nil {
			m.env.handlerFailed(t, h, "new_task", err)
		}
	}

	if len(t.Handlers()) == 0 && !connected {
		t.Fail(FailureNoClient)
		t.log().Info().Msg("no solver available")
		m.env.emit(Event{Kind: EventRejected, TaskID: t.id, ResultType: t.resultType, Detail: FailureNoClient})
		return false
	}

	m.mu.Lock()
	dup := false
	for _, x := range m.tasks {
		if x == t {
			dup = true
			break
		}
	}
	if !dup {
		m.tasks = append(m.tasks, t)
	}
	m.mu.Unlock()

	if !dup {
		m.env.emit(Event{Kind: EventRegistered, TaskID: t.id, ResultType: t.resultType})
	}
	return true
}

// GetTask returns the oldest task an operator may pick up, nil if none
func (m *Manager) GetTask() *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		switch t.Status() {
		case StatusWaiting, StatusSharedUser:
			return t
		}
	}
	return nil
}

// GetTaskByID returns the registered task with id, nil if none
func (m *Manager) GetTaskByID(id string) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.id == id {
			return t
		}
	}
	return nil
}

// RemoveTask drops t from the registry, a no-op when absent
func (m *Manager) RemoveTask(t *Task) {
	if t == nil {
		return
	}
	removed := false
	m.mu.Lock()
	for i, x := range m.tasks {
		if x == t {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			removed = true
			break
		}
	}
	m.mu.Unlock()
	if removed {
		m.env.emit(Event{Kind: EventRemoved, TaskID: t.id, ResultType: t.resultType})
	}
}

// Len returns the number of registered tasks
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Snapshot returns views of every registered task in registry order
func (m *Manager) Snapshot() []View {
	m.mu.Lock()
	list := append([]*Task(nil), m.tasks...)
	m.mu.Unlock()

	out := make([]View, 0, len(list))
	for _, t := range list {
		out = append(out, t.View())
	}
	return out
}

// env is shared by the manager and every task it created
type env struct {
	log       *logger.Logger
	now       func() time.Time
	debug     bool
	observers []Observer
	launcher  Launcher
	browser   BrowserConfig
	human     *Humanizer
}

func (e *env) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	for _, o := range e.observers {
		o.Observe(ev)
	}
}

func (e *env) handlerFailed(t *Task, h Handler, op string, err error) {
	name := HandlerName(h)
	if e.debug {
		e.log.Debug().Err(err).
			Str("task_id", t.id).
			Str("handler", name).
			Str("op", op).
			Msg("captcha handler failed")
	}
	e.emit(Event{Kind: EventHandlerFailed, TaskID: t.id, ResultType: t.resultType, Handler: name, Detail: op})
}
