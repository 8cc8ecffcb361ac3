package captcha

import (
	"context"
	"fmt"
	"sync"
)

// Handler is the plugin capability that can solve or judge captcha tasks
// a handler claims a task by calling Task.Claim from NewCaptchaTask
type Handler interface {
	NewCaptchaTask(ctx context.Context, t *Task) error
	CaptchaInvalid(ctx context.Context, t *Task) error
	CaptchaCorrect(ctx context.Context, t *Task) error
}

// HandlerSource lists the handlers currently active in the host
type HandlerSource interface {
	Active() []Handler
}

// Presence answers whether a solving client is connected right now
type Presence interface {
	ClientConnected() bool
}

// PresenceFunc adapts a plain func to Presence
type PresenceFunc func() bool

// ClientConnected implements Presence
func (f PresenceFunc) ClientConnected() bool { return f() }

// Named is implemented by handlers that want a stable name in logs and metrics
type Named interface {
	Name() string
}

// HandlerName returns a label for h
func HandlerName(h Handler) string {
	if n, ok := h.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", h)
}

// Handlers is the activation set of plugin handlers, ordered by activation
// handlers must be comparable (pointer receivers in practice)
type Handlers struct {
	mu   sync.RWMutex
	list []Handler
}

// NewHandlers returns an activation set holding hs
func NewHandlers(hs ...Handler) *Handlers {
	s := &Handlers{}
	s.Activate(hs...)
	return s
}

// Activate appends handlers that are not active yet
func (s *Handlers) Activate(hs ...Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hs {
		if h == nil || containsHandler(s.list, h) {
			continue
		}
		s.list = append(s.list, h)
	}
}

// Deactivate removes h if active
func (s *Handlers) Deactivate(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, x := range s.list {
		if x == h {
			s.list = append(s.list[:i], s.list[i+1:]...)
			return
		}
	}
}

// Active returns a copy of the active handlers
func (s *Handlers) Active() []Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Handler(nil), s.list...)
}

func containsHandler(list []Handler, h Handler) bool {
	for _, x := range list {
		if x == h {
			return true
		}
	}
	return false
}

// safeCall runs fn and turns a panic into an error
func safeCall(fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("handler panic: %v", v)
		}
	}()
	return fn()
}
