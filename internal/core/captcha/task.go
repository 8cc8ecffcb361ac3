package captcha

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"captchahub/internal/platform/logger"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Task is one challenge instance
// fields are guarded by mu; imu serializes interactive steps so polling never waits on the browser
// the session is released through closeOnce only
type Task struct {
	id         string
	challenge  Challenge
	resultType ResultType
	init       SessionInitializer
	env        *env

	mu        sync.Mutex
	handlers  []Handler
	result    any // string or Point
	waitUntil time.Time
	failure   string
	status    Status
	data      string
	stage     InteractionStage
	session   Session
	closed    bool

	imu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newTask(id string, ch Challenge, rt ResultType, init SessionInitializer, e *env) *Task {
	return &Task{
		id:         id,
		challenge:  ch,
		resultType: rt,
		init:       init,
		env:        e,
		status:     StatusInit,
	}
}

// ID returns the task id
func (t *Task) ID() string { return t.id }

// Challenge returns the challenge reference
func (t *Task) Challenge() Challenge { return t.challenge }

// ResultType returns the fixed result type
func (t *Task) ResultType() ResultType { return t.resultType }

// IsTextual reports a textual task
func (t *Task) IsTextual() bool { return t.resultType == ResultTextual }

// IsPositional reports a positional task
func (t *Task) IsPositional() bool { return t.resultType == ResultPositional }

// IsInteractive reports an interactive task
func (t *Task) IsInteractive() bool { return t.resultType == ResultInteractive }

func (t *Task) String() string { return fmt.Sprintf("<CaptchaTask '%s'>", t.id) }

// Status returns the dispatch status
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SetWaiting extends the waiting window to now+d and marks the task waiting
// the deadline never moves backwards
func (t *Task) SetWaiting(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if until := t.env.now().Add(d); until.After(t.waitUntil) {
		t.waitUntil = until
	}
	t.status = StatusWaiting
}

// WaitUntil returns the current deadline, zero when never set
func (t *Task) WaitUntil() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waitUntil
}

// IsWaiting is false once a result or failure exists or the deadline passed
func (t *Task) IsWaiting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.result != nil || t.failure != "" {
		return false
	}
	return !t.env.now().After(t.waitUntil)
}

// TimedOut reports whether the deadline passed
func (t *Task) TimedOut() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.env.now().After(t.waitUntil)
}

// SetWaitingForUser marks the task as taken by a human operator
func (t *Task) SetWaitingForUser(exclusive bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if exclusive {
		t.status = StatusUser
	} else {
		t.status = StatusSharedUser
	}
}

// SetResult parses text according to the result type and stores it
// a malformed positional answer leaves the result empty without raising anything
// returns false when nothing was stored, including when a result already exists
func (t *Task) SetResult(text string) bool {
	var (
		val  any
		kind = EventResult
	)
	switch t.resultType {
	case ResultPositional:
		if p, ok := parsePoint(text); ok {
			val = p
		} else {
			kind = EventResultMalformed
		}
	default:
		val = text
	}

	t.mu.Lock()
	if val != nil && t.result != nil {
		kind = EventResultIgnored
		val = nil
	}
	if val != nil {
		t.result = val
	}
	t.mu.Unlock()

	if kind != EventResult {
		t.log().Debug().Str("event", string(kind)).Msg("result not stored")
	}
	t.env.emit(Event{Kind: kind, TaskID: t.id, ResultType: t.resultType})
	return kind == EventResult
}

func parsePoint(text string) (Point, bool) {
	parts := strings.Split(text, ",")
	if len(parts) < 2 {
		return Point{}, false
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Point{}, false
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Point{}, false
	}
	return Point{X: x, Y: y}, true
}

// Result returns the stored result, a string or a Point, nil when unset
// text results are re-encoded to valid UTF-8
func (t *Task) Result() any {
	t.mu.Lock()
	r := t.result
	t.mu.Unlock()
	if s, ok := r.(string); ok {
		return reencode(s)
	}
	return r
}

// ResultText returns a textual or interactive result, "" otherwise
func (t *Task) ResultText() string {
	s, _ := t.Result().(string)
	return s
}

// ResultPoint returns a positional result
func (t *Task) ResultPoint() (Point, bool) {
	p, ok := t.Result().(Point)
	return p, ok
}

// HasResult reports whether a result is stored
func (t *Task) HasResult() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result != nil
}

// reencode forces UTF-8, replacing invalid sequences rather than failing
func reencode(s string) string {
	out, _, err := transform.String(unicode.UTF8.NewDecoder(), s)
	if err != nil {
		return strings.ToValidUTF8(s, "�")
	}
	return out
}

// Failure returns the failure message, "" when the task did not fail
func (t *Task) Failure() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

// Fail records msg as the failure, the first message wins
func (t *Task) Fail(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failure == "" {
		t.failure = msg
	}
}

// Data returns the handler scratch slot, for interactive tasks the current challenge markup
func (t *Task) Data() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data
}

// SetData replaces the handler scratch slot
func (t *Task) SetData(s string) {
	t.mu.Lock()
	t.data = s
	t.mu.Unlock()
}

// Claim records h as a handler taking care of this task
func (t *Task) Claim(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h != nil && !containsHandler(t.handlers, h) {
		t.handlers = append(t.handlers, h)
	}
}

// Handlers returns the claiming handlers in claim order
func (t *Task) Handlers() []Handler {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Handler(nil), t.handlers...)
}

// Invalid tells every claiming handler the answer was rejected
func (t *Task) Invalid(ctx context.Context) {
	t.verdict(ctx, EventVerdictInvalid, func(h Handler) error { return h.CaptchaInvalid(ctx, t) })
}

// Correct tells every claiming handler the answer was accepted
func (t *Task) Correct(ctx context.Context) {
	t.verdict(ctx, EventVerdictCorrect, func(h Handler) error { return h.CaptchaCorrect(ctx, t) })
}

func (t *Task) verdict(_ context.Context, kind EventKind, call func(Handler) error) {
	for _, h := range t.Handlers() {
		if err := safeCall(func() error { return call(h) }); err != nil {
			t.env.handlerFailed(t, h, string(kind), err)
		}
	}
	t.env.emit(Event{Kind: kind, TaskID: t.id, ResultType: t.resultType})
}

// View is a point-in-time copy of a task for transport layers
type View struct {
	ID         string     `json:"id"`
	Status     Status     `json:"status"`
	ResultType ResultType `json:"result_type"`
	Source     string     `json:"source"`
	Format     string     `json:"format"`
	File       string     `json:"file,omitempty"`
	Data       string     `json:"data,omitempty"`
	Stage      string     `json:"stage,omitempty"`
	Result     any        `json:"result,omitempty"`
	Failure    string     `json:"failure,omitempty"`
	WaitUntil  time.Time  `json:"wait_until"`
	Waiting    bool       `json:"waiting"`
	TimedOut   bool       `json:"timed_out"`
	Handlers   []string   `json:"handlers,omitempty"`
}

// View snapshots the task
func (t *Task) View() View {
	now := t.env.now()
	t.mu.Lock()
	v := View{
		ID:         t.id,
		Status:     t.status,
		ResultType: t.resultType,
		Source:     t.challenge.Source,
		Format:     t.challenge.Format,
		File:       t.challenge.File,
		Data:       t.data,
		Failure:    t.failure,
		WaitUntil:  t.waitUntil,
		TimedOut:   now.After(t.waitUntil),
	}
	v.Waiting = t.result == nil && t.failure == "" && !v.TimedOut
	if t.resultType == ResultInteractive {
		v.Stage = t.stage.String()
	}
	for _, h := range t.handlers {
		v.Handlers = append(v.Handlers, HandlerName(h))
	}
	t.mu.Unlock()
	v.Result = t.Result()
	return v
}

func (t *Task) log() *logger.Logger {
	l := t.env.log.With().Str("task_id", t.id).Str("result_type", string(t.resultType)).Logger()
	return &l
}
