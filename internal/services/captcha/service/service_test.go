package service

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"captchahub/internal/core/captcha"
	perr "captchahub/internal/platform/errors"
	"captchahub/internal/platform/metrics"
	dom "captchahub/internal/services/captcha/domain"
	"captchahub/internal/services/captcha/presence"

	"github.com/rs/zerolog"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc *Svc
	mgr *captcha.Manager
	clk *clock
	col *metrics.Collector
	tr  *presence.Tracker
}

func newFixture(t *testing.T, opts ...func(*captcha.Options)) *fixture {
	t.Helper()
	clk := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	tr := presence.New(30 * time.Second).WithClock(clk.Now)
	col := metrics.New("test")
	nop := zerolog.Nop()
	o := captcha.Options{
		Presence:  tr,
		Logger:    &nop,
		Clock:     clk.Now,
		Observers: []captcha.Observer{NewMetricsObserver(col)},
	}
	for _, fn := range opts {
		fn(&o)
	}
	mgr := captcha.NewManager(o)
	svc := New(mgr, tr, Config{SweepInterval: time.Second, Retention: time.Minute})
	svc.now = clk.Now
	return &fixture{svc: svc, mgr: mgr, clk: clk, col: col, tr: tr}
}

// stubBrowser opens sessions that show a challenge and never produce a token
type stubBrowser struct {
	mu     sync.Mutex
	closes int
}

func (b *stubBrowser) Launch(_ context.Context, _ captcha.LaunchOptions) (captcha.Session, error) {
	return &stubSession{b: b}, nil
}

func (b *stubBrowser) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

type stubSession struct{ b *stubBrowser }

type stubElement struct{}

func (stubElement) Click(context.Context) error { return nil }
func (stubElement) Attribute(context.Context, string) (string, error) { return "", nil }

func (*stubSession) Navigate(context.Context, string) error { return nil }
func (*stubSession) FindByID(context.Context, string) (captcha.Element, error) {
	return stubElement{}, nil
}
func (*stubSession) FindByXPath(context.Context, string) (captcha.Element, error) {
	return stubElement{}, nil
}
func (*stubSession) FindAllByClass(context.Context, string) ([]captcha.Element, error) {
	return []captcha.Element{stubElement{}}, nil
}
func (*stubSession) SwitchToFrame(context.Context, captcha.Element) error { return nil }
func (*stubSession) SwitchToTop(context.Context) error { return nil }
func (*stubSession) PageSource(context.Context) (string, error) { return "<html/>", nil }
func (*stubSession) ReadyState(context.Context) (string, error) { return "complete", nil }
func (*stubSession) WaitUntil(context.Context, time.Duration, captcha.Condition) error {
	return nil
}

func (s *stubSession) Close() error {
	s.b.mu.Lock()
	s.b.closes++
	s.b.mu.Unlock()
	return nil
}

func withBrowser(b *stubBrowser) func(*captcha.Options) {
	return func(o *captcha.Options) {
		o.Launcher = b
		o.Browser = captcha.BrowserConfig{ExtensionPath: "/opt/ublock.xpi", DriverBinary: "/usr/bin/geckodriver"}
		o.Humanizer = captcha.NewHumanizer(nil, func(context.Context, time.Duration) error { return nil })
	}
}

func b(v bool) *bool { return &v }

func TestSvc_OperatorRoundTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	next, err := f.svc.Next(ctx, dom.NextInput{ClientID: "op"})
	if err != nil || next.Found {
		t.Fatalf("empty registry: %+v %v", next, err)
	}

	sub, err := f.svc.Submit(ctx, dom.SubmitInput{
		Source: "img-1",
		Format: "png",
		Data:   base64.StdEncoding.EncodeToString([]byte("png")),
	})
	if err != nil || !sub.Accepted {
		t.Fatalf("submit: %+v %v", sub, err)
	}
	if sub.Task.Status != captcha.StatusWaiting {
		t.Fatalf("status = %s", sub.Task.Status)
	}

	next, err = f.svc.Next(ctx, dom.NextInput{ClientID: "op"})
	if err != nil || !next.Found || next.Task.ID != sub.Task.ID {
		t.Fatalf("next: %+v %v", next, err)
	}
	if next.Task.Status != captcha.StatusSharedUser {
		t.Fatalf("status = %s", next.Task.Status)
	}

	v, err := f.svc.Answer(ctx, dom.ResultInput{ID: sub.Task.ID, Result: "x7kq", ClientID: "op"})
	if err != nil || v.Result != "x7kq" {
		t.Fatalf("answer: %+v %v", v, err)
	}
	if f.mgr.Len() != 0 {
		t.Fatal("answered task should leave the registry")
	}

	st, err := f.svc.Status(ctx, dom.TaskRef{ID: sub.Task.ID})
	if err != nil || st.Result != "x7kq" {
		t.Fatalf("status after answer: %+v %v", st, err)
	}
	if _, err := f.svc.Verdict(ctx, dom.VerdictInput{ID: sub.Task.ID, Correct: b(true)}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Answer(ctx, dom.ResultInput{ID: sub.Task.ID, Result: "again"}); !perr.IsCode(err, perr.ErrorCodeExpired) {
		t.Fatalf("second answer err = %v", err)
	}
}

func TestSvc_SubmitWithoutSolver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, dom.SubmitInput{Source: "img"})
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("err = %v", err)
	}
	st, err := f.svc.Status(ctx, dom.TaskRef{ID: "1"})
	if err != nil || st.Failure != captcha.FailureNoClient {
		t.Fatalf("rejected task status: %+v %v", st, err)
	}
	if f.mgr.Len() != 0 {
		t.Fatal("rejected task must not be registered")
	}
}

func TestSvc_SubmitValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		in    dom.SubmitInput
		field string
	}{
		{"bad result type", dom.SubmitInput{Source: "s", ResultType: "audio"}, "result_type"},
		{"bad base64", dom.SubmitInput{Data: "%%%"}, "data"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tc.in)
			e, ok := perr.As(err)
			if !ok || e.Code() != perr.ErrorCodeInvalidArgument || e.Field() != tc.field {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestSvc_MalformedPositionalKeepsWaiting(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.svc.Next(ctx, dom.NextInput{ClientID: "op"})
	sub, err := f.svc.Submit(ctx, dom.SubmitInput{Source: "grid", ResultType: "positional"})
	if err != nil {
		t.Fatal(err)
	}

	v, err := f.svc.Answer(ctx, dom.ResultInput{ID: sub.Task.ID, Result: "left"})
	if err != nil {
		t.Fatalf("malformed answer must not error: %v", err)
	}
	if v.Result != nil || !v.Waiting {
		t.Fatalf("view = %+v", v)
	}
	if f.mgr.Len() != 1 {
		t.Fatal("task should stay registered")
	}

	v, err = f.svc.Answer(ctx, dom.ResultInput{ID: sub.Task.ID, Result: "12, 34"})
	if err != nil || v.Result != (captcha.Point{X: 12, Y: 34}) {
		t.Fatalf("view = %+v, %v", v, err)
	}
}

func TestSvc_AnswerAfterDeadline(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.svc.Next(ctx, dom.NextInput{ClientID: "op"})
	sub, _ := f.svc.Submit(ctx, dom.SubmitInput{Source: "img"})

	f.clk.Advance(captcha.DefaultGrace + time.Second)
	if _, err := f.svc.Answer(ctx, dom.ResultInput{ID: sub.Task.ID, Result: "late"}); !perr.IsCode(err, perr.ErrorCodeExpired) {
		t.Fatalf("err = %v", err)
	}
}

func TestSvc_ErrorsByID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Status(ctx, dom.TaskRef{ID: "404"})
	if e, ok := perr.As(err); !ok || e.Code() != perr.ErrorCodeNotFound || e.Field() != "id" {
		t.Fatalf("status err = %v", err)
	}

	_, _ = f.svc.Next(ctx, dom.NextInput{ClientID: "op"})
	sub, _ := f.svc.Submit(ctx, dom.SubmitInput{Source: "img"})
	if _, err := f.svc.Verdict(ctx, dom.VerdictInput{ID: sub.Task.ID, Correct: b(false)}); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("verdict without result err = %v", err)
	}
}

func TestSvc_StartPreconditions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.svc.Next(ctx, dom.NextInput{ClientID: "op"})
	text, _ := f.svc.Submit(ctx, dom.SubmitInput{Source: "img"})
	if _, err := f.svc.Start(ctx, dom.TaskRef{ID: text.Task.ID}); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("textual start err = %v", err)
	}

	inter, _ := f.svc.Submit(ctx, dom.SubmitInput{Source: "https://example.test", ResultType: "interactive"})
	out, err := f.svc.Start(ctx, dom.TaskRef{ID: inter.Task.ID})
	if err != nil {
		t.Fatal(err)
	}
	if out.Started || out.Completed || out.Task.Stage != captcha.StageNotStarted.String() {
		t.Fatalf("unconfigured browser should not start: %+v", out)
	}
}

func TestSvc_Abort(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.svc.Next(ctx, dom.NextInput{ClientID: "op"})
	sub, _ := f.svc.Submit(ctx, dom.SubmitInput{Source: "img"})
	v, err := f.svc.Abort(ctx, dom.TaskRef{ID: sub.Task.ID})
	if err != nil || v.Failure != "aborted by client" {
		t.Fatalf("abort: %+v %v", v, err)
	}
	if f.mgr.Len() != 0 {
		t.Fatal("aborted task should leave the registry")
	}
}

func TestSvc_SweepExpired(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.svc.Next(ctx, dom.NextInput{ClientID: "op"})
	sub, _ := f.svc.Submit(ctx, dom.SubmitInput{Source: "img"})

	// past the deadline but inside retention
	f.clk.Advance(captcha.DefaultGrace + time.Second)
	if n := f.svc.sweep(); n != 0 {
		t.Fatalf("swept %d inside retention", n)
	}

	f.clk.Advance(time.Minute)
	if n := f.svc.sweep(); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	st, err := f.svc.Status(ctx, dom.TaskRef{ID: sub.Task.ID})
	if err != nil || st.Failure != "timed out" {
		t.Fatalf("swept status: %+v %v", st, err)
	}

	f.clk.Advance(time.Minute)
	f.svc.sweep()
	if _, err := f.svc.Status(ctx, dom.TaskRef{ID: sub.Task.ID}); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("settled task kept past retention: %v", err)
	}
}

func TestSvc_RunStopsOnCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestMetricsObserver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.svc.Next(ctx, dom.NextInput{ClientID: "op"})
	sub, _ := f.svc.Submit(ctx, dom.SubmitInput{Source: "img"})
	f.clk.Advance(3 * time.Second)
	_, _ = f.svc.Answer(ctx, dom.ResultInput{ID: sub.Task.ID, Result: "ok"})

	rec := httptest.NewRecorder()
	f.col.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`test_captcha_events_total{kind="registered",result_type="textual"} 1`,
		`test_captcha_events_total{kind="removed",result_type="textual"} 1`,
		`test_captcha_registered_tasks 0`,
		`test_captcha_solve_seconds_count{result_type="textual"} 1`,
		`test_captcha_solve_seconds_sum{result_type="textual"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in\n%s", want, body)
		}
	}
}

func TestSvc_PresenceOnlyFromSolvers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Submit(ctx, dom.SubmitInput{Source: "img"}); !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("first submit err = %v", err)
	}

	polls := []dom.TaskRef{
		{ID: "999", ClientID: "worker-1"},
		{ID: "1", ClientID: "worker-1"},
		{ID: "999", ClientID: "op", Solver: true},
	}
	for _, in := range polls {
		_, _ = f.svc.Status(ctx, in)
		_, _ = f.svc.Abort(ctx, in)
	}
	if f.tr.ClientConnected() {
		t.Fatal("polling without a solver role or for an unknown task must not count as connected")
	}
	if _, err := f.svc.Submit(ctx, dom.SubmitInput{Source: "img"}); !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("submit after worker polls err = %v", err)
	}

	if _, err := f.svc.Status(ctx, dom.TaskRef{ID: "1", ClientID: "op", Solver: true}); err != nil {
		t.Fatal(err)
	}
	if !f.tr.ClientConnected() {
		t.Fatal("solver status poll should count as connected")
	}
}

func TestSvc_SettleClosesSession(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		settle func(t *testing.T, f *fixture, id string)
	}{
		{"answer", func(t *testing.T, f *fixture, id string) {
			if _, err := f.svc.Answer(context.Background(), dom.ResultInput{ID: id, Result: "tok"}); err != nil {
				t.Fatal(err)
			}
		}},
		{"abort", func(t *testing.T, f *fixture, id string) {
			if _, err := f.svc.Abort(context.Background(), dom.TaskRef{ID: id}); err != nil {
				t.Fatal(err)
			}
		}},
		{"sweep", func(t *testing.T, f *fixture, _ string) {
			f.clk.Advance(captcha.DefaultGrace + time.Second)
			f.svc.sweep()
			f.clk.Advance(2 * time.Minute)
			if n := f.svc.sweep(); n != 1 {
				t.Fatalf("swept %d", n)
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			b := &stubBrowser{}
			f := newFixture(t, withBrowser(b))
			ctx := context.Background()

			_, _ = f.svc.Next(ctx, dom.NextInput{ClientID: "op"})
			sub, err := f.svc.Submit(ctx, dom.SubmitInput{Source: "https://example.test", ResultType: "interactive"})
			if err != nil {
				t.Fatal(err)
			}
			out, err := f.svc.Start(ctx, dom.TaskRef{ID: sub.Task.ID})
			if err != nil || !out.Started || out.Completed {
				t.Fatalf("start: %+v %v", out, err)
			}

			tc.settle(t, f, sub.Task.ID)
			if n := b.Closes(); n != 1 {
				t.Fatalf("session closes = %d, want 1", n)
			}
			if f.mgr.Len() != 0 {
				t.Fatal("settled task should leave the registry")
			}

			// later cleanup never closes twice
			_, _ = f.svc.Abort(ctx, dom.TaskRef{ID: sub.Task.ID})
			f.clk.Advance(time.Hour)
			f.svc.sweep()
			if n := b.Closes(); n != 1 {
				t.Fatalf("session closes after cleanup = %d, want 1", n)
			}
		})
	}
}
