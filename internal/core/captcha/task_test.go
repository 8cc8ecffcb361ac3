package captcha

import (
	"context"
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestSetWaiting_NeverDecreases(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		f := newManagerFixture(t, nil)
		task := f.m.NewTask(Challenge{}, ResultTextual, nil)
		start := f.clock.Now()
		steps := rapid.SliceOfN(rapid.IntRange(0, 1000), 1, 30).Draw(rt, "seconds")

		var want time.Time
		for _, s := range steps {
			if until := start.Add(time.Duration(s) * time.Second); until.After(want) {
				want = until
			}
			prev := task.WaitUntil()
			task.SetWaiting(time.Duration(s) * time.Second)
			if task.WaitUntil().Before(prev) {
				rt.Fatalf("deadline moved back from %v to %v", prev, task.WaitUntil())
			}
		}
		if !task.WaitUntil().Equal(want) {
			rt.Fatalf("deadline = %v want %v", task.WaitUntil(), want)
		}
	})
}

func TestIsWaiting_Transitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		act  func(*Task, *fakeClock)
	}{
		{"result", func(task *Task, _ *fakeClock) { task.SetResult("abc") }},
		{"failure", func(task *Task, _ *fakeClock) { task.Fail("gone") }},
		{"deadline", func(_ *Task, c *fakeClock) { c.Advance(11 * time.Second) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newManagerFixture(t, nil)
			task := f.m.NewTask(Challenge{}, ResultTextual, nil)
			task.SetWaiting(10 * time.Second)
			if !task.IsWaiting() || task.TimedOut() {
				t.Fatal("fresh window should be waiting")
			}
			tc.act(task, f.clock)
			if task.IsWaiting() {
				t.Fatalf("%s should end waiting", tc.name)
			}
		})
	}
}

func TestTimedOut_ExactDeadlineIsNotPast(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, nil)
	task := f.m.NewTask(Challenge{}, ResultTextual, nil)
	task.SetWaiting(time.Second)
	f.clock.Advance(time.Second)
	if task.TimedOut() {
		t.Fatal("now == waitUntil is not timed out")
	}
	f.clock.Advance(time.Nanosecond)
	if !task.TimedOut() {
		t.Fatal("past the deadline should time out")
	}
}

func TestSetResult_Positional(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want *Point
	}{
		{"10,20", &Point{10, 20}},
		{" 3 , 4 ", &Point{3, 4}},
		{"1,2,3", &Point{1, 2}},
		{"-5,7", &Point{-5, 7}},
		{"abc", nil},
		{"1;2", nil},
		{"1,", nil},
		{"", nil},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			f := newManagerFixture(t, nil)
			task := f.m.NewTask(Challenge{}, ResultPositional, nil)
			ok := task.SetResult(tc.in)
			p, has := task.ResultPoint()
			if tc.want == nil {
				if ok || has || task.Result() != nil {
					t.Fatalf("malformed %q stored %v", tc.in, task.Result())
				}
				if task.Failure() != "" {
					t.Fatal("malformed input must not fail the task")
				}
				return
			}
			if !ok || !has || p != *tc.want {
				t.Fatalf("got %v,%v want %v", p, has, *tc.want)
			}
		})
	}
}

func TestSetResult_AtMostOnce(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, nil)
	task := f.m.NewTask(Challenge{}, ResultTextual, nil)
	if !task.SetResult("first") {
		t.Fatal("first result should be stored")
	}
	if task.SetResult("second") {
		t.Fatal("second result should be ignored")
	}
	if task.ResultText() != "first" {
		t.Fatalf("result = %q", task.ResultText())
	}
	if f.events.count(EventResultIgnored) != 1 {
		t.Fatal("expected an ignored event")
	}
}

func TestResultText_ReencodesInvalidUTF8(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, nil)
	task := f.m.NewTask(Challenge{}, ResultTextual, nil)
	task.SetResult("ab\xffc")
	if got := task.ResultText(); got != "ab�c" {
		t.Fatalf("result = %q", got)
	}
}

func TestVerdicts_NotifyClaimingHandlers(t *testing.T) {
	t.Parallel()

	claimer := &testHandler{name: "claimer", claim: true}
	flaky := &testHandler{name: "flaky", panics: true}
	bystander := &testHandler{name: "bystander"}
	f := newManagerFixture(t, func(o *Options) { o.Handlers = NewHandlers(claimer, bystander) })
	task := f.m.NewTask(Challenge{}, ResultTextual, nil)
	f.m.HandleCaptcha(context.Background(), task)
	task.Claim(flaky)
	task.Claim(flaky)

	task.Invalid(context.Background())
	task.Correct(context.Background())

	if claimer.invalid != 1 || claimer.correct != 1 {
		t.Fatalf("claimer saw invalid=%d correct=%d", claimer.invalid, claimer.correct)
	}
	if flaky.invalid != 1 {
		t.Fatalf("flaky claimed once, got %d invalid calls", flaky.invalid)
	}
	if bystander.invalid != 0 || bystander.correct != 0 {
		t.Fatal("non claiming handler must not be told")
	}
	if f.events.count(EventVerdictInvalid) != 1 || f.events.count(EventVerdictCorrect) != 1 {
		t.Fatal("expected one event per verdict")
	}
}

func TestFail_FirstMessageWins(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, nil)
	task := f.m.NewTask(Challenge{}, ResultTextual, nil)
	task.Fail("one")
	task.Fail("two")
	if task.Failure() != "one" {
		t.Fatalf("failure = %q", task.Failure())
	}
}

func TestTask_StringAndStatus(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, nil)
	task := f.m.NewTask(Challenge{}, ResultTextual, nil)
	if task.String() != "<CaptchaTask '1'>" {
		t.Fatalf("string = %q", task.String())
	}
	task.SetWaitingForUser(false)
	if task.Status() != StatusSharedUser {
		t.Fatalf("status = %q", task.Status())
	}
	task.SetWaitingForUser(true)
	if task.Status() != StatusUser {
		t.Fatalf("status = %q", task.Status())
	}
}

func TestHandlers_ActivationSet(t *testing.T) {
	t.Parallel()

	a := &testHandler{name: "a"}
	b := &testHandler{name: "b"}
	s := NewHandlers(a, a, b, nil)
	if got := s.Active(); len(got) != 2 {
		t.Fatalf("active = %d want 2", len(got))
	}
	s.Deactivate(a)
	got := s.Active()
	if len(got) != 1 || got[0] != b {
		t.Fatalf("active = %v", got)
	}
	if HandlerName(b) != "b" {
		t.Fatalf("name = %q", HandlerName(b))
	}
}

func TestSafeCall_RecoversPanic(t *testing.T) {
	t.Parallel()

	err := safeCall(func() error { panic("kaput") })
	if err == nil {
		t.Fatal("expected error from panic")
	}
	want := errors.New("x")
	if got := safeCall(func() error { return want }); got != want {
		t.Fatalf("err = %v", got)
	}
}

func TestParseResultType(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		want ResultType
		ok   bool
	}{
		"":            {ResultTextual, true},
		"Positional":  {ResultPositional, true},
		"interactive": {ResultInteractive, true},
		"audio":       {"audio", false},
	}
	for in, tc := range cases {
		got, ok := ParseResultType(in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseResultType(%q) = %q,%v", in, got, ok)
		}
	}
}
