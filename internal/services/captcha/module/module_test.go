package module

import (
	"context"
	"sync"
	"testing"
	"time"

	"captchahub/internal/adapters/browser/cdp"
	"captchahub/internal/adapters/browser/webdriver"
	"captchahub/internal/core/captcha"
	"captchahub/internal/modkit"
	"captchahub/internal/platform/config"
	dom "captchahub/internal/services/captcha/domain"
)

func TestFromConfig_Defaults(t *testing.T) {
	o := FromConfig(config.New())
	if o.Grace != captcha.DefaultGrace {
		t.Fatalf("grace = %v", o.Grace)
	}
	if o.Backend != BackendFirefox || !o.Headless {
		t.Fatalf("browser defaults = %+v", o)
	}
	if o.ClientWindow != 30*time.Second || o.Retention != 10*time.Minute {
		t.Fatalf("timing defaults = %+v", o)
	}
}

func TestFromConfig_Env(t *testing.T) {
	t.Setenv("CAPTCHA_GRACE", "90s")
	t.Setenv("CAPTCHA_BROWSER_BACKEND", "cdp")
	t.Setenv("CAPTCHA_HEADLESS", "false")
	t.Setenv("CAPTCHA_BROWSER_EXTENSION", "/opt/nopecha")

	o := FromConfig(config.New())
	if o.Grace != 90*time.Second || o.Backend != BackendCDP || o.Headless || o.Extension != "/opt/nopecha" {
		t.Fatalf("options = %+v", o)
	}
}

func TestLauncherBackend(t *testing.T) {
	t.Parallel()
	if _, ok := launcher("CDP").(*cdp.Launcher); !ok {
		t.Fatal("cdp backend")
	}
	if _, ok := launcher(BackendChrome).(*webdriver.Launcher); !ok {
		t.Fatal("chrome backend")
	}
	if _, ok := launcher("").(*webdriver.Launcher); !ok {
		t.Fatal("default backend")
	}
}

func TestNew_WiresPortsAndObservers(t *testing.T) {
	t.Setenv("CAPSOLVER_API_KEY", "")

	var kinds []captcha.EventKind
	obs := captcha.ObserverFunc(func(e captcha.Event) { kinds = append(kinds, e.Kind) })

	m := New(modkit.Deps{Cfg: config.New()}, Options{Observers: []captcha.Observer{obs}})
	defer m.Close()

	p, ok := m.Ports().(Ports)
	if !ok || p.Service == nil || p.Worker == nil {
		t.Fatalf("ports = %#v", m.Ports())
	}
	if n := len(m.Handlers().Active()); n != 0 {
		t.Fatalf("handlers active without api key: %d", n)
	}

	// a connected operator makes the submit land in the registry
	ctx := context.Background()
	if _, err := p.Service.Next(ctx, dom.NextInput{ClientID: "op"}); err != nil {
		t.Fatal(err)
	}
	out, err := p.Service.Submit(ctx, dom.SubmitInput{Source: "img"})
	if err != nil || !out.Accepted {
		t.Fatalf("submit: %+v %v", out, err)
	}
	if m.Manager().Len() != 1 {
		t.Fatalf("registry len = %d", m.Manager().Len())
	}
	if len(kinds) < 2 || kinds[0] != captcha.EventCreated || kinds[1] != captcha.EventRegistered {
		t.Fatalf("events = %v", kinds)
	}
}

type countingBrowser struct {
	mu     sync.Mutex
	closes int
}

func (b *countingBrowser) Launch(context.Context, captcha.LaunchOptions) (captcha.Session, error) {
	return &countingSession{b: b}, nil
}

type countingSession struct{ b *countingBrowser }

type blankElement struct{}

func (blankElement) Click(context.Context) error { return nil }
func (blankElement) Attribute(context.Context, string) (string, error) { return "", nil }

func (*countingSession) Navigate(context.Context, string) error { return nil }
func (*countingSession) FindByID(context.Context, string) (captcha.Element, error) {
	return blankElement{}, nil
}
func (*countingSession) FindByXPath(context.Context, string) (captcha.Element, error) {
	return blankElement{}, nil
}
func (*countingSession) FindAllByClass(context.Context, string) ([]captcha.Element, error) {
	return nil, nil
}
func (*countingSession) SwitchToFrame(context.Context, captcha.Element) error { return nil }
func (*countingSession) SwitchToTop(context.Context) error { return nil }
func (*countingSession) PageSource(context.Context) (string, error) { return "<html/>", nil }
func (*countingSession) ReadyState(context.Context) (string, error) { return "complete", nil }
func (*countingSession) WaitUntil(context.Context, time.Duration, captcha.Condition) error {
	return nil
}

func (s *countingSession) Close() error {
	s.b.mu.Lock()
	s.b.closes++
	s.b.mu.Unlock()
	return nil
}

func TestClose_ReleasesOpenSessions(t *testing.T) {
	t.Setenv("CAPSOLVER_API_KEY", "")

	b := &countingBrowser{}
	m := New(modkit.Deps{Cfg: config.New()}, Options{
		Extension:    "/opt/ublock.xpi",
		DriverBinary: "/usr/bin/geckodriver",
		Launcher:     b,
		Humanizer:    captcha.NewHumanizer(nil, func(context.Context, time.Duration) error { return nil }),
	})
	p := m.Ports().(Ports)
	ctx := context.Background()

	_, _ = p.Service.Next(ctx, dom.NextInput{ClientID: "op"})
	sub, err := p.Service.Submit(ctx, dom.SubmitInput{Source: "https://example.test", ResultType: "interactive"})
	if err != nil {
		t.Fatal(err)
	}
	if out, err := p.Service.Start(ctx, dom.TaskRef{ID: sub.Task.ID}); err != nil || !out.Started {
		t.Fatalf("start: %+v %v", out, err)
	}

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closes != 1 {
		t.Fatalf("session closes = %d, want 1", b.closes)
	}
}
