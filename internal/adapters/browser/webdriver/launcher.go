// Package webdriver drives Firefox or Chrome through a locally spawned WebDriver service
package webdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"captchahub/internal/core/captcha"
	"captchahub/internal/platform/logger"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"
)

// Browser selects the driven browser
type Browser string

const (
	Firefox Browser = "firefox"
	Chrome  Browser = "chrome"
)

// Launcher starts one WebDriver service and browser per session
type Launcher struct {
	browser Browser
	output  io.Writer
	log     *logger.Logger
}

// New returns a Launcher for b, driver output goes to out (nil discards it)
func New(b Browser, out io.Writer) *Launcher {
	if b != Chrome {
		b = Firefox
	}
	return &Launcher{browser: b, output: out, log: logger.Named("webdriver")}
}

// Launch implements captcha.Launcher
func (l *Launcher) Launch(ctx context.Context, opts captcha.LaunchOptions) (captcha.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("reserve driver port: %w", err)
	}

	svcOpts := []selenium.ServiceOption{selenium.Output(l.output)}
	var (
		svc  *selenium.Service
		caps selenium.Capabilities
		url  string
	)
	switch l.browser {
	case Chrome:
		svc, err = selenium.NewChromeDriverService(opts.DriverBinary, port, svcOpts...)
		if err != nil {
			return nil, fmt.Errorf("start chromedriver: %w", err)
		}
		cc := chrome.Capabilities{Path: opts.BrowserBinary, Args: chromeArgs(opts.Headless), W3C: true}
		if err := cc.AddExtension(opts.ExtensionPath); err != nil {
			_ = svc.Stop()
			return nil, fmt.Errorf("load extension %s: %w", opts.ExtensionPath, err)
		}
		caps = selenium.Capabilities{"browserName": "chrome"}
		caps.AddChrome(cc)
		url = fmt.Sprintf("http://localhost:%d/wd/hub", port)
	default:
		svc, err = selenium.NewGeckoDriverService(opts.DriverBinary, port, svcOpts...)
		if err != nil {
			return nil, fmt.Errorf("start geckodriver: %w", err)
		}
		fc := firefox.Capabilities{Binary: opts.BrowserBinary}
		if opts.Headless {
			fc.Args = append(fc.Args, "-headless")
		}
		caps = selenium.Capabilities{"browserName": "firefox"}
		caps.AddFirefox(fc)
		url = fmt.Sprintf("http://localhost:%d", port)
	}

	wd, err := selenium.NewRemote(caps, url)
	if err != nil {
		_ = svc.Stop()
		return nil, fmt.Errorf("open webdriver session: %w", err)
	}
	s := &Session{wd: wd, svc: svc, log: l.log}

	if l.browser == Firefox {
		if err := installAddon(ctx, url, wd.SessionID(), opts.ExtensionPath); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	l.log.Debug().Str("browser", string(l.browser)).Int("port", port).Msg("browser session opened")
	return s, nil
}

func chromeArgs(headless bool) []string {
	args := []string{
		"--disable-dev-shm-usage",
		"--no-sandbox",
		"--disable-gpu",
		"--window-size=1280,1024",
	}
	if headless {
		args = append(args, "--headless=new")
	}
	return args
}

// installAddon uses the geckodriver extension endpoint, the WebDriver client has no binding for it
func installAddon(ctx context.Context, base, sessionID, path string) error {
	body, _ := json.Marshal(map[string]any{"path": path, "temporary": true})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/session/%s/moz/addon/install", base, sessionID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("install addon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("install addon: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// Session wraps one WebDriver session and its driver service
type Session struct {
	wd  selenium.WebDriver
	svc *selenium.Service
	log *logger.Logger
}

// element adapts selenium.WebElement
type element struct{ we selenium.WebElement }

func (e element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.we.Click()
}

func (e element) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.we.GetAttribute(name)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.wd.Get(url)
}

func (s *Session) FindByID(ctx context.Context, id string) (captcha.Element, error) {
	return s.find(ctx, selenium.ByID, id)
}

func (s *Session) FindByXPath(ctx context.Context, xpath string) (captcha.Element, error) {
	return s.find(ctx, selenium.ByXPATH, xpath)
}

func (s *Session) find(ctx context.Context, by, value string) (captcha.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	we, err := s.wd.FindElement(by, value)
	if err != nil {
		return nil, fmt.Errorf("find %s %q: %w", by, value, err)
	}
	return element{we}, nil
}

func (s *Session) FindAllByClass(ctx context.Context, class string) ([]captcha.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	list, err := s.wd.FindElements(selenium.ByClassName, class)
	if err != nil {
		return nil, fmt.Errorf("find class %q: %w", class, err)
	}
	out := make([]captcha.Element, len(list))
	for i, we := range list {
		out[i] = element{we}
	}
	return out, nil
}

func (s *Session) SwitchToFrame(ctx context.Context, frame captcha.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el, ok := frame.(element)
	if !ok {
		return fmt.Errorf("frame %T does not belong to this session", frame)
	}
	return s.wd.SwitchFrame(el.we)
}

func (s *Session) SwitchToTop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.wd.SwitchFrame(nil)
}

func (s *Session) PageSource(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.wd.PageSource()
}

func (s *Session) ReadyState(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := s.wd.ExecuteScript("return document.readyState", nil)
	if err != nil {
		return "", err
	}
	st, _ := v.(string)
	return st, nil
}

func (s *Session) WaitUntil(ctx context.Context, timeout time.Duration, cond captcha.Condition) error {
	return s.wd.WaitWithTimeout(func(selenium.WebDriver) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		return cond(ctx, s)
	}, timeout)
}

// Close quits the browser and stops the driver service, both are attempted
func (s *Session) Close() error {
	qerr := s.wd.Quit()
	serr := s.svc.Stop()
	if qerr != nil {
		s.log.Debug().Err(qerr).Msg("webdriver quit")
		return qerr
	}
	return serr
}
