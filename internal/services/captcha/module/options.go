package module

import (
	"time"

	"captchahub/internal/core/captcha"
	"captchahub/internal/platform/config"
	"captchahub/internal/services/captcha/presence"
)

// Browser backends selectable with CAPTCHA_BROWSER_BACKEND
const (
	BackendFirefox = "selenium-firefox"
	BackendChrome  = "selenium-chrome"
	BackendCDP     = "cdp"
)

// Options controls the captcha registry, the sweeper and browser automation
type Options struct {
	Grace         time.Duration
	Debug         bool
	ClientWindow  time.Duration
	SweepInterval time.Duration
	Retention     time.Duration

	Backend       string
	Extension     string
	BrowserBinary string
	DriverBinary  string
	Headless      bool
	ReadyTimeout  time.Duration

	// not read from env
	Observers []captcha.Observer
	Launcher  captcha.Launcher // replaces the Backend launcher when set
	Humanizer *captcha.Humanizer
}

// FromConfig reads CAPTCHA_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CAPTCHA_")
	return Options{
		Grace:         c.MayDuration("GRACE", captcha.DefaultGrace),
		Debug:         c.MayBool("DEBUG", false),
		ClientWindow:  c.MayDuration("CLIENT_WINDOW", presence.DefaultWindow),
		SweepInterval: c.MayDuration("SWEEP_INTERVAL", 30*time.Second),
		Retention:     c.MayDuration("RETENTION", 10*time.Minute),

		Backend:       c.MayEnum("BROWSER_BACKEND", BackendFirefox, BackendFirefox, BackendChrome, BackendCDP),
		Extension:     c.MayString("BROWSER_EXTENSION", ""),
		BrowserBinary: c.MayString("BROWSER_BINARY", ""),
		DriverBinary:  c.MayString("BROWSER_DRIVER", ""),
		Headless:      c.MayBool("HEADLESS", true),
		ReadyTimeout:  c.MayDuration("READY_TIMEOUT", 10*time.Second),
	}
}
