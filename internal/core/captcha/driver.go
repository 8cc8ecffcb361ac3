package captcha

import (
	"context"
	"time"
)

// Launcher opens browser sessions
// concrete implementations live under internal/adapters/browser
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Session, error)
}

// LaunchOptions are handed to a Launcher for one session
type LaunchOptions struct {
	Headless      bool
	ExtensionPath string // content blocking extension installed before navigation
	BrowserBinary string // optional, driver default when empty
	DriverBinary  string
}

// Session is one driven browser window
// lookups are relative to the current frame context
type Session interface {
	Navigate(ctx context.Context, url string) error
	FindByID(ctx context.Context, id string) (Element, error)
	FindByXPath(ctx context.Context, xpath string) (Element, error)
	FindAllByClass(ctx context.Context, class string) ([]Element, error)
	SwitchToFrame(ctx context.Context, frame Element) error
	SwitchToTop(ctx context.Context) error
	PageSource(ctx context.Context) (string, error)
	ReadyState(ctx context.Context) (string, error)
	WaitUntil(ctx context.Context, timeout time.Duration, cond Condition) error
	Close() error
}

// Element is a located node in a Session
type Element interface {
	Click(ctx context.Context) error
	Attribute(ctx context.Context, name string) (string, error)
}

// Condition is polled by Session.WaitUntil until it reports true or fails
type Condition func(ctx context.Context, s Session) (bool, error)

// SessionInitializer runs right after navigation, before the checkbox flow
// callers use it to set cookies or fill forms the challenge page needs
type SessionInitializer func(ctx context.Context, s Session) error

// BrowserConfig is the read-only browser surface consumed by interactive tasks
type BrowserConfig struct {
	ExtensionPath string
	BrowserBinary string
	DriverBinary  string
	Headless      bool
	ReadyTimeout  time.Duration
}

// DocumentComplete reports whether the top document finished loading
func DocumentComplete(ctx context.Context, s Session) (bool, error) {
	st, err := s.ReadyState(ctx)
	if err != nil {
		return false, err
	}
	return st == "complete", nil
}
