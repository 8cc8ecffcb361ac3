// Package cdp drives a local Chrome over the DevTools protocol
// cross-origin challenge frames are reached through FromNode, so site isolation is switched off
package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"captchahub/internal/core/captcha"
	"captchahub/internal/platform/logger"

	cdpnode "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// pollEvery is the WaitUntil polling interval
const pollEvery = 200 * time.Millisecond

// Launcher starts one Chrome process per session
type Launcher struct {
	log *logger.Logger
}

// New returns a Launcher
func New() *Launcher { return &Launcher{log: logger.Named("cdp")} }

// allocatorOptions builds the Chrome flags for one session
func allocatorOptions(opts captcha.LaunchOptions) []chromedp.ExecAllocatorOption {
	o := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-site-isolation-trials", true),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
		chromedp.WindowSize(1280, 1024),
	)
	if opts.ExtensionPath != "" {
		o = append(o,
			chromedp.Flag("disable-extensions", false),
			chromedp.Flag("disable-extensions-except", opts.ExtensionPath),
			chromedp.Flag("load-extension", opts.ExtensionPath),
		)
	}
	if bin := execPath(opts); bin != "" {
		o = append(o, chromedp.ExecPath(bin))
	}
	return o
}

// execPath prefers the browser binary, the driver binary is Chrome itself for this backend
func execPath(opts captcha.LaunchOptions) string {
	if opts.BrowserBinary != "" {
		return opts.BrowserBinary
	}
	return opts.DriverBinary
}

// Launch implements captcha.Launcher
func (l *Launcher) Launch(ctx context.Context, opts captcha.LaunchOptions) (captcha.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	bctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		l.log.Debug().Msgf(format, args...)
	}))
	if err := chromedp.Run(bctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	l.log.Debug().Bool("headless", opts.Headless).Msg("browser session opened")
	return &Session{ctx: bctx, cancel: cancel, allocCancel: allocCancel}, nil
}

// Session is one Chrome tab; the selected frame scopes every lookup
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	mu    sync.Mutex
	frame *cdpnode.Node // nil is the top document
}

type element struct {
	s    *Session
	node *cdpnode.Node
}

func (e element) Click(ctx context.Context) error {
	return e.s.run(ctx, chromedp.Click([]cdpnode.NodeID{e.node.NodeID}, chromedp.ByNodeID))
}

func (e element) Attribute(ctx context.Context, name string) (string, error) {
	var v string
	err := e.s.run(ctx, chromedp.JavascriptAttribute([]cdpnode.NodeID{e.node.NodeID}, name, &v, chromedp.ByNodeID))
	if err != nil {
		// fall back to the attribute snapshot taken when the node was found
		if attr, ok := e.node.Attribute(name); ok {
			return attr, nil
		}
		return "", err
	}
	return v, nil
}

// run executes actions on the tab unless ctx is already done
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.ctx, actions...)
}

func (s *Session) scope() []chromedp.QueryOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil
	}
	return []chromedp.QueryOption{chromedp.FromNode(s.frame)}
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *Session) FindByID(ctx context.Context, id string) (captcha.Element, error) {
	return s.first(ctx, id, chromedp.ByID)
}

func (s *Session) FindByXPath(ctx context.Context, xpath string) (captcha.Element, error) {
	return s.first(ctx, xpath, chromedp.BySearch)
}

func (s *Session) first(ctx context.Context, sel string, by chromedp.QueryOption) (captcha.Element, error) {
	var nodes []*cdpnode.Node
	opts := append([]chromedp.QueryOption{by, chromedp.AtLeast(0)}, s.scope()...)
	if err := s.run(ctx, chromedp.Nodes(sel, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("find %q: %w", sel, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("find %q: no such element", sel)
	}
	return element{s: s, node: nodes[0]}, nil
}

func (s *Session) FindAllByClass(ctx context.Context, class string) ([]captcha.Element, error) {
	var nodes []*cdpnode.Node
	opts := append([]chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}, s.scope()...)
	if err := s.run(ctx, chromedp.Nodes("."+class, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("find class %q: %w", class, err)
	}
	out := make([]captcha.Element, len(nodes))
	for i, n := range nodes {
		out[i] = element{s: s, node: n}
	}
	return out, nil
}

func (s *Session) SwitchToFrame(ctx context.Context, frame captcha.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el, ok := frame.(element)
	if !ok || el.s != s {
		return fmt.Errorf("frame %T does not belong to this session", frame)
	}
	s.mu.Lock()
	s.frame = el.node
	s.mu.Unlock()
	return nil
}

func (s *Session) SwitchToTop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.frame = nil
	s.mu.Unlock()
	return nil
}

func (s *Session) PageSource(ctx context.Context) (string, error) {
	var html string
	opts := append([]chromedp.QueryOption{chromedp.ByQuery}, s.scope()...)
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, opts...)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *Session) ReadyState(ctx context.Context) (string, error) {
	var st string
	if err := s.run(ctx, chromedp.Evaluate("document.readyState", &st)); err != nil {
		return "", err
	}
	return st, nil
}

func (s *Session) WaitUntil(ctx context.Context, timeout time.Duration, cond captcha.Condition) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(pollEvery)
	defer tick.Stop()
	for {
		ok, err := cond(ctx, s)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait %s: %w", timeout, ctx.Err())
		case <-tick.C:
		}
	}
}

// Close shuts the browser down and releases the allocator
func (s *Session) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.allocCancel()
	return err
}
