package capsolver

import (
	"context"
	"os"
	"sync"
	"time"

	"captchahub/internal/core/captcha"
	"captchahub/internal/platform/config"
	"captchahub/internal/platform/logger"
)

// Config controls the plugin, read with the CAPSOLVER_ prefix
type Config struct {
	Enabled      bool
	APIKey       string
	BaseURL      string
	Module       string
	RatePerSec   float64
	Burst        int
	PollInterval time.Duration
	SolveTimeout time.Duration
	Concurrency  int
}

// FromConfig reads CAPSOLVER_* settings, the plugin stays off without an API key
func FromConfig(cfg config.Conf) Config {
	c := cfg.Prefix("CAPSOLVER_")
	key := c.MayString("API_KEY", "")
	return Config{
		Enabled:      key != "" && c.MayBool("ENABLED", true),
		APIKey:       key,
		BaseURL:      c.MayString("ENDPOINT", baseURLDefault),
		Module:       c.MayString("MODULE", "common"),
		RatePerSec:   c.MayFloat64("RPS", defaultRPS),
		Burst:        c.MayInt("BURST", defaultBurst),
		PollInterval: c.MayDuration("POLL_INTERVAL", defaultPollInterval),
		SolveTimeout: c.MayDuration("SOLVE_TIMEOUT", defaultSolveTimeout),
		Concurrency:  c.MayInt("CONCURRENCY", 4),
	}
}

// solver is the slice of Client the plugin uses
type solver interface {
	ImageToText(ctx context.Context, image []byte) (Solution, error)
	Feedback(ctx context.Context, taskID string, invalid bool) error
}

// Plugin claims textual tasks carrying an image and answers them through Capsolver
type Plugin struct {
	api     solver
	timeout time.Duration
	sem     chan struct{}
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	remote map[string]remoteTask // keyed by captcha task id
	now    func() time.Time
}

// remoteTask is a solved task still waiting for its verdict
type remoteTask struct {
	id string // capsolver task id
	at time.Time
}

// verdicts rarely arrive later than this, older remote ids are dropped
const (
	remoteTTL = time.Hour
	remoteMax = 4096
)

// New builds a Plugin from cfg
func New(cfg Config) *Plugin {
	c := NewClient(Options{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Module:       cfg.Module,
		PollInterval: cfg.PollInterval,
		SolveTimeout: cfg.SolveTimeout,
		RatePerSec:   cfg.RatePerSec,
		Burst:        cfg.Burst,
	})
	return newPlugin(c, c.opts.SolveTimeout, cfg.Concurrency)
}

func newPlugin(api solver, timeout time.Duration, concurrency int) *Plugin {
	ctx, cancel := context.WithCancel(context.Background())
	return &Plugin{
		api:     api,
		timeout: timeout,
		sem:     make(chan struct{}, max(1, concurrency)),
		log:     logger.Named("capsolver-plugin"),
		ctx:     ctx,
		cancel:  cancel,
		remote:  map[string]remoteTask{},
		now:     time.Now,
	}
}

// Name implements captcha.Named
func (p *Plugin) Name() string { return "capsolver" }

// NewCaptchaTask claims textual tasks with an image and solves them in the background
func (p *Plugin) NewCaptchaTask(_ context.Context, t *captcha.Task) error {
	if !t.IsTextual() {
		return nil
	}
	ch := t.Challenge()
	if len(ch.Data) == 0 && ch.File == "" {
		return nil
	}

	// Add under the same lock Close takes, so Wait never races a late Add
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.wg.Add(1)
	p.mu.Unlock()

	t.Claim(p)
	t.SetWaiting(p.timeout + 30*time.Second)
	go func() {
		defer p.wg.Done()
		p.solve(t)
	}()
	return nil
}

func (p *Plugin) solve(t *captcha.Task) {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-p.ctx.Done():
		return
	}
	log := p.log.With().Str("task_id", t.ID()).Logger()

	img := t.Challenge().Data
	if len(img) == 0 {
		b, err := os.ReadFile(t.Challenge().File)
		if err != nil {
			log.Warn().Err(err).Str("file", t.Challenge().File).Msg("read challenge image")
			return
		}
		img = b
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	sol, err := p.api.ImageToText(ctx, img)
	if err != nil {
		log.Warn().Err(err).Msg("remote solve failed")
		return
	}
	if sol.TaskID != "" {
		p.keep(t.ID(), sol.TaskID)
	}
	if !t.SetResult(sol.Text) {
		log.Debug().Msg("task already answered")
		return
	}
	log.Info().Str("remote_id", sol.TaskID).Msg("captcha solved remotely")
}

// CaptchaInvalid reports a rejected answer so the account is refunded
func (p *Plugin) CaptchaInvalid(ctx context.Context, t *captcha.Task) error {
	id, ok := p.forget(t.ID())
	if !ok {
		return nil
	}
	return p.api.Feedback(ctx, id, true)
}

// CaptchaCorrect reports an accepted answer
func (p *Plugin) CaptchaCorrect(ctx context.Context, t *captcha.Task) error {
	id, ok := p.forget(t.ID())
	if !ok {
		return nil
	}
	return p.api.Feedback(ctx, id, false)
}

// keep records a remote id for feedback, pruning expired entries and
// the oldest ones once the map is full
func (p *Plugin) keep(taskID, remoteID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for k, r := range p.remote {
		if now.Sub(r.at) >= remoteTTL {
			delete(p.remote, k)
		}
	}
	for len(p.remote) >= remoteMax {
		oldest := ""
		for k, r := range p.remote {
			if oldest == "" || r.at.Before(p.remote[oldest].at) {
				oldest = k
			}
		}
		delete(p.remote, oldest)
	}
	p.remote[taskID] = remoteTask{id: remoteID, at: now}
}

func (p *Plugin) forget(taskID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.remote[taskID]
	delete(p.remote, taskID)
	if ok && p.now().Sub(r.at) >= remoteTTL {
		return "", false
	}
	return r.id, ok
}

// Close stops pending solves and waits for them, later tasks are not claimed
func (p *Plugin) Close() error {
	p.mu.Lock()
	p.closed = true
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}
