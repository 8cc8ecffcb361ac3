// Package capsolver is a remote captcha solver backed by the Capsolver task API
package capsolver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	perr "captchahub/internal/platform/errors"
	"captchahub/internal/platform/logger"

	"golang.org/x/time/rate"
)

const (
	baseURLDefault      = "https://api.capsolver.com"
	defaultTimeout      = 10 * time.Second
	defaultPollInterval = 3 * time.Second
	defaultSolveTimeout = 120 * time.Second
	defaultRPS          = 2.0
	defaultBurst        = 4
	balanceWarnLevel    = 5.0 // USD
)

// Options configures the Client
type Options struct {
	APIKey       string
	BaseURL      string
	Module       string // ImageToTextTask recognition module, "common" when empty
	Timeout      time.Duration
	PollInterval time.Duration
	SolveTimeout time.Duration
	RatePerSec   float64
	Burst        int
}

// Client talks to the Capsolver JSON API
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	log     logger.Logger
	now     func() time.Time
}

// NewClient creates a Client with defaults filled in
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.Module == "" {
		o.Module = "common"
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.SolveTimeout <= 0 {
		o.SolveTimeout = defaultSolveTimeout
	}
	if o.RatePerSec <= 0 {
		o.RatePerSec = defaultRPS
	}
	if o.Burst <= 0 {
		o.Burst = defaultBurst
	}
	return &Client{
		http:    &http.Client{Timeout: o.Timeout},
		opts:    o,
		limiter: rate.NewLimiter(rate.Limit(o.RatePerSec), o.Burst),
		log:     *logger.Named("capsolver"),
		now:     time.Now,
	}
}

// apiError is the error envelope shared by every endpoint
type apiError struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

func (e apiError) err(op string) error {
	if e.ErrorID == 0 {
		return nil
	}
	return perr.Upstreamf("capsolver %s: %s: %s", op, e.ErrorCode, e.ErrorDescription)
}

type taskResponse struct {
	apiError
	TaskID   string `json:"taskId"`
	Status   string `json:"status"`
	Solution struct {
		Text  string `json:"text"`
		Token string `json:"gRecaptchaResponse"`
	} `json:"solution"`
}

// Solution is a finished remote task
type Solution struct {
	TaskID string
	Text   string
}

// ImageToText submits image bytes and waits for the recognized text
func (c *Client) ImageToText(ctx context.Context, image []byte) (Solution, error) {
	req := map[string]any{
		"clientKey": c.opts.APIKey,
		"task": map[string]any{
			"type":   "ImageToTextTask",
			"module": c.opts.Module,
			"body":   base64.StdEncoding.EncodeToString(image),
		},
	}
	var created taskResponse
	if err := c.post(ctx, "/createTask", req, &created); err != nil {
		return Solution{}, err
	}
	if err := created.err("createTask"); err != nil {
		return Solution{}, err
	}
	// image tasks usually answer inline
	if created.Status == "ready" {
		return Solution{TaskID: created.TaskID, Text: created.Solution.Text}, nil
	}
	if created.TaskID == "" {
		return Solution{}, perr.Upstreamf("capsolver createTask: empty taskId")
	}
	text, err := c.poll(ctx, created.TaskID)
	if err != nil {
		return Solution{}, err
	}
	return Solution{TaskID: created.TaskID, Text: text}, nil
}

func (c *Client) poll(ctx context.Context, taskID string) (string, error) {
	deadline := c.now().Add(c.opts.SolveTimeout)
	req := map[string]any{"clientKey": c.opts.APIKey, "taskId": taskID}
	for {
		if c.now().After(deadline) {
			return "", perr.Newf(perr.ErrorCodeUnavailable, "capsolver: solve timeout after %s", c.opts.SolveTimeout)
		}
		var res taskResponse
		if err := c.post(ctx, "/getTaskResult", req, &res); err != nil {
			return "", err
		}
		if err := res.err("getTaskResult"); err != nil {
			return "", err
		}
		switch res.Status {
		case "ready":
			if res.Solution.Text != "" {
				return res.Solution.Text, nil
			}
			if res.Solution.Token != "" {
				return res.Solution.Token, nil
			}
			return "", perr.Upstreamf("capsolver: ready but empty solution")
		case "idle", "processing":
			t := time.NewTimer(c.opts.PollInterval)
			select {
			case <-ctx.Done():
				t.Stop()
				return "", ctx.Err()
			case <-t.C:
			}
		default:
			return "", perr.Upstreamf("capsolver: unexpected status %q", res.Status)
		}
	}
}

// Feedback reports whether a solution was accepted by the target site
func (c *Client) Feedback(ctx context.Context, taskID string, invalid bool) error {
	req := map[string]any{
		"clientKey": c.opts.APIKey,
		"taskId":    taskID,
		"result":    map[string]any{"invalid": invalid},
	}
	var res apiError
	if err := c.post(ctx, "/feedbackTask", req, &res); err != nil {
		return err
	}
	return res.err("feedbackTask")
}

// Balance returns the account balance in USD and warns when it runs low
func (c *Client) Balance(ctx context.Context) (float64, error) {
	var res struct {
		apiError
		Balance float64 `json:"balance"`
	}
	if err := c.post(ctx, "/getBalance", map[string]any{"clientKey": c.opts.APIKey}, &res); err != nil {
		return 0, err
	}
	if err := res.err("getBalance"); err != nil {
		return 0, err
	}
	if res.Balance < balanceWarnLevel {
		c.log.Warn().Float64("balance", res.Balance).Msg("capsolver balance low")
	}
	return res.Balance, nil
}

// post sends one JSON request, paced by the limiter
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "capsolver encode %s", path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "capsolver new request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "capsolver %s failed", path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "capsolver %s read", path)
	}
	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", c.now().Sub(start)).
		Msg("capsolver call")

	if resp.StatusCode != http.StatusOK {
		// the API still sends its error envelope on 4xx
		var ae apiError
		if json.Unmarshal(data, &ae) == nil && ae.ErrorID != 0 {
			return ae.err(path)
		}
		return perr.Upstreamf("capsolver HTTP %d: %s", resp.StatusCode, string(data[:min(200, len(data))]))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "capsolver decode %s", path)
	}
	return nil
}
