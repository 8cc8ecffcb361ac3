// Package captchaclient speaks the captcha client API over HTTP for captchactl
package captchaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	perr "captchahub/internal/platform/errors"
	"captchahub/internal/platform/logger"
	"captchahub/internal/services/captcha/domain"
)

const (
	baseURLDefault = "http://127.0.0.1:4000"
	apiPath        = "/api/v1/captcha"
	defaultTimeout = 15 * time.Second
	defaultUA      = "captchactl"
	maxBody        = 4 << 20
)

// Options configures the Client
type Options struct {
	BaseURL   string
	Token     string
	ClientID  string
	UserAgent string
	Timeout   time.Duration
}

// Client implements domain.ServicePort against a remote captchad
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
}

var _ domain.ServicePort = (*Client)(nil)

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	o.BaseURL = strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("captchaclient"),
	}
}

// envelope mirrors the server response wrapper
type envelope struct {
	StatusCode int             `json:"status_code"`
	Code       perr.ErrorCode  `json:"code"`
	Error      string          `json:"error"`
	RequestID  string          `json:"request_id"`
	Data       json.RawMessage `json:"data"`
}

// do sends one request and decodes the envelope data into out
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeJSON, "encode %s", path)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+apiPath+path, body)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "captcha new request failed")
	}
	reqID := uuid.NewString()
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "captcha %s failed", path)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("captcha http response")

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return perr.Newf(statusCode(resp.StatusCode), "captcha %s: unexpected status %d", path, resp.StatusCode)
		}
		return perr.Wrapf(err, perr.ErrorCodeJSON, "decode %s", path)
	}
	if resp.StatusCode >= 300 {
		code := env.Code
		if code == perr.ErrorCodeUnknown {
			code = statusCode(resp.StatusCode)
		}
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return perr.New(code, msg)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "decode %s data", path)
	}
	return nil
}

// statusCode maps a bare http status back to an error code
func statusCode(status int) perr.ErrorCode {
	switch status {
	case http.StatusNotFound:
		return perr.ErrorCodeNotFound
	case http.StatusUnprocessableEntity:
		return perr.ErrorCodeInvalidArgument
	case http.StatusConflict:
		return perr.ErrorCodeConflict
	case http.StatusBadRequest:
		return perr.ErrorCodeValidation
	case http.StatusUnauthorized:
		return perr.ErrorCodeUnauthorized
	case http.StatusForbidden:
		return perr.ErrorCodeForbidden
	case http.StatusTooManyRequests:
		return perr.ErrorCodeTooManyRequests
	case http.StatusGone:
		return perr.ErrorCodeExpired
	case http.StatusBadGateway:
		return perr.ErrorCodeUpstream
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return perr.ErrorCodeUnavailable
	}
	return perr.ErrorCodeUnknown
}

func (c *Client) clientID(given string) string {
	if given != "" {
		return given
	}
	return c.opts.ClientID
}

// Next claims the oldest waiting task
func (c *Client) Next(ctx context.Context, in domain.NextInput) (domain.NextOutput, error) {
	in.ClientID = c.clientID(in.ClientID)
	var out domain.NextOutput
	return out, c.do(ctx, http.MethodPost, "/next", in, &out)
}

// Status fetches one task
func (c *Client) Status(ctx context.Context, in domain.TaskRef) (domain.TaskView, error) {
	in.ClientID = c.clientID(in.ClientID)
	var out domain.TaskView
	return out, c.do(ctx, http.MethodPost, "/status", in, &out)
}

// Answer posts a result
func (c *Client) Answer(ctx context.Context, in domain.ResultInput) (domain.TaskView, error) {
	in.ClientID = c.clientID(in.ClientID)
	var out domain.TaskView
	return out, c.do(ctx, http.MethodPost, "/result", in, &out)
}

// Start opens the interactive browser session
func (c *Client) Start(ctx context.Context, in domain.TaskRef) (domain.StartOutput, error) {
	in.ClientID = c.clientID(in.ClientID)
	var out domain.StartOutput
	return out, c.do(ctx, http.MethodPost, "/start", in, &out)
}

// Interact performs one interactive step
func (c *Client) Interact(ctx context.Context, in domain.InteractInput) (domain.StepOutput, error) {
	in.ClientID = c.clientID(in.ClientID)
	var out domain.StepOutput
	return out, c.do(ctx, http.MethodPost, "/interact", in, &out)
}

// Reload asks the widget for a fresh challenge
func (c *Client) Reload(ctx context.Context, in domain.TaskRef) (domain.TaskView, error) {
	in.ClientID = c.clientID(in.ClientID)
	var out domain.TaskView
	return out, c.do(ctx, http.MethodPost, "/reload", in, &out)
}

// Verdict reports whether the answer was accepted
func (c *Client) Verdict(ctx context.Context, in domain.VerdictInput) (domain.TaskView, error) {
	var out domain.TaskView
	return out, c.do(ctx, http.MethodPost, "/verdict", in, &out)
}

// Abort gives up on a task
func (c *Client) Abort(ctx context.Context, in domain.TaskRef) (domain.TaskView, error) {
	in.ClientID = c.clientID(in.ClientID)
	var out domain.TaskView
	return out, c.do(ctx, http.MethodPost, "/abort", in, &out)
}

// Submit registers a challenge remotely
func (c *Client) Submit(ctx context.Context, in domain.SubmitInput) (domain.SubmitOutput, error) {
	var out domain.SubmitOutput
	return out, c.do(ctx, http.MethodPost, "/submit", in, &out)
}

// List returns the registry snapshot
func (c *Client) List(ctx context.Context) (domain.ListOutput, error) {
	var out domain.ListOutput
	return out, c.do(ctx, http.MethodGet, "/list", nil, &out)
}
