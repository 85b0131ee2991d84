// Package fetch obtains spot documents from the solver service and the
// local cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/agentic-research/spotreach/internal/spot"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound means the service reports no spot for the history.
	ErrNotFound = errors.New("spot does not exist upstream")
	// ErrExhausted means every attempt failed with a transient error.
	ErrExhausted = errors.New("retry budget exhausted")
	// ErrUnauthorized means the service rejected a freshly refreshed token.
	ErrUnauthorized = errors.New("unauthorized after token refresh")
)

const maxSpotBytes = 64 << 20

// StatusError is an unexpected HTTP status.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.Op, e.Code, http.StatusText(e.Code))
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || (e.Code >= 500 && e.Code <= 599)
}

type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	var te *transportError
	return errors.As(err, &te)
}

// Config configures the solver client.
type Config struct {
	SpotURL    string
	RefreshURL string
	GameType   string
	Depth      int

	RefreshToken string

	// MaxAttempts counts every request, including the first.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// RequestsPerSecond paces requests; 0 disables pacing.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// DefaultConfig returns the retry policy the solver tolerates: 6 attempts,
// 0.5s backoff doubling up to 10s.
func DefaultConfig() Config {
	return Config{
		Depth:          100,
		MaxAttempts:    6,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Timeout:        60 * time.Second,
	}
}

// Validate checks the retry policy and endpoints.
func (c Config) Validate() error {
	if c.SpotURL == "" {
		return errors.New("spot url is required")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.InitialBackoff <= 0 || c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("invalid backoff window %s..%s", c.InitialBackoff, c.MaxBackoff)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must be >= 0, got %g", c.RequestsPerSecond)
	}
	return nil
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client fetches spots from the solver service. Each Fetch owns its
// backoff schedule; the session and limiter are shared.
type Client struct {
	cfg     Config
	http    *http.Client
	session *Session
	limiter *rate.Limiter
	sleep   SleepFunc
	log     zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the transport used for spot and token requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSleep replaces the backoff sleeper.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient validates cfg and builds a client with its own Session.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		sleep: sleepCtx,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	c.limiter = rate.NewLimiter(limit, 1)
	c.session = NewSession(cfg.RefreshURL, cfg.RefreshToken, c.http)
	return c, nil
}

// Fetch retrieves the spot at h.
//
// A 401 triggers one token refresh and an immediate repeat of the same
// attempt. 400/404 return ErrNotFound at once. 429, 5xx and transport
// failures back off exponentially and, once MaxAttempts is spent, yield
// ErrExhausted.
func (c *Client) Fetch(ctx context.Context, h graph.History) (*spot.Document, error) {
	bo := c.newBackOff()
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		doc, err := c.attempt(ctx, h)
		if err == nil {
			return doc, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
		if attempt == c.cfg.MaxAttempts {
			break
		}
		wait := bo.NextBackOff()
		c.log.Debug().
			Str("actions", graph.EncodeLine(h)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Err(err).
			Msg("transient solver error")
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %q after %d attempts: %v",
		ErrExhausted, graph.EncodeLine(h), c.cfg.MaxAttempts, lastErr)
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxInterval = c.cfg.MaxBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.Reset()
	return bo
}

func (c *Client) attempt(ctx context.Context, h graph.History) (*spot.Document, error) {
	resp, err := c.get(ctx, h)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		if _, err := c.session.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("refresh after 401: %w", err)
		}
		if resp, err = c.get(ctx, h); err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			return nil, ErrUnauthorized
		}
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxSpotBytes))
		if err != nil {
			return nil, &transportError{fmt.Errorf("read spot body: %w", err)}
		}
		return spot.Parse(body)
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %q (%d)", ErrNotFound, graph.EncodeLine(h), resp.StatusCode)
	default:
		return nil, &StatusError{Op: "fetch spot", Code: resp.StatusCode}
	}
}

func (c *Client) get(ctx context.Context, h graph.History) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("gametype", c.cfg.GameType)
	q.Set("depth", strconv.Itoa(c.cfg.Depth))
	q.Set("preflop_actions", h.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.SpotURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build spot request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transportError{err}
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
