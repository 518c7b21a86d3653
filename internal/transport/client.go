package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/agentstation/branchmap/pkg/constants"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/logging"
)

// Client performs authenticated, rate-limited GET requests against an
// inspection source, retrying throttled and failed responses.
type Client struct {
	http       *http.Client
	auth       Authenticator
	token      string
	source     string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	logger     *zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithAuth sets the authenticator and the token it applies.
func WithAuth(auth Authenticator, token string) Option {
	return func(c *Client) {
		if auth != nil {
			c.auth = auth
		}
		c.token = token
	}
}

// WithRate limits requests to perSecond, with bursts of one. Zero or less
// disables limiting.
func WithRate(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithRetries sets how many times a retryable response is retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the base and maximum delay between retries.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.backoff = base
		c.maxBackoff = maxDelay
	}
}

// WithSourceName sets the source name reported in API errors.
func WithSourceName(name string) Option {
	return func(c *Client) {
		c.source = name
	}
}

// WithLogger sets the logger. Without it the logger carried by the context is used.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a new transport client.
func New(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: constants.DefaultHTTPTimeout},
		auth:       &NoAuth{},
		source:     "api",
		limiter:    rate.NewLimiter(rate.Limit(constants.DefaultRatePerSecond), 1),
		maxRetries: constants.MaxRetries,
		backoff:    constants.RetryBackoff,
		maxBackoff: constants.MaxRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request and returns the response of the first attempt
// that succeeds. Responses with status 429 or 5xx are retried with exponential
// backoff, honouring Retry-After; other non-2xx responses fail at once with an
// *errors.APIError. The caller closes the returned body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	logger := c.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	var (
		lastErr    error
		retryAfter time.Duration
	)
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.delay(attempt, retryAfter)
			logger.Debug().Err(lastErr).Int("attempt", attempt).Dur("delay", delay).Str("url", url).Msg("retrying request")
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, wait, err := c.do(ctx, url)
		if err == nil {
			return resp, nil
		}
		lastErr, retryAfter = err, wait
		if errors.IsRateLimited(err) {
			logger.Warn().Str("url", url).Dur("retry_after", wait).Msg("rate limited by inspection source")
		}

		var apiErr *errors.APIError
		if !stderrors.As(err, &apiErr) || !(apiErr.Retryable() || apiErr.StatusCode == 0) {
			return nil, err
		}
	}
	return nil, lastErr
}

// do performs one attempt. A zero StatusCode in the returned APIError means
// the request never got a response.
func (c *Client) do(ctx context.Context, url string) (*http.Response, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, errors.WrapResource("create", "request", "GET "+url, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		c.auth.Apply(req, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		return nil, 0, &errors.APIError{Source: c.source, Endpoint: url, Message: err.Error(), Err: err}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, 0, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	return nil, parseRetryAfter(resp.Header.Get("Retry-After")), &errors.APIError{
		Source:     c.source,
		StatusCode: resp.StatusCode,
		Endpoint:   url,
		Message:    strings.TrimSpace(fmt.Sprintf("%s %s", http.StatusText(resp.StatusCode), body)),
	}
}

// delay returns the wait before the given retry attempt: the server's
// Retry-After when present, else base * 2^(attempt-1), capped.
func (c *Client) delay(attempt int, retryAfter time.Duration) time.Duration {
	d := retryAfter
	if d <= 0 {
		d = c.backoff << (attempt - 1)
	}
	if c.maxBackoff > 0 && d > c.maxBackoff {
		d = c.maxBackoff
	}
	return d
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
