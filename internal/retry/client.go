// Package retry sends HTTP requests to identity back-ends with exponential
// backoff between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Backoff describes how many attempts are made and how long to wait between them.
type Backoff struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultBackoff is used when no option overrides it.
var DefaultBackoff = Backoff{
	MaxRetries:   3,
	InitialDelay: time.Second,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
}

// next returns the delay that follows d.
func (b Backoff) next(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * b.Multiplier)
	if d > b.MaxDelay {
		return b.MaxDelay
	}
	return d
}

// Classifier decides whether an attempt outcome should be retried.
type Classifier func(err error, resp *http.Response) bool

// Client wraps an http.Client with retries.
type Client struct {
	backoff    Backoff
	httpClient *http.Client
	retryable  Classifier
}

// Option configures a Client
type Option func(*Client)

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.backoff.MaxRetries = n
		}
	}
}

// WithDelays sets the first delay and the cap for later delays.
func WithDelays(initial, maxDelay time.Duration) Option {
	return func(c *Client) {
		if initial > 0 {
			c.backoff.InitialDelay = initial
		}
		if maxDelay > 0 {
			c.backoff.MaxDelay = maxDelay
		}
	}
}

func WithMultiplier(m float64) Option {
	return func(c *Client) {
		if m > 1.0 {
			c.backoff.Multiplier = m
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithClassifier(fn Classifier) Option {
	return func(c *Client) {
		if fn != nil {
			c.retryable = fn
		}
	}
}

// NewClient creates a retrying client with DefaultBackoff and Retryable.
func NewClient(opts ...Option) *Client {
	c := &Client{
		backoff:    DefaultBackoff,
		httpClient: http.DefaultClient,
		retryable:  Retryable,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backoff returns the effective backoff settings.
func (c *Client) Backoff() Backoff {
	return c.backoff
}

// Retryable retries transport errors, 5xx and 429. Context cancellation is final.
func Retryable(err error, resp *http.Response) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode >= http.StatusInternalServerError ||
		resp.StatusCode == http.StatusTooManyRequests
}

// Do sends req until it succeeds, fails permanently, or retries run out.
// Requests with a body must be rewindable (http.NewRequest sets GetBody for
// bytes, strings and bytes.Buffer readers). After the last attempt a
// retryable response is returned to the caller with its body still open.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var (
		resp    *http.Response
		lastErr error
	)
	delay := c.backoff.InitialDelay

	for attempt := 0; attempt <= c.backoff.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				if lastErr != nil {
					return nil, fmt.Errorf("context done after %d attempts: %w", attempt, lastErr)
				}
				return nil, ctx.Err()
			case <-timer.C:
			}
			delay = c.backoff.next(delay)
		}

		attemptReq, err := rewind(ctx, req, attempt)
		if err != nil {
			return nil, err
		}

		resp, lastErr = c.httpClient.Do(attemptReq)
		if !c.retryable(lastErr, resp) {
			return resp, lastErr
		}
		if attempt < c.backoff.MaxRetries && resp != nil && resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("request failed after %d retries: %w", c.backoff.MaxRetries, lastErr)
	}
	return resp, nil
}

// rewind clones req for an attempt, restoring its body from GetBody on retries.
func rewind(ctx context.Context, req *http.Request, attempt int) (*http.Request, error) {
	clone := req.Clone(ctx)
	if attempt == 0 || req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("retry: request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("retry: rewind body: %w", err)
	}
	clone.Body = body
	return clone, nil
}
