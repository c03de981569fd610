package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-authgate/idgate/internal/retry"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Options configures a Client.
type Options struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
	MaxRetries         int
	RetryDelay         time.Duration
	RetryMaxDelay      time.Duration
}

// Client posts signed JSON with retries.
type Client struct {
	signer *Signer
	retry  *retry.Client
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Preview returns at most n bytes of the body for error messages.
func (r *Response) Preview(n int) string {
	if len(r.Body) > n {
		return string(r.Body[:n]) + "..."
	}
	return string(r.Body)
}

func New(signer *Signer, opts Options) *Client {
	// #nosec G402 -- InsecureSkipVerify is user-configurable for development/testing
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify},
	}
	hc := &http.Client{Timeout: opts.Timeout, Transport: transport}

	return &Client{
		signer: signer,
		retry: retry.NewClient(
			retry.WithHTTPClient(hc),
			retry.WithMaxRetries(opts.MaxRetries),
			retry.WithDelays(opts.RetryDelay, opts.RetryMaxDelay),
		),
	}
}

// PostJSON encodes payload, signs the request, and returns the read response.
// Non-2xx statuses are returned as a Response, not as an error.
func (c *Client) PostJSON(ctx context.Context, url string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if err := c.signer.Sign(req, body); err != nil {
		return nil, err
	}

	resp, err := c.retry.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
