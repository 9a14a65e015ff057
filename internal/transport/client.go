// Package transport issues venue HTTP requests with bounded retries and
// exponential backoff for transient failures.
package transport

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tradewire/gateway/errs"
	"github.com/tradewire/gateway/internal/observability"
)

const (
	maxAttempts          = 3
	defaultTimeout       = 10 * time.Second
	defaultRetryInterval = 2 * time.Second
)

// RequestBuilder constructs a fresh request for every attempt. Signed
// requests regenerate their timestamp and signature here, so a stale
// timestamp from attempt one cannot poison attempt two.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Response carries a completed venue reply. Any status code, including 4xx
// and 5xx, is a definitive answer and is returned to the caller unretried.
type Response struct {
	Status int
	Body   []byte
}

// Config parameterizes a Client.
type Config struct {
	Venue   string
	Timeout time.Duration
	// RetryInterval is the first backoff pause; subsequent pauses double.
	RetryInterval time.Duration
}

// Client wraps a long-lived pooled http.Client shared by all operations of
// one gateway instance.
type Client struct {
	venue         string
	http          *http.Client
	retryInterval time.Duration
}

// New constructs a Client with a reusable connection pool.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}
	return &Client{
		venue: cfg.Venue,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retryInterval: retryInterval,
	}
}

// Do executes build with up to three attempts. Only connection-level and
// timeout failures are retried; build errors and completed responses are
// final on first occurrence.
func (c *Client) Do(ctx context.Context, build RequestBuilder) (Response, error) {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = c.retryInterval
	backoffCfg.Multiplier = 2
	backoffCfg.RandomizationFactor = 0

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := build(ctx)
		if err != nil {
			return Response{}, err
		}
		resp, doErr := c.http.Do(req)
		if doErr == nil {
			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr == nil {
				return Response{Status: resp.StatusCode, Body: body}, nil
			}
			doErr = readErr
		}
		lastErr = doErr
		if ctx.Err() != nil {
			break
		}
		if attempt == maxAttempts {
			break
		}
		wait := backoffCfg.NextBackOff()
		observability.Log().Warn("transient request failure, backing off",
			observability.F("venue", c.venue),
			observability.F("attempt", attempt),
			observability.F("wait", wait.String()),
			observability.F("error", doErr.Error()))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Response{}, errs.New(c.venue, errs.CodeNetwork,
				errs.WithCause(ctx.Err()),
				errs.WithMessage("request cancelled during backoff"))
		case <-timer.C:
		}
	}
	return Response{}, errs.New(c.venue, errs.CodeNetwork,
		errs.WithCause(lastErr),
		errs.WithMessage("request failed after retries"))
}

// Close releases pooled connections. Call on gateway shutdown.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
