package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Config holds HTTP client configuration.
type Config struct {
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"15s"`
	MaxRetries      int           `env:"MAX_RETRIES" envDefault:"2"`
	RetryWaitMin    time.Duration `env:"RETRY_WAIT_MIN" envDefault:"200ms"`
	RetryWaitMax    time.Duration `env:"RETRY_WAIT_MAX" envDefault:"2s"`
	MaxConnsPerHost int           `env:"MAX_CONNS_PER_HOST" envDefault:"20"`
}

// DefaultConfig returns the defaults used for outbound provider calls.
func DefaultConfig() Config {
	return Config{
		Timeout:         15 * time.Second,
		MaxRetries:      2,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxConnsPerHost: 20,
	}
}

// Client wraps http.Client with bounded retries for idempotent requests.
type Client struct {
	httpClient *http.Client
	config     Config
}

// New creates a Client with a pooled transport.
func New(cfg Config) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		config:     cfg,
	}
}

// Do sends req. Network errors and 5xx responses (except 501) are retried
// with exponential backoff, but only for idempotent requests: safe methods,
// or any request carrying an Idempotency-Key header.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	retries := 0
	if isIdempotent(req) {
		retries = c.config.MaxRetries
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := c.wait(ctx, attempt); err != nil {
				return nil, err
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("rewind request body: %w", err)
				}
				req.Body = body
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isRetryableError(err) && attempt < retries {
				continue
			}
			return nil, fmt.Errorf("http request failed after %d attempts: %w", attempt+1, err)
		}

		if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented && attempt < retries {
			_ = resp.Body.Close()
			continue
		}
		return resp, nil
	}
}

func (c *Client) wait(ctx context.Context, attempt int) error {
	d := c.config.RetryWaitMin * time.Duration(1<<uint(attempt-1))
	if c.config.RetryWaitMax > 0 && d > c.config.RetryWaitMax {
		d = c.config.RetryWaitMax
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isIdempotent(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return req.Header.Get("Idempotency-Key") != ""
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
