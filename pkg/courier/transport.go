package courier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultMaxAttempts = 3
	defaultTimeout     = 30 * time.Second
	defaultInterval    = 300 * time.Millisecond
)

// retryableStatus is the set of server error codes retried by the
// transport. Any other status is surfaced to the caller on the first
// attempt.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// RetryingClient is an HTTP client with the transport retry policy shared
// by all adapters: a fixed attempt budget with exponential backoff for
// connection failures, timeouts, and 500/502/504 responses. Business
// failures inside a 200 response are never retried here; that detection
// belongs to each adapter.
type RetryingClient struct {
	courierCode string
	client      *http.Client
	maxAttempts uint
	interval    time.Duration
}

// RetryingClientConfig holds transport configuration.
type RetryingClientConfig struct {
	CourierCode string
	Timeout     time.Duration
	MaxAttempts uint
	// Interval is the initial backoff interval between attempts.
	Interval time.Duration
}

// NewRetryingClient creates a transport client with the shared retry
// policy.
func NewRetryingClient(cfg RetryingClientConfig) *RetryingClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = defaultMaxAttempts
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultInterval
	}

	return &RetryingClient{
		courierCode: cfg.CourierCode,
		client:      &http.Client{Timeout: timeout},
		maxAttempts: attempts,
		interval:    interval,
	}
}

// Do sends the request, replaying body on each attempt. The response is
// returned as-is for any status outside the retried set; callers decide
// how to surface non-2xx statuses. A nil error with a retried status is
// impossible: once the budget is exhausted the last retryable failure is
// converted to an APIError.
func (c *RetryingClient) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*http.Response, error) {
	operation := func() (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			// Connection failures and timeouts are retryable.
			return nil, err
		}
		if retryableStatus(resp.StatusCode) {
			excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &APIError{
				Courier:    c.courierCode,
				Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
				Message:    string(excerpt),
				StatusCode: resp.StatusCode,
			}
		}
		return resp, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.interval

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.maxAttempts),
	)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok {
			return nil, apiErr
		}
		return nil, NewAPIError(c.courierCode, "TRANSPORT", "request failed after retries").WithCause(err)
	}
	return resp, nil
}
