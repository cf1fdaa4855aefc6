package agentrpc

import (
	"context"
	"fmt"
	"time"
)

// ExhaustedError is the terminal failure after maxAttempts tries. It carries
// the last per-attempt error for triage.
type ExhaustedError struct {
	URL      string
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("call to %s failed after %d attempts: %v", e.URL, e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// RetryClient wraps Client with bounded retry for unreliable collaborators.
// Whether the delay between attempts grows is an explicit configuration
// choice, not an inferred one.
type RetryClient struct {
	client  *Client
	delay   time.Duration
	backoff bool
}

// NewRetryClient creates a retrying caller. delay is the wait between
// attempts; when backoff is true the delay doubles after each failure.
func NewRetryClient(client *Client, delay time.Duration, backoff bool) *RetryClient {
	return &RetryClient{
		client:  client,
		delay:   delay,
		backoff: backoff,
	}
}

// Call attempts the request up to maxAttempts times. Retryable failures are
// transport errors, per-attempt timeouts, HTTP error statuses and
// success-shaped empty payloads. A well-formed reply is returned as-is even
// when its status field says error; interpreting that is the caller's job.
func (rc *RetryClient) Call(ctx context.Context, url string, req Request, maxAttempts int) (*Response, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	attempts := 0
	delay := rc.delay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		resp, err := rc.client.Call(ctx, url, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// The parent context ending is not worth retrying against
		if ctx.Err() != nil {
			break
		}

		if attempt < maxAttempts {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &ExhaustedError{URL: url, Attempts: attempt, LastErr: ctx.Err()}
			}
			if rc.backoff {
				delay *= 2
			}
		}
	}

	return nil, &ExhaustedError{URL: url, Attempts: attempts, LastErr: lastErr}
}
