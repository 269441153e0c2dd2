package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Tkzito/lori-llm-local/internal/logging"
)

// ErrUnavailable marks an inference backend that could not be reached after
// the retry budget was spent.
var ErrUnavailable = errors.New("inference backend unavailable")

// RetryClient wraps a Client with bounded retries and backoff for transient
// backend failures. Non-retryable errors pass through on the first attempt.
type RetryClient struct {
	inner   Client
	retries int
	backoff time.Duration
	log     *logging.Logger
}

// NewRetryClient wraps client with the given retry budget. retries is the
// number of attempts after the first; backoff doubles per attempt.
func NewRetryClient(client Client, retries int, backoff time.Duration, log *logging.Logger) *RetryClient {
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &RetryClient{
		inner:   client,
		retries: retries,
		backoff: backoff,
		log:     log.Sub("llm.retry"),
	}
}

// Name returns the wrapped backend name.
func (c *RetryClient) Name() string { return c.inner.Name() }

// Complete calls the wrapped backend, retrying transient failures.
func (c *RetryClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var resp *CompletionResponse
	err := c.withRetries(ctx, func() error {
		var err error
		resp, err = c.inner.Complete(ctx, req)
		return err
	})
	return resp, err
}

// Stream calls the wrapped backend, retrying transient call-time failures.
// Errors that occur after the stream is established are not retried here.
func (c *RetryClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	var ch <-chan StreamEvent
	err := c.withRetries(ctx, func() error {
		var err error
		ch, err = c.inner.Stream(ctx, req)
		return err
	})
	return ch, err
}

func (c *RetryClient) withRetries(ctx context.Context, attempt func() error) error {
	var lastErr error
	delay := c.backoff

	for i := 0; i <= c.retries; i++ {
		if i > 0 {
			c.log.Warn().
				Int("attempt", i).
				Err(lastErr).
				Msg("retrying inference backend")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}

		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
	}

	return errors.Join(ErrUnavailable, lastErr)
}

// IsRetryable checks if the error suggests the backend may recover shortly.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		// Code 0 means the request never got an HTTP response.
		switch provErr.Code {
		case 0, 429, 500, 502, 503, 529:
			return true
		}
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout")
}
