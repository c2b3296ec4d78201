package client

import (
	"context"
	"net/http"
	"time"
)

// RetryPolicy controls how mutating calls are retried. Transport errors
// always retry, response errors only when Retryable accepts the status.
// Backoff grows linearly with the attempt number.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Retryable   func(statusCode int) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     100 * time.Millisecond,
		Retryable: func(statusCode int) bool {
			switch statusCode {
			case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
				return true
			default:
				return false
			}
		},
	}
}

func (p RetryPolicy) retryableStatus(statusCode int) bool {
	if p.Retryable == nil {
		return false
	}
	return p.Retryable(statusCode)
}

// wait sleeps the backoff for the given attempt (1-based), aborting early
// when the context ends.
func (p RetryPolicy) wait(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(attempt) * p.Backoff):
		return nil
	}
}
