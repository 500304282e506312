package api

import (
	"fmt"
	"time"

	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// APIError is a non-retryable error response from the remote API
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("API error (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// Kind maps HTTP status to a domain error kind
func (e *APIError) Kind() shared.ErrorKind {
	switch e.StatusCode {
	case 404:
		return shared.KindNotFound
	case 409:
		return shared.KindConflict
	case 429:
		return shared.KindRateLimited
	default:
		if e.StatusCode >= 500 {
			return shared.KindTransient
		}
		return shared.KindBadRequest
	}
}

// retryableError marks a failure the request loop may retry:
// network errors, 429s, and 5xx responses. statusCode is zero for
// failures that never produced an HTTP response.
type retryableError struct {
	message    string
	statusCode int
	retryAfter time.Duration
}

func (e *retryableError) Error() string {
	return e.message
}

// RetriesExhaustedError wraps the final retryable failure once the retry
// budget is spent.
type RetriesExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.LastErr
}
