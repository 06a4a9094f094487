package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

var (
	// ErrEmptyCompletion means the service answered without any choices.
	ErrEmptyCompletion = errors.New("completion returned no choices")

	// ErrNoScriptedResponse is returned by MockProvider when its queue is empty.
	ErrNoScriptedResponse = errors.New("mock provider: no scripted response")
)

// UpstreamError wraps a failed call to the completion service after retries
// are exhausted. Retryable tells the caller that resubmitting the same input
// may succeed.
type UpstreamError struct {
	Purpose   string
	Attempts  int
	Retryable bool
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion service failed for %s after %d attempt(s): %v", e.Purpose, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a failure worth one more attempt:
// network errors, timeouts, rate limits and 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
