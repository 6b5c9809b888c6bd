package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// RequestError reports a failed call to the provider: a transport failure, a
// non-2xx status, an undecodable body or an open circuit breaker.
type RequestError struct {
	Resource   Resource
	URL        string
	StatusCode int    // 0 when no response was received
	Body       string // leading part of the response body for non-2xx replies
	Err        error

	retryable bool
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s request failed: status %d: %s", e.Resource, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upstream %s request failed: %v", e.Resource, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Temporary reports whether repeating the request may succeed: network
// failures, 429 and 5xx replies are temporary; caller cancellation is not.
func (e *RequestError) Temporary() bool {
	return e.retryable
}

var errStatus = errors.New("unexpected status")

func statusError(res Resource, url string, status int, body string) *RequestError {
	return &RequestError{
		Resource:   res,
		URL:        url,
		StatusCode: status,
		Body:       body,
		Err:        fmt.Errorf("%w %d", errStatus, status),
		retryable:  status == http.StatusTooManyRequests || status >= http.StatusInternalServerError,
	}
}

func transportError(ctx context.Context, res Resource, url string, err error) *RequestError {
	retryable := false
	if ctx.Err() == nil {
		var netErr net.Error
		retryable = errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded)
	}
	return &RequestError{
		Resource:  res,
		URL:       url,
		Err:       err,
		retryable: retryable,
	}
}
