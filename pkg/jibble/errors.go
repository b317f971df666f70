package jibble

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrUnauthorized = errors.New("jibble: unauthorized")

// DecodeError reports a response body that does not match the expected shape.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("jibble %s: decode response: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response that was not retried or ran out of retries.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jibble %s: http status=%d body=%s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
