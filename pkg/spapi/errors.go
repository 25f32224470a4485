package spapi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass classifies a remote-call failure. The engine only branches on
// throttled versus everything else; the remaining classes exist for logs
// and metrics.
type ErrorClass string

const (
	// ErrorClassThrottled is a rate-limit rejection; the call may be retried
	// after backing off.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassClient is a 4xx request error (other than 429).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer is a 5xx server error.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork is a transport-level failure.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is a classified failure of one remote operation.
type APIError struct {
	Operation  string
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s error (status %d): %s: %v",
			e.Operation, e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s error (status %d): %s",
		e.Operation, e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsThrottled reports whether err is a rate-limit rejection.
func IsThrottled(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Class == ErrorClassThrottled
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassThrottled
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}
