package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

const (
	CodeTimeout  = "TIMEOUT"
	CodeNetwork  = "NETWORK_ERROR"
	CodeHTTP     = "HTTP_ERROR"
	CodeCanceled = "CANCELED"
	CodeUnknown  = "UNKNOWN_ERROR"
)

// Error is the single shape every gateway failure takes. Callers display
// Message and should not need to branch on Status.
type Error struct {
	Message string
	Status  int
	Code    string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code, so errors.Is(err, api.ErrTimeout) works for any timeout.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrTimeout  = &Error{Code: CodeTimeout}
	ErrNetwork  = &Error{Code: CodeNetwork}
	ErrHTTP     = &Error{Code: CodeHTTP}
	ErrCanceled = &Error{Code: CodeCanceled}
	ErrUnknown  = &Error{Code: CodeUnknown}
)

// Message extracts the display message from any error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err.Error() == "" {
		return "An error occurred"
	}
	return err.Error()
}

func httpError(status int) *Error {
	return &Error{
		Message: fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status)),
		Status:  status,
		Code:    CodeHTTP,
	}
}

// shape normalizes err into an *Error. parent is the caller's context, used to
// tell a caller cancellation apart from the per-attempt timeout firing.
func shape(parent context.Context, err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if errors.Is(parent.Err(), context.Canceled) {
		return &Error{Message: "Request canceled", Status: 499, Code: CodeCanceled, Err: err}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Message: "Request timeout", Status: http.StatusRequestTimeout, Code: CodeTimeout, Err: err}
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Message: "Request canceled", Status: 499, Code: CodeCanceled, Err: err}
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return &Error{Message: "No internet connection", Status: 0, Code: CodeNetwork, Err: err}
	}

	msg := err.Error()
	if msg == "" {
		msg = "An error occurred"
	}
	return &Error{Message: msg, Status: http.StatusInternalServerError, Code: CodeUnknown, Err: err}
}

// retryable reports whether another attempt could plausibly succeed.
func retryable(err *Error) bool {
	switch err.Code {
	case CodeTimeout, CodeNetwork:
		return true
	case CodeHTTP:
		return err.Status >= 500 || err.Status == http.StatusTooManyRequests
	default:
		return false
	}
}
