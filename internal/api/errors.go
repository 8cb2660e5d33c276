package api

import (
	"errors"
	"fmt"
)

// ErrSignedOut is returned when a token refresh fails and the stored
// credentials have been cleared. Callers should drop back to guest mode.
var ErrSignedOut = errors.New("signed out: token refresh failed")

// Cause buckets an APIError for the error-handling policy: network errors
// are suppressed and retried opportunistically, auth errors trigger
// refresh-then-sign-out, everything else is surfaced to the user.
type Cause string

const (
	CauseNetwork    Cause = "network"
	CauseAuth       Cause = "auth"
	CauseValidation Cause = "validation"
	CauseServer     Cause = "server"
	CauseUnknown    Cause = "unknown"
)

// APIError is the only error type the HTTP client lets escape. Raw
// transport errors are wrapped with Cause=network and HTTPStatus=0
// (no response was ever received); non-2xx responses carry the status
// and the server's detail/error_code fields.
type APIError struct {
	Message    string `json:"message"`
	HTTPStatus int    `json:"http_status"` // 0 when no response was received
	ErrorCode  string `json:"error_code,omitempty"`
	Cause      Cause  `json:"cause"`
}

func (e *APIError) Error() string {
	if e.HTTPStatus == 0 {
		return e.Message
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("%s (status %d, code %s)", e.Message, e.HTTPStatus, e.ErrorCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.HTTPStatus)
}

// causeForStatus maps an HTTP status to the error taxonomy.
func causeForStatus(status int) Cause {
	switch {
	case status == 401:
		return CauseAuth
	case status >= 400 && status < 500:
		return CauseValidation
	case status >= 500:
		return CauseServer
	default:
		return CauseUnknown
	}
}

// networkError wraps a transport-level failure. Invariant: HTTPStatus
// stays 0 because no response was received.
func networkError(op string, err error) *APIError {
	return &APIError{
		Message:   fmt.Sprintf("%s: %v", op, err),
		ErrorCode: "NETWORK_ERROR",
		Cause:     CauseNetwork,
	}
}
