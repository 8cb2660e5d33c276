package api

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Classification is the single decision the rest of the system uses to
// choose between "suppress and retry silently" (network), "refresh or
// sign out" (auth), and "show the user an error" (neither).
type Classification struct {
	IsNetwork bool
	IsAuth    bool
}

// networkSignatures are substrings that mark an error message as a
// connectivity failure. Kept as data so the list is extensible and
// testable on its own; matching is case-insensitive.
var networkSignatures = []string{
	"failed to fetch",
	"network error",
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"broken pipe",
	"abort",
	"timeout",
	"timed out",
}

// authErrorCodes are server error_code values that mean the token is
// invalid or expired.
var authErrorCodes = map[string]bool{
	"TOKEN_EXPIRED":     true,
	"TOKEN_INVALID":     true,
	"NOT_AUTHENTICATED": true,
}

// Classify decides whether err represents a network failure, an
// authentication failure, or neither. nil and application-level errors
// (validation, 4xx other than 401) classify as neither: those are real
// failures that must surface to the user, not be retried silently.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return Classification{
			IsNetwork: apiErr.Cause == CauseNetwork || apiErr.ErrorCode == "NETWORK_ERROR",
			IsAuth:    apiErr.HTTPStatus == 401 || authErrorCodes[apiErr.ErrorCode],
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Classification{IsNetwork: true}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Classification{IsNetwork: true}
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range networkSignatures {
		if strings.Contains(msg, sig) {
			return Classification{IsNetwork: true}
		}
	}

	return Classification{}
}

// IsNetworkError reports whether err classifies as a connectivity failure.
func IsNetworkError(err error) bool {
	return Classify(err).IsNetwork
}

// IsAuthError reports whether err classifies as an authentication failure.
func IsAuthError(err error) bool {
	return Classify(err).IsAuth
}
