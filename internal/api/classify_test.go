package api

import (
	"errors"
	"fmt"
	"testing"
)

// timeoutErr implements net.Error's timeout signal.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "operation aborted" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// TestClassifyNetworkSignatures verifies every known network-failure
// shape classifies as IsNetwork.
func TestClassifyNetworkSignatures(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"failed to fetch", errors.New("Failed to fetch")},
		{"network error message", errors.New("Network error: request could not be sent")},
		{"timeout", timeoutErr{}},
		{"connection refused", fmt.Errorf("doing request: %w", errors.New("dial tcp 127.0.0.1:8000: connection refused"))},
		{"structured network code", &APIError{Message: "gone", ErrorCode: "NETWORK_ERROR"}},
		{"network cause", &APIError{Message: "gone", Cause: CauseNetwork}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); !got.IsNetwork {
				t.Errorf("Classify(%v).IsNetwork = false, want true", tc.err)
			}
		})
	}
}

// TestClassifyNonNetwork verifies nil and application-level errors are
// never classified as network: those must surface to the user.
func TestClassifyNonNetwork(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"nil", nil},
		{"http 400", &APIError{Message: "bad request", HTTPStatus: 400, Cause: CauseValidation}},
		{"http 422", &APIError{Message: "invalid", HTTPStatus: 422, Cause: CauseValidation}},
		{"validation code", &APIError{Message: "invalid", ErrorCode: "VALIDATION_ERROR", Cause: CauseValidation}},
		{"plain application error", errors.New("title already taken")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got.IsNetwork {
				t.Errorf("Classify(%v).IsNetwork = true, want false", tc.err)
			}
		})
	}
}

// TestClassifyAuth verifies 401s and token error codes classify as auth
// while ordinary validation errors do not.
func TestClassifyAuth(t *testing.T) {
	if got := Classify(&APIError{HTTPStatus: 401, Cause: CauseAuth}); !got.IsAuth {
		t.Error("401 APIError: IsAuth = false, want true")
	}
	if got := Classify(&APIError{ErrorCode: "TOKEN_EXPIRED"}); !got.IsAuth {
		t.Error("TOKEN_EXPIRED: IsAuth = false, want true")
	}
	if got := Classify(&APIError{HTTPStatus: 400, Cause: CauseValidation}); got.IsAuth {
		t.Error("400 APIError: IsAuth = true, want false")
	}
	if got := Classify(nil); got.IsAuth {
		t.Error("nil: IsAuth = true, want false")
	}
}

// TestIsNetworkErrorWrapped verifies classification sees through
// fmt.Errorf wrapping.
func TestIsNetworkErrorWrapped(t *testing.T) {
	inner := &APIError{Message: "down", Cause: CauseNetwork}
	wrapped := fmt.Errorf("creating workout: %w", inner)
	if !IsNetworkError(wrapped) {
		t.Error("IsNetworkError(wrapped APIError) = false, want true")
	}
}
