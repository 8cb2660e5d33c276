package workout

import (
	"time"

	"github.com/meltforce/repsync/internal/api"
)

// Op is the kind of server mutation a queue entry defers.
type Op string

const (
	OpCreate   Op = "create"
	OpUpdate   Op = "update"
	OpComplete Op = "complete"
)

// QueueEntry is one mutation whose server counterpart has not been
// confirmed. Created when an online mutation attempt fails with a
// network-classified error; cleared when a later sync attempt succeeds
// or the user discards the session. The queue is persisted so deferred
// syncs survive restarts.
type QueueEntry struct {
	ID          string        `json:"id"`
	Op          Op            `json:"op"`
	Payload     api.Workout   `json:"payload"`
	AttemptedAt time.Time     `json:"attempted_at"`
	LastError   *api.APIError `json:"last_error,omitempty"`
}

// queueError extracts the APIError to record on an entry. Failures
// from the HTTP client are *APIError; anything else is wrapped with
// CauseUnknown.
func queueError(err error) *api.APIError {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*api.APIError); ok {
		return apiErr
	}
	return &api.APIError{Message: err.Error(), Cause: api.CauseUnknown}
}
