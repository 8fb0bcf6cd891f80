package webhook

import "errors"

var (
	// ErrUnauthorized means the receiver rejected our credentials. Callers
	// use it to roll back state changes the notification was announcing.
	ErrUnauthorized = errors.New("webhook receiver rejected the request as unauthorized")

	// ErrBadRequest means the receiver could not process the payload.
	ErrBadRequest = errors.New("webhook receiver rejected the payload")

	// ErrConflict means the receiver reports a conflicting account state.
	ErrConflict = errors.New("webhook receiver reported a conflict")

	// ErrRateLimited means the receiver throttled us.
	ErrRateLimited = errors.New("webhook receiver throttled the request")
)
