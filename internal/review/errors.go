package review

import "errors"

var (
	// ErrUserNotFound means the account (or the review photo a terminal
	// decision needs) does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoData means the account is not in the review state the operation
	// expects: not awaiting review, or the named candidate is not in its set.
	ErrNoData = errors.New("user not in expected review state")

	// ErrUserDisabled means the account was already disabled. Flows that
	// disable idempotently swallow it.
	ErrUserDisabled = errors.New("user is disabled")

	// ErrInvalidDecision means the admin sent a decision value the state
	// machine does not accept.
	ErrInvalidDecision = errors.New("invalid decision")
)
