// Package store persists account review state. Records are JSON values in
// Redis, the review queue is a Redis list, and allocation runs as a single
// Lua script so no two admins can receive the same account.
package store

import "errors"

// ErrAlreadyDisabled is returned by DisableUser when the account was
// disabled before the call. Callers treat it as an idempotent success.
var ErrAlreadyDisabled = errors.New("user already disabled")

// Account is the persisted review state of a user.
type Account struct {
	UserID                string   `json:"user_id"`
	IP                    string   `json:"ip,omitempty"`
	DisabledAt            int64    `json:"disabled_at,omitempty"` // unix ns, 0 means active
	DuplicateReviewCount  *int     `json:"duplicate_review_count,omitempty"`
	PossibleDuplicateWith []string `json:"possible_duplicate_with,omitempty"`
	AllocatedTo           string   `json:"allocated_to,omitempty"`
}

// OnReview reports whether the account is awaiting a manual decision.
// The candidate set may already be empty when every similar account was
// blocked, so a recorded review counter plus ip also counts.
func (a *Account) OnReview() bool {
	if len(a.PossibleDuplicateWith) > 0 {
		return true
	}
	return a.DuplicateReviewCount != nil && a.IP != ""
}

// Disabled reports whether the account has been disabled.
func (a *Account) Disabled() bool {
	return a.DisabledAt > 0
}

// HasCandidate reports whether dupID is in the candidate set.
func (a *Account) HasCandidate(dupID string) bool {
	for _, id := range a.PossibleDuplicateWith {
		if id == dupID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, used to snapshot state before a decision so a
// failed side effect can roll back to the exact prior record.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.DuplicateReviewCount != nil {
		count := *a.DuplicateReviewCount
		clone.DuplicateReviewCount = &count
	}
	clone.PossibleDuplicateWith = append([]string(nil), a.PossibleDuplicateWith...)
	return &clone
}
