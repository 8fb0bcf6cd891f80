package review

// OutcomeKind tags the result of a workflow operation that can succeed in
// more than one way.
type OutcomeKind int

const (
	// OutcomeApproved means the operation completed and the account left
	// the review flow (or was never routed into it).
	OutcomeApproved OutcomeKind = iota

	// OutcomeForwardedToReview means the account was routed to manual
	// review. This is a success, not a failure; callers branch on it.
	OutcomeForwardedToReview
)

// Outcome is the tagged result of Decide and ForwardToReview.
type Outcome struct {
	Kind   OutcomeKind
	Reason string // set for OutcomeForwardedToReview
}

func Approved() Outcome {
	return Outcome{Kind: OutcomeApproved}
}

func ForwardedToReview(reason string) Outcome {
	return Outcome{Kind: OutcomeForwardedToReview, Reason: reason}
}
