package review

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/face-review/internal/auth"
	"github.com/kozaktomas/face-review/internal/store"
	"github.com/kozaktomas/face-review/internal/webhook"
)

// Admin decision values.
const (
	DecisionDuplicate    = "duplicate"
	DecisionNotDuplicate = "not_duplicate"
	DecisionRetry        = "retry"
)

// Decide applies an admin decision to an account on review.
//
// With mostSimilar set, the decision rules on that single candidate: it must
// be in the account's candidate set and the decision must be "duplicate".
// The candidate is disabled and removed from the set; removal happens even
// when disabling fails so the review cannot get stuck on a poisoned
// candidate.
//
// Without mostSimilar, the decision is terminal for the account itself
// (duplicate, not_duplicate or retry). Failed side effects roll the record
// back to its pre-call state so the admin can retry the decision.
func (s *Service) Decide(ctx context.Context, now time.Time, admin *auth.Identity, userID, decision, mostSimilar string) (Outcome, error) {
	account, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}
	if account == nil {
		return Outcome{}, fmt.Errorf("decide on %s: %w", userID, ErrUserNotFound)
	}
	if !account.OnReview() {
		return Outcome{}, fmt.Errorf("decide on %s: %w", userID, ErrNoData)
	}

	if mostSimilar != "" {
		return s.decideCandidate(ctx, now, admin, account, decision, mostSimilar)
	}

	photo, err := s.photos.GetReviewPhoto(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load review photo for %s: %w", userID, err)
	}
	if photo == nil {
		return Outcome{}, fmt.Errorf("review photo for %s: %w", userID, ErrUserNotFound)
	}

	prior := account.Clone()

	switch decision {
	case DecisionDuplicate:
		err = s.decideDuplicate(ctx, now, admin, prior)
	case DecisionRetry:
		err = s.decideRetry(ctx, admin, prior)
	case DecisionNotDuplicate:
		err = s.decideNotDuplicate(ctx, admin, prior, photo)
	default:
		return Outcome{}, fmt.Errorf("decision %q: %w", decision, ErrInvalidDecision)
	}
	if err != nil {
		return Outcome{}, err
	}
	return Approved(), nil
}

// decideCandidate disables a single candidate and pops it from the set.
func (s *Service) decideCandidate(ctx context.Context, now time.Time, admin *auth.Identity, account *store.Account, decision, mostSimilar string) (Outcome, error) {
	if !account.HasCandidate(mostSimilar) {
		return Outcome{}, fmt.Errorf("candidate %s not in set of %s: %w", mostSimilar, account.UserID, ErrNoData)
	}
	if decision != DecisionDuplicate {
		return Outcome{}, fmt.Errorf("decision %q on a candidate: %w", decision, ErrInvalidDecision)
	}

	disableErr := s.disableAccount(ctx, now, admin, mostSimilar)
	if errors.Is(disableErr, ErrUserDisabled) {
		disableErr = nil
	}

	// pop regardless of the disable outcome
	if err := s.store.PopPossibleDuplicate(ctx, account.UserID, mostSimilar); err != nil {
		return Outcome{}, err
	}
	if disableErr != nil {
		return Outcome{}, disableErr
	}
	return Approved(), nil
}

// decideDuplicate disables the account and every remaining candidate, then
// purges the review photo.
func (s *Service) decideDuplicate(ctx context.Context, now time.Time, admin *auth.Identity, prior *store.Account) error {
	userID := prior.UserID
	if err := s.store.UserReviewed(ctx, admin.UserID, userID, false); err != nil {
		return err
	}

	rollback := func(cause error) error {
		if err := s.store.RollbackReviewed(ctx, admin.UserID, userID, prior); err != nil {
			log.Printf("rollback of reviewed %s failed: %v", userID, err)
		}
		return cause
	}

	if err := s.disableAccount(ctx, now, admin, userID); err != nil && !errors.Is(err, ErrUserDisabled) {
		return rollback(err)
	}
	for _, dupID := range prior.PossibleDuplicateWith {
		if err := s.disableAccount(ctx, now, admin, dupID); err != nil && !errors.Is(err, ErrUserDisabled) {
			return rollback(err)
		}
	}

	if err := s.purgeReviewData(ctx, userID); err != nil {
		return rollback(err)
	}
	return nil
}

// decideRetry clears the review state but keeps the retry counter, and
// purges photos and embeddings so the account re-enters the upload flow.
func (s *Service) decideRetry(ctx context.Context, admin *auth.Identity, prior *store.Account) error {
	userID := prior.UserID
	if err := s.store.UserReviewed(ctx, admin.UserID, userID, true); err != nil {
		return err
	}

	var cause error
	if err := s.purgeReviewData(ctx, userID); err != nil {
		cause = err
	} else if err := s.photos.DeletePrimaryPhoto(ctx, userID); err != nil {
		cause = fmt.Errorf("delete primary photo for %s: %w", userID, err)
	}
	if cause != nil {
		if err := s.store.RollbackReviewed(ctx, admin.UserID, userID, prior); err != nil {
			log.Printf("rollback of reviewed %s failed: %v", userID, err)
		}
		return cause
	}
	return nil
}

// decideNotDuplicate promotes the review photo to the account's permanent
// primary photo, with its cached or freshly computed embedding.
func (s *Service) decideNotDuplicate(ctx context.Context, admin *auth.Identity, prior *store.Account, photo []byte) error {
	userID := prior.UserID

	embedding, err := s.embeddings.GetPendingReview(ctx, userID)
	if err != nil {
		return fmt.Errorf("load cached embedding for %s: %w", userID, err)
	}
	if embedding == nil {
		embedding, err = s.extractor.Extract(ctx, photo)
		if err != nil {
			return fmt.Errorf("extract embedding for %s: %w", userID, err)
		}
	}

	if err := s.store.UserReviewed(ctx, admin.UserID, userID, false); err != nil {
		return err
	}

	rollback := func(cause error) error {
		if err := s.store.RollbackReviewed(ctx, admin.UserID, userID, prior); err != nil {
			log.Printf("rollback of reviewed %s failed: %v", userID, err)
		}
		return cause
	}

	if err := s.photos.PutPrimaryPhoto(ctx, userID, photo); err != nil {
		return rollback(fmt.Errorf("store primary photo for %s: %w", userID, err))
	}
	if err := s.embeddings.PromotePrimary(ctx, userID, embedding); err != nil {
		return rollback(fmt.Errorf("promote embedding for %s: %w", userID, err))
	}
	if err := s.photos.DeleteReviewPhoto(ctx, userID); err != nil {
		return rollback(fmt.Errorf("delete review photo for %s: %w", userID, err))
	}
	return nil
}

// disableAccount disables the record, removes the primary photo and
// embeddings, and announces the change. ErrUserDisabled when the account
// was disabled already.
func (s *Service) disableAccount(ctx context.Context, now time.Time, admin *auth.Identity, userID string) error {
	if err := s.store.DisableUser(ctx, userID, now.UnixNano()); err != nil {
		if errors.Is(err, store.ErrAlreadyDisabled) {
			return fmt.Errorf("disable %s: %w", userID, ErrUserDisabled)
		}
		return err
	}

	if err := s.photos.DeletePrimaryPhoto(ctx, userID); err != nil {
		return fmt.Errorf("delete primary photo for %s: %w", userID, err)
	}
	if err := s.embeddings.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete embeddings for %s: %w", userID, err)
	}

	return s.notifier.AccountUpdated(ctx, webhook.AccountUpdate{
		UserID:        userID,
		Token:         admin.RawToken,
		Metadata:      admin.Metadata,
		LastUpdatedAt: []time.Time{now},
		Disabled:      true,
	})
}

// purgeReviewData drops the review photo and any pending embedding.
func (s *Service) purgeReviewData(ctx context.Context, userID string) error {
	if err := s.photos.DeleteReviewPhoto(ctx, userID); err != nil {
		return fmt.Errorf("delete review photo for %s: %w", userID, err)
	}
	if err := s.embeddings.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete embeddings for %s: %w", userID, err)
	}
	return nil
}

// ForwardToReview routes an account to the manual review queue: review
// state and candidates persisted, review photo stored, account service told
// the account is potentially duplicate. Any failure restores the prior
// state and removes the stored photo before propagating.
func (s *Service) ForwardToReview(ctx context.Context, now time.Time, current *auth.Identity, userID string, photo []byte, matches []string, ip string) (Outcome, error) {
	prior, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}
	prior = prior.Clone()

	retries := 0
	if prior != nil && prior.DuplicateReviewCount != nil {
		retries = *prior.DuplicateReviewCount
	}

	if err := s.store.MarkForReview(ctx, userID, ip, matches, retries); err != nil {
		return Outcome{}, err
	}

	rollback := func(cause error) error {
		if err := s.photos.DeleteReviewPhoto(ctx, userID); err != nil {
			log.Printf("cleanup of review photo for %s failed: %v", userID, err)
		}
		if err := s.store.RollbackManualReview(ctx, userID, prior); err != nil {
			log.Printf("rollback of manual review for %s failed: %v", userID, err)
		}
		return cause
	}

	if err := s.photos.PutReviewPhoto(ctx, userID, photo); err != nil {
		return Outcome{}, rollback(fmt.Errorf("store review photo for %s: %w", userID, err))
	}

	err = s.notifier.AccountUpdated(ctx, webhook.AccountUpdate{
		UserID:               userID,
		Token:                current.RawToken,
		Metadata:             current.Metadata,
		LastUpdatedAt:        []time.Time{now},
		PotentiallyDuplicate: true,
	})
	if err != nil {
		return Outcome{}, rollback(err)
	}

	return ForwardedToReview("possible duplicate face"), nil
}
