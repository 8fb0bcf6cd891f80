package review

import (
	"context"
	"fmt"
	"log"
)

// Allocate pops the next queued account for the admin and returns it with
// its review photo, retry counter, candidate projections and the remaining
// queue length. Returns (nil, 0, nil) when the queue is empty.
//
// Stale queue entries (review photo gone, resolved out-of-band) are marked
// reviewed and skipped. The loop is bounded by the initial queue length so
// a fully-stale queue terminates.
func (s *Service) Allocate(ctx context.Context, adminID string) (*UserForReview, int, error) {
	userID, queueLen, err := s.store.AllocateReviewUser(ctx, adminID)
	if err != nil {
		return nil, 0, err
	}

	// +1 because the first pop already happened.
	for attempt := 0; attempt <= queueLen; attempt++ {
		if userID == "" {
			return nil, 0, nil
		}

		photo, err := s.photos.GetReviewPhoto(ctx, userID)
		if err != nil {
			return nil, 0, fmt.Errorf("load review photo for %s: %w", userID, err)
		}
		if photo == nil {
			// The review photo is gone, so the account was resolved
			// outside the queue. Clear it and move on.
			log.Printf("skipping stale review queue entry %s", userID)
			if err := s.store.UserReviewed(ctx, adminID, userID, false); err != nil {
				return nil, 0, fmt.Errorf("clear stale entry %s: %w", userID, err)
			}
			userID, queueLen, err = s.store.AllocateReviewUser(ctx, adminID)
			if err != nil {
				return nil, 0, err
			}
			continue
		}

		account, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return nil, 0, err
		}
		if account == nil {
			return nil, 0, fmt.Errorf("allocated user %s: %w", userID, ErrUserNotFound)
		}

		candidates, err := s.projectCandidates(ctx, account.PossibleDuplicateWith)
		if err != nil {
			return nil, 0, err
		}
		if len(candidates) == 0 {
			// No live candidates left, even if the persisted set still
			// holds stale ids. Run the similarity search again.
			candidates, err = s.ResolveCandidates(ctx, userID, photo)
			if err != nil {
				return nil, 0, err
			}
			// account record may have grown a candidate set
			account, err = s.store.GetUser(ctx, userID)
			if err != nil {
				return nil, 0, err
			}
			if account == nil {
				return nil, 0, fmt.Errorf("allocated user %s: %w", userID, ErrUserNotFound)
			}
		}

		retries := 0
		if account.DuplicateReviewCount != nil {
			retries = *account.DuplicateReviewCount
		}

		return &UserForReview{
			Account:    account,
			Photo:      photo,
			Retries:    retries,
			Candidates: candidates,
		}, queueLen, nil
	}

	return nil, 0, nil
}
