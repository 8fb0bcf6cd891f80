package review

import (
	"context"
	"fmt"
	"log"
)

// ResolveCandidates computes the account's duplicate candidates: embedding
// from the pending-review cache (extracted from the photo when absent),
// similarity search under the configured distance cutoff, self excluded,
// new matches unioned into the persisted candidate set. Returns projections
// for every id in the grown set whose primary photo still exists and whose
// account is not disabled; stale ids stay in the set until a decision
// removes them.
func (s *Service) ResolveCandidates(ctx context.Context, userID string, photo []byte) ([]Candidate, error) {
	embedding, err := s.embeddings.GetPendingReview(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cached embedding for %s: %w", userID, err)
	}
	if embedding == nil {
		embedding, err = s.extractor.Extract(ctx, photo)
		if err != nil {
			return nil, fmt.Errorf("extract embedding for %s: %w", userID, err)
		}
		if err := s.embeddings.SavePending(ctx, userID, embedding); err != nil {
			log.Printf("failed to cache pending embedding for %s: %v", userID, err)
		}
	}

	ids, _, err := s.embeddings.FindSimilar(ctx, embedding, s.maxDistance)
	if err != nil {
		return nil, fmt.Errorf("similarity search for %s: %w", userID, err)
	}

	matches := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != userID {
			matches = append(matches, id)
		}
	}

	if err := s.store.AddPossibleDuplicates(ctx, userID, matches); err != nil {
		return nil, err
	}

	account, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, nil
	}

	return s.projectCandidates(ctx, account.PossibleDuplicateWith)
}

// projectCandidates builds the admin-facing view of a candidate set. Ids
// whose primary photo is gone or whose account is disabled are dropped from
// the view only; the persisted set is untouched.
func (s *Service) projectCandidates(ctx context.Context, ids []string) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		account, err := s.store.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		if account != nil && account.Disabled() {
			continue
		}

		photo, err := s.photos.GetPrimaryPhoto(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load primary photo for %s: %w", id, err)
		}
		if photo == nil {
			continue
		}

		candidates = append(candidates, Candidate{UserID: id, Photo: photo})
	}
	return candidates, nil
}
