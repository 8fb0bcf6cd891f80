package review

import (
	"testing"

	"github.com/kozaktomas/face-review/internal/auth"
	"github.com/kozaktomas/face-review/internal/config"
	"github.com/kozaktomas/face-review/internal/review/mock"
	"github.com/kozaktomas/face-review/internal/store"
)

type fixtures struct {
	store      *mock.MockStore
	photos     *mock.MockPhotos
	embeddings *mock.MockEmbeddings
	extractor  *mock.MockExtractor
	notifier   *mock.MockNotifier
}

func testService(t *testing.T) (*Service, *fixtures) {
	t.Helper()

	f := &fixtures{
		store:      mock.NewMockStore(),
		photos:     mock.NewMockPhotos(),
		embeddings: mock.NewMockEmbeddings(),
		extractor:  &mock.MockExtractor{Embedding: []float32{0.5, 0.5}},
		notifier:   &mock.MockNotifier{},
	}

	cfg := &config.Config{}
	cfg.Review.MaxDistance = 0.32

	svc := NewService(cfg, f.store, f.photos, f.embeddings, f.extractor, f.notifier)
	return svc, f
}

func storeAccount(userID string) store.Account {
	return store.Account{UserID: userID}
}

func testIdentity(userID string) *auth.Identity {
	return &auth.Identity{
		UserID:   userID,
		Email:    userID + "@example.com",
		Role:     "user",
		RawToken: "user-token",
	}
}

func testAdmin() *auth.Identity {
	return &auth.Identity{
		UserID:   "admin1",
		Email:    "admin@example.com",
		Role:     "admin",
		RawToken: "admin-token",
	}
}

// onReview seeds an account awaiting review with the given candidates and a
// review photo.
func onReview(f *fixtures, userID string, candidates ...string) {
	count := 1
	f.store.AddAccount(store.Account{
		UserID:                userID,
		IP:                    "10.0.0.1",
		DuplicateReviewCount:  &count,
		PossibleDuplicateWith: candidates,
	})
	f.photos.AddReviewPhoto(userID, []byte("review-photo-"+userID))
	for _, id := range candidates {
		f.store.AddAccount(store.Account{UserID: id})
		f.photos.AddPrimaryPhoto(id, []byte("primary-photo-"+id))
	}
}
