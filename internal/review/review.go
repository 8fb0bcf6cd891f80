// Package review implements the duplicate-account review workflow: routing
// accounts to a human review queue, computing duplicate candidates by face
// similarity, allocating queued accounts to admins, and applying admin
// decisions with rollback on failed side effects.
package review

import (
	"context"

	"github.com/kozaktomas/face-review/internal/config"
	"github.com/kozaktomas/face-review/internal/store"
	"github.com/kozaktomas/face-review/internal/webhook"
)

// Store persists account review state and the review queue.
type Store interface {
	GetUser(ctx context.Context, userID string) (*store.Account, error)
	MarkForReview(ctx context.Context, userID, ip string, candidates []string, retries int) error
	RollbackManualReview(ctx context.Context, userID string, prior *store.Account) error
	AllocateReviewUser(ctx context.Context, adminID string) (string, int, error)
	UserReviewed(ctx context.Context, adminID, userID string, retry bool) error
	RollbackReviewed(ctx context.Context, adminID, userID string, prior *store.Account) error
	AddPossibleDuplicates(ctx context.Context, userID string, ids []string) error
	PopPossibleDuplicate(ctx context.Context, userID, dupID string) error
	DisableUser(ctx context.Context, userID string, now int64) error
}

// PhotoStore keeps review and primary photos as objects.
type PhotoStore interface {
	GetReviewPhoto(ctx context.Context, userID string) ([]byte, error)
	PutReviewPhoto(ctx context.Context, userID string, data []byte) error
	DeleteReviewPhoto(ctx context.Context, userID string) error
	GetPrimaryPhoto(ctx context.Context, userID string) ([]byte, error)
	PutPrimaryPhoto(ctx context.Context, userID string, data []byte) error
	DeletePrimaryPhoto(ctx context.Context, userID string) error
}

// Embeddings persists face embeddings and answers similarity queries.
type Embeddings interface {
	GetPendingReview(ctx context.Context, userID string) ([]float32, error)
	SavePending(ctx context.Context, userID string, embedding []float32) error
	PromotePrimary(ctx context.Context, userID string, embedding []float32) error
	DeleteUser(ctx context.Context, userID string) error
	FindSimilar(ctx context.Context, embedding []float32, maxDistance float64) ([]string, []float64, error)
}

// Extractor computes a face embedding from photo bytes.
type Extractor interface {
	Extract(ctx context.Context, photo []byte) ([]float32, error)
}

// Notifier announces account state changes to the account service.
type Notifier interface {
	AccountUpdated(ctx context.Context, update webhook.AccountUpdate) error
}

// Candidate is a possible duplicate shown to the reviewing admin.
type Candidate struct {
	UserID string
	Photo  []byte
}

// UserForReview is an allocated account together with everything the admin
// needs to decide.
type UserForReview struct {
	Account    *store.Account
	Photo      []byte
	Retries    int
	Candidates []Candidate
}

// Service runs the review workflow over its collaborators.
type Service struct {
	store       Store
	photos      PhotoStore
	embeddings  Embeddings
	extractor   Extractor
	notifier    Notifier
	maxDistance float64
}

func NewService(cfg *config.Config, st Store, photos PhotoStore, embeddings Embeddings, extractor Extractor, notifier Notifier) *Service {
	return &Service{
		store:       st,
		photos:      photos,
		embeddings:  embeddings,
		extractor:   extractor,
		notifier:    notifier,
		maxDistance: cfg.Review.MaxDistance,
	}
}
