// Package mock provides in-memory implementations of the review workflow
// collaborators for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/face-review/internal/store"
	"github.com/kozaktomas/face-review/internal/webhook"
)

// MockStore is an in-memory implementation of review.Store.
type MockStore struct {
	mu       sync.RWMutex
	accounts map[string]*store.Account
	queue    []string
	alloc    map[string]string // userID -> adminID

	// Error injection
	GetUserError           error
	MarkForReviewError     error
	AllocateError          error
	UserReviewedError      error
	RollbackReviewedError  error
	AddDuplicatesError     error
	PopDuplicateError      error
	DisableUserError       error
	RollbackManualRevError error
}

// NewMockStore creates a new mock account store.
func NewMockStore() *MockStore {
	return &MockStore{
		accounts: make(map[string]*store.Account),
		alloc:    make(map[string]string),
	}
}

// AddAccount seeds an account record.
func (m *MockStore) AddAccount(account store.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.UserID] = account.Clone()
}

// RemoveAccount drops an account record, simulating concurrent deletion.
func (m *MockStore) RemoveAccount(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, userID)
}

// Enqueue appends a user to the review queue.
func (m *MockStore) Enqueue(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, userID)
}

// Account returns a copy of the stored record, nil when absent.
func (m *MockStore) Account(userID string) *store.Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[userID].Clone()
}

// QueueLen returns the current queue length.
func (m *MockStore) QueueLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.queue)
}

// AllocatedTo returns the admin currently holding the user, "" when none.
func (m *MockStore) AllocatedTo(userID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alloc[userID]
}

func (m *MockStore) GetUser(ctx context.Context, userID string) (*store.Account, error) {
	if m.GetUserError != nil {
		return nil, m.GetUserError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[userID].Clone(), nil
}

func (m *MockStore) MarkForReview(ctx context.Context, userID, ip string, candidates []string, retries int) error {
	if m.MarkForReviewError != nil {
		return m.MarkForReviewError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	account := m.accounts[userID]
	if account == nil {
		account = &store.Account{UserID: userID}
		m.accounts[userID] = account
	}
	account.IP = ip
	for _, id := range candidates {
		if id != userID && !account.HasCandidate(id) {
			account.PossibleDuplicateWith = append(account.PossibleDuplicateWith, id)
		}
	}
	count := retries + 1
	account.DuplicateReviewCount = &count

	for _, id := range m.queue {
		if id == userID {
			return nil
		}
	}
	m.queue = append(m.queue, userID)
	return nil
}

func (m *MockStore) RollbackManualReview(ctx context.Context, userID string, prior *store.Account) error {
	if m.RollbackManualRevError != nil {
		return m.RollbackManualRevError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeFromQueue(userID)
	delete(m.alloc, userID)
	if prior == nil {
		delete(m.accounts, userID)
		return nil
	}
	m.accounts[userID] = prior.Clone()
	return nil
}

func (m *MockStore) AllocateReviewUser(ctx context.Context, adminID string) (string, int, error) {
	if m.AllocateError != nil {
		return "", 0, m.AllocateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return "", 0, nil
	}
	userID := m.queue[0]
	m.queue = m.queue[1:]
	m.alloc[userID] = adminID
	return userID, len(m.queue), nil
}

func (m *MockStore) UserReviewed(ctx context.Context, adminID, userID string, retry bool) error {
	if m.UserReviewedError != nil {
		return m.UserReviewedError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.alloc, userID)
	m.removeFromQueue(userID)

	account := m.accounts[userID]
	if account == nil {
		return nil
	}
	account.PossibleDuplicateWith = nil
	account.IP = ""
	account.AllocatedTo = ""
	if !retry {
		account.DuplicateReviewCount = nil
	}
	return nil
}

func (m *MockStore) RollbackReviewed(ctx context.Context, adminID, userID string, prior *store.Account) error {
	if m.RollbackReviewedError != nil {
		return m.RollbackReviewedError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts[userID] = prior.Clone()
	m.alloc[userID] = adminID
	return nil
}

func (m *MockStore) AddPossibleDuplicates(ctx context.Context, userID string, ids []string) error {
	if m.AddDuplicatesError != nil {
		return m.AddDuplicatesError
	}
	if len(ids) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	account := m.accounts[userID]
	if account == nil {
		account = &store.Account{UserID: userID}
		m.accounts[userID] = account
	}
	for _, id := range ids {
		if id != userID && !account.HasCandidate(id) {
			account.PossibleDuplicateWith = append(account.PossibleDuplicateWith, id)
		}
	}
	return nil
}

func (m *MockStore) PopPossibleDuplicate(ctx context.Context, userID, dupID string) error {
	if m.PopDuplicateError != nil {
		return m.PopDuplicateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	account := m.accounts[userID]
	if account == nil {
		return nil
	}
	kept := account.PossibleDuplicateWith[:0]
	for _, id := range account.PossibleDuplicateWith {
		if id != dupID {
			kept = append(kept, id)
		}
	}
	account.PossibleDuplicateWith = kept
	return nil
}

func (m *MockStore) DisableUser(ctx context.Context, userID string, now int64) error {
	if m.DisableUserError != nil {
		return m.DisableUserError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	account := m.accounts[userID]
	if account == nil {
		account = &store.Account{UserID: userID}
		m.accounts[userID] = account
	}
	if account.Disabled() {
		return store.ErrAlreadyDisabled
	}
	account.DisabledAt = now
	return nil
}

func (m *MockStore) removeFromQueue(userID string) {
	kept := m.queue[:0]
	for _, id := range m.queue {
		if id != userID {
			kept = append(kept, id)
		}
	}
	m.queue = kept
}

// MockPhotos is an in-memory implementation of review.PhotoStore.
type MockPhotos struct {
	mu      sync.RWMutex
	review  map[string][]byte
	primary map[string][]byte

	// Error injection
	GetReviewError     error
	PutReviewError     error
	DeleteReviewError  error
	GetPrimaryError    error
	PutPrimaryError    error
	DeletePrimaryError error
}

// NewMockPhotos creates a new mock photo store.
func NewMockPhotos() *MockPhotos {
	return &MockPhotos{
		review:  make(map[string][]byte),
		primary: make(map[string][]byte),
	}
}

// AddReviewPhoto seeds a review photo.
func (m *MockPhotos) AddReviewPhoto(userID string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.review[userID] = data
}

// AddPrimaryPhoto seeds a primary photo.
func (m *MockPhotos) AddPrimaryPhoto(userID string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primary[userID] = data
}

// HasReviewPhoto reports whether a review photo is stored.
func (m *MockPhotos) HasReviewPhoto(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.review[userID]
	return ok
}

// HasPrimaryPhoto reports whether a primary photo is stored.
func (m *MockPhotos) HasPrimaryPhoto(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.primary[userID]
	return ok
}

func (m *MockPhotos) GetReviewPhoto(ctx context.Context, userID string) ([]byte, error) {
	if m.GetReviewError != nil {
		return nil, m.GetReviewError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.review[userID], nil
}

func (m *MockPhotos) PutReviewPhoto(ctx context.Context, userID string, data []byte) error {
	if m.PutReviewError != nil {
		return m.PutReviewError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.review[userID] = data
	return nil
}

func (m *MockPhotos) DeleteReviewPhoto(ctx context.Context, userID string) error {
	if m.DeleteReviewError != nil {
		return m.DeleteReviewError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.review, userID)
	return nil
}

func (m *MockPhotos) GetPrimaryPhoto(ctx context.Context, userID string) ([]byte, error) {
	if m.GetPrimaryError != nil {
		return nil, m.GetPrimaryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.primary[userID], nil
}

func (m *MockPhotos) PutPrimaryPhoto(ctx context.Context, userID string, data []byte) error {
	if m.PutPrimaryError != nil {
		return m.PutPrimaryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primary[userID] = data
	return nil
}

func (m *MockPhotos) DeletePrimaryPhoto(ctx context.Context, userID string) error {
	if m.DeletePrimaryError != nil {
		return m.DeletePrimaryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.primary, userID)
	return nil
}

// MockEmbeddings is an in-memory implementation of review.Embeddings.
// FindSimilar returns the seeded results verbatim.
type MockEmbeddings struct {
	mu      sync.RWMutex
	pending map[string][]float32
	primary map[string][]float32

	SimilarIDs       []string
	SimilarDistances []float64

	// Error injection
	GetPendingError  error
	SavePendingError error
	PromoteError     error
	DeleteError      error
	FindSimilarError error
}

// NewMockEmbeddings creates a new mock embedding store.
func NewMockEmbeddings() *MockEmbeddings {
	return &MockEmbeddings{
		pending: make(map[string][]float32),
		primary: make(map[string][]float32),
	}
}

// AddPending seeds a pending-review embedding.
func (m *MockEmbeddings) AddPending(userID string, embedding []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[userID] = embedding
}

// HasPrimary reports whether a promoted embedding is stored.
func (m *MockEmbeddings) HasPrimary(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.primary[userID]
	return ok
}

// HasPending reports whether a pending embedding is stored.
func (m *MockEmbeddings) HasPending(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pending[userID]
	return ok
}

func (m *MockEmbeddings) GetPendingReview(ctx context.Context, userID string) ([]float32, error) {
	if m.GetPendingError != nil {
		return nil, m.GetPendingError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending[userID], nil
}

func (m *MockEmbeddings) SavePending(ctx context.Context, userID string, embedding []float32) error {
	if m.SavePendingError != nil {
		return m.SavePendingError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[userID] = embedding
	return nil
}

func (m *MockEmbeddings) PromotePrimary(ctx context.Context, userID string, embedding []float32) error {
	if m.PromoteError != nil {
		return m.PromoteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, userID)
	m.primary[userID] = embedding
	return nil
}

func (m *MockEmbeddings) DeleteUser(ctx context.Context, userID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, userID)
	delete(m.primary, userID)
	return nil
}

func (m *MockEmbeddings) FindSimilar(ctx context.Context, embedding []float32, maxDistance float64) ([]string, []float64, error) {
	if m.FindSimilarError != nil {
		return nil, nil, m.FindSimilarError
	}
	return m.SimilarIDs, m.SimilarDistances, nil
}

// MockExtractor is a canned implementation of review.Extractor.
type MockExtractor struct {
	Embedding []float32
	Err       error
	OnExtract func() // runs before each extraction, for mid-flow interference

	Calls int
}

func (m *MockExtractor) Extract(ctx context.Context, photo []byte) ([]float32, error) {
	m.Calls++
	if m.OnExtract != nil {
		m.OnExtract()
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Embedding, nil
}

// MockNotifier records account-updated calls.
type MockNotifier struct {
	mu      sync.Mutex
	Updates []webhook.AccountUpdate
	Err     error
}

func (m *MockNotifier) AccountUpdated(ctx context.Context, update webhook.AccountUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Updates = append(m.Updates, update)
	return nil
}

// Sent returns a copy of the recorded updates.
func (m *MockNotifier) Sent() []webhook.AccountUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]webhook.AccountUpdate(nil), m.Updates...)
}
