package faces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/pgvector/pgvector-go"
)

const defaultSearchLimit = 10

// StoredEmbedding is a persisted face embedding.
type StoredEmbedding struct {
	UserID        string
	Embedding     []float32
	Model         string
	Dim           int
	PendingReview bool
}

// Repository provides PostgreSQL-backed face embedding storage with an
// optional in-memory HNSW index for similarity search. Pending-review
// embeddings are persisted but excluded from search until promoted.
type Repository struct {
	pool        *Pool
	model       string
	index       *Index
	hnswEnabled bool
	hnswMu      sync.RWMutex
}

// NewRepository creates a new face embedding repository.
func NewRepository(pool *Pool, model string) *Repository {
	return &Repository{pool: pool, model: model}
}

// GetPendingReview returns the embedding cached when the account was
// forwarded to review, or nil when none was cached.
func (r *Repository) GetPendingReview(ctx context.Context, userID string) ([]float32, error) {
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx,
		"SELECT embedding FROM face_embeddings WHERE user_id = $1 AND pending_review",
		userID,
	).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query pending embedding: %w", err)
	}
	return vec.Slice(), nil
}

// SavePending upserts an embedding flagged as pending review. It is not
// indexed for search until promoted.
func (r *Repository) SavePending(ctx context.Context, userID string, embedding []float32) error {
	return r.save(ctx, userID, embedding, true)
}

// PromotePrimary upserts the embedding as the account's permanent primary
// and makes it searchable.
func (r *Repository) PromotePrimary(ctx context.Context, userID string, embedding []float32) error {
	if err := r.save(ctx, userID, embedding, false); err != nil {
		return err
	}

	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswEnabled && r.index != nil {
		r.index.Add(userID, embedding)
		if err := r.index.Save(); err != nil {
			log.Printf("failed to persist index after promote of %s: %v", userID, err)
		}
	}
	return nil
}

func (r *Repository) save(ctx context.Context, userID string, embedding []float32, pending bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO face_embeddings (user_id, embedding, model, dim, pending_review)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET embedding = EXCLUDED.embedding, model = EXCLUDED.model,
		    dim = EXCLUDED.dim, pending_review = EXCLUDED.pending_review
	`, userID, pgvector.NewVector(embedding), r.model, len(embedding), pending)
	if err != nil {
		return fmt.Errorf("save embedding for %s: %w", userID, err)
	}
	return nil
}

// DeleteUser removes the user's embedding from storage and from the index.
func (r *Repository) DeleteUser(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM face_embeddings WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("delete embedding for %s: %w", userID, err)
	}

	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswEnabled && r.index != nil {
		r.index.Delete(userID)
	}
	return nil
}

// FindSimilar returns user ids whose primary embedding is within maxDistance
// of the query, closest first. Uses the in-memory index when enabled,
// otherwise falls back to a pgvector query.
func (r *Repository) FindSimilar(ctx context.Context, embedding []float32, maxDistance float64) ([]string, []float64, error) {
	r.hnswMu.RLock()
	hnswEnabled := r.hnswEnabled && r.index != nil
	r.hnswMu.RUnlock()

	if hnswEnabled {
		return r.findSimilarHNSW(embedding, maxDistance)
	}
	return r.findSimilarPostgres(ctx, embedding, maxDistance)
}

func (r *Repository) findSimilarHNSW(embedding []float32, maxDistance float64) ([]string, []float64, error) {
	ids, distances, err := r.index.Search(embedding, defaultSearchLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("index search: %w", err)
	}

	outIDs := make([]string, 0, len(ids))
	outDistances := make([]float64, 0, len(ids))
	for i, id := range ids {
		if distances[i] > maxDistance {
			continue
		}
		outIDs = append(outIDs, id)
		outDistances = append(outDistances, distances[i])
	}
	return outIDs, outDistances, nil
}

func (r *Repository) findSimilarPostgres(ctx context.Context, embedding []float32, maxDistance float64) ([]string, []float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, embedding <=> $1 AS distance
		FROM face_embeddings
		WHERE NOT pending_review AND (embedding <=> $1) <= $2
		ORDER BY distance
		LIMIT $3
	`, pgvector.NewVector(embedding), maxDistance, defaultSearchLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var ids []string
	var distances []float64
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, nil, fmt.Errorf("scan similarity row: %w", err)
		}
		ids = append(ids, id)
		distances = append(distances, distance)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("similarity rows: %w", err)
	}
	return ids, distances, nil
}

// ListPrimary streams every non-pending embedding, invoking fn per row.
// Used to rebuild the in-memory index.
func (r *Repository) ListPrimary(ctx context.Context, fn func(userID string, embedding []float32) error) error {
	rows, err := r.pool.Query(ctx,
		"SELECT user_id, embedding FROM face_embeddings WHERE NOT pending_review")
	if err != nil {
		return fmt.Errorf("list primary embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var vec pgvector.Vector
		if err := rows.Scan(&id, &vec); err != nil {
			return fmt.Errorf("scan embedding row: %w", err)
		}
		if err := fn(id, vec.Slice()); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountPrimary returns the number of searchable embeddings.
func (r *Repository) CountPrimary(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM face_embeddings WHERE NOT pending_review").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// EnableHNSW builds (or loads from indexPath) the in-memory index and routes
// similarity searches through it.
func (r *Repository) EnableHNSW(ctx context.Context, indexPath string) error {
	index := NewIndex()

	if indexPath != "" {
		if err := index.Load(indexPath); err != nil {
			return err
		}
	}

	if index.Len() == 0 {
		embeddings := make(map[string][]float32)
		err := r.ListPrimary(ctx, func(userID string, embedding []float32) error {
			embeddings[userID] = embedding
			return nil
		})
		if err != nil {
			return err
		}
		index.Build(embeddings)
		index.SetPath(indexPath)
		if err := index.Save(); err != nil {
			return err
		}
	}

	r.hnswMu.Lock()
	r.index = index
	r.hnswEnabled = true
	r.hnswMu.Unlock()
	return nil
}

// HNSWCount returns the number of indexed embeddings.
func (r *Repository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.index == nil {
		return 0
	}
	return r.index.Len()
}
