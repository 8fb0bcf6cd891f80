package review

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/face-review/internal/store"
)

func TestResolveCandidates_UsesCachedEmbedding(t *testing.T) {
	svc, f := testService(t)
	f.store.AddAccount(storeAccount("u1"))
	f.embeddings.AddPending("u1", []float32{0.1, 0.2})
	f.embeddings.SimilarIDs = []string{"u2"}
	f.embeddings.SimilarDistances = []float64{0.25}
	f.store.AddAccount(storeAccount("u2"))
	f.photos.AddPrimaryPhoto("u2", []byte("primary-photo-u2"))

	candidates, err := svc.ResolveCandidates(context.Background(), "u1", []byte("photo"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.extractor.Calls != 0 {
		t.Error("cached embedding must be preferred over re-extraction")
	}
	if len(candidates) != 1 || candidates[0].UserID != "u2" {
		t.Fatalf("expected candidate u2, got %+v", candidates)
	}
	if string(candidates[0].Photo) != "primary-photo-u2" {
		t.Errorf("unexpected candidate photo: %q", candidates[0].Photo)
	}
}

func TestResolveCandidates_ExtractsAndCaches(t *testing.T) {
	svc, f := testService(t)
	f.store.AddAccount(storeAccount("u1"))

	if _, err := svc.ResolveCandidates(context.Background(), "u1", []byte("photo")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.extractor.Calls != 1 {
		t.Errorf("expected one extraction, got %d", f.extractor.Calls)
	}
	if !f.embeddings.HasPending("u1") {
		t.Error("expected the extracted embedding cached as pending")
	}
}

func TestResolveCandidates_ExcludesSelf(t *testing.T) {
	svc, f := testService(t)
	f.store.AddAccount(storeAccount("u1"))
	f.embeddings.AddPending("u1", []float32{0.1, 0.2})
	f.embeddings.SimilarIDs = []string{"u1", "u2"}
	f.embeddings.SimilarDistances = []float64{0.0, 0.2}
	f.store.AddAccount(storeAccount("u2"))
	f.photos.AddPrimaryPhoto("u2", []byte("primary-photo-u2"))

	candidates, err := svc.ResolveCandidates(context.Background(), "u1", []byte("photo"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, c := range candidates {
		if c.UserID == "u1" {
			t.Error("the account itself must not be its own candidate")
		}
	}
	if f.store.Account("u1").HasCandidate("u1") {
		t.Error("the persisted set must not contain the account itself")
	}
}

func TestResolveCandidates_DropsStaleWithoutRemoving(t *testing.T) {
	svc, f := testService(t)
	// u2 lost its primary photo, u3 is disabled, u4 is live.
	f.store.AddAccount(store.Account{UserID: "u1", PossibleDuplicateWith: []string{"u2", "u3", "u4"}})
	f.embeddings.AddPending("u1", []float32{0.1, 0.2})
	f.store.AddAccount(storeAccount("u2"))
	f.store.AddAccount(store.Account{UserID: "u3", DisabledAt: 1})
	f.photos.AddPrimaryPhoto("u3", []byte("primary-photo-u3"))
	f.store.AddAccount(storeAccount("u4"))
	f.photos.AddPrimaryPhoto("u4", []byte("primary-photo-u4"))

	candidates, err := svc.ResolveCandidates(context.Background(), "u1", []byte("photo"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 1 || candidates[0].UserID != "u4" {
		t.Fatalf("expected only the live candidate u4, got %+v", candidates)
	}

	// stale ids stay persisted until a decision removes them
	set := f.store.Account("u1").PossibleDuplicateWith
	if len(set) != 3 {
		t.Errorf("expected the persisted set untouched, got %v", set)
	}
}

func TestResolveCandidates_UnionsNewMatches(t *testing.T) {
	svc, f := testService(t)
	f.store.AddAccount(store.Account{UserID: "u1", PossibleDuplicateWith: []string{"u2"}})
	f.embeddings.AddPending("u1", []float32{0.1, 0.2})
	f.embeddings.SimilarIDs = []string{"u2", "u3"}
	f.embeddings.SimilarDistances = []float64{0.1, 0.3}
	for _, id := range []string{"u2", "u3"} {
		f.store.AddAccount(storeAccount(id))
		f.photos.AddPrimaryPhoto(id, []byte("primary-photo-"+id))
	}

	candidates, err := svc.ResolveCandidates(context.Background(), "u1", []byte("photo"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	set := f.store.Account("u1").PossibleDuplicateWith
	if len(set) != 2 {
		t.Fatalf("expected set {u2,u3}, got %v", set)
	}
	if len(candidates) != 2 {
		t.Errorf("expected 2 candidate projections, got %d", len(candidates))
	}
}

func TestResolveCandidates_ExtractionFailure(t *testing.T) {
	svc, f := testService(t)
	f.store.AddAccount(storeAccount("u1"))
	injected := errors.New("no face detected")
	f.extractor.Err = injected

	if _, err := svc.ResolveCandidates(context.Background(), "u1", []byte("photo")); !errors.Is(err, injected) {
		t.Fatalf("expected extraction failure to propagate, got %v", err)
	}
}
