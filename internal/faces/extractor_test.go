package faces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-review/internal/config"
)

func setupMockEmbeddingServer(t *testing.T, handler http.HandlerFunc) *EmbeddingClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewEmbeddingClient(&config.EmbeddingConfig{URL: server.URL, Dim: 4}, 100)
}

func TestExtract_Success(t *testing.T) {
	var gotPath, gotContentType string
	client := setupMockEmbeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")

		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(extractResponse{
			Dim:       4,
			Embedding: []float32{0.1, 0.2, 0.3, 0.4},
			Model:     "facenet-512",
		})
	})

	embedding, err := client.Extract(context.Background(), makeTestJPEG(t, 200, 200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/v1/face-embedding" {
		t.Errorf("expected /v1/face-embedding path, got %s", gotPath)
	}
	if gotContentType == "" {
		t.Error("expected multipart content type header")
	}
	if len(embedding) != 4 {
		t.Fatalf("expected 4 floats, got %d", len(embedding))
	}
	if embedding[0] != 0.1 {
		t.Errorf("expected 0.1 as first component, got %v", embedding[0])
	}
}

func TestExtract_ServerError(t *testing.T) {
	client := setupMockEmbeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no face detected", http.StatusUnprocessableEntity)
	})

	if _, err := client.Extract(context.Background(), makeTestJPEG(t, 50, 50)); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestExtract_EmptyVector(t *testing.T) {
	client := setupMockEmbeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(extractResponse{Dim: 0})
	})

	if _, err := client.Extract(context.Background(), makeTestJPEG(t, 50, 50)); err == nil {
		t.Fatal("expected error for empty embedding vector")
	}
}

func TestExtract_InvalidPhoto(t *testing.T) {
	client := setupMockEmbeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be reached with an undecodable photo")
	})

	if _, err := client.Extract(context.Background(), []byte("garbage")); err == nil {
		t.Fatal("expected error for undecodable photo")
	}
}
