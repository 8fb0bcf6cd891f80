package faces

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/face-review/internal/config"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	extractEndpoint     = "/v1/face-embedding"
)

// EmbeddingClient computes face embeddings by calling the embedding server.
// Extraction itself is an external concern; this client only ships a
// downscaled JPEG over and reads the vector back.
type EmbeddingClient struct {
	baseURL string
	maxSize int
	client  *http.Client
}

// NewEmbeddingClient creates a new embedding client. Photos larger than
// maxSize on either axis are downscaled before upload.
func NewEmbeddingClient(cfg *config.EmbeddingConfig, maxSize int) *EmbeddingClient {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &EmbeddingClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		maxSize: maxSize,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// extractResponse represents the response from the embedding server.
type extractResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// Extract computes the face embedding for a photo.
func (c *EmbeddingClient) Extract(ctx context.Context, photo []byte) ([]float32, error) {
	if c.maxSize > 0 {
		resized, err := ResizeImage(photo, c.maxSize)
		if err != nil {
			return nil, fmt.Errorf("resize photo: %w", err)
		}
		photo = resized
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "photo.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(photo); err != nil {
		return nil, fmt.Errorf("failed to write photo data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+extractEndpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server returned status %d: %s", resp.StatusCode, body)
	}

	var result extractResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embedding server returned empty vector")
	}

	return result.Embedding, nil
}
