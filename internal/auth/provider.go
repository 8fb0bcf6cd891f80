package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProviderToken is the claim set returned by the external identity provider
// for a verified token.
type ProviderToken struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ProviderClient verifies tokens issued by an external identity provider.
// The provider validates the signature against its own trust roots; no
// locally-trusted algorithm is involved.
type ProviderClient interface {
	VerifyIDToken(ctx context.Context, token string) (*ProviderToken, error)
}

// httpProvider talks to the provider's token verification endpoint.
type httpProvider struct {
	verifyURL string
	audience  string
	client    *http.Client
}

func newHTTPProvider(verifyURL, audience string) ProviderClient {
	return &httpProvider{
		verifyURL: verifyURL,
		audience:  audience,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *httpProvider) VerifyIDToken(ctx context.Context, token string) (*ProviderToken, error) {
	if p.verifyURL == "" {
		return nil, fmt.Errorf("no verifier configured for external issuer")
	}

	body, err := json.Marshal(map[string]string{
		"token":    token,
		"audience": p.audience,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.verifyURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read verify response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider rejected token: status %d: %s", resp.StatusCode, respBody)
	}

	var data ProviderToken
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("unmarshal verify response: %w", err)
	}

	if data.UID == "" {
		return nil, fmt.Errorf("provider response missing uid")
	}

	return &data, nil
}
