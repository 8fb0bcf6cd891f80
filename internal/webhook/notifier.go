package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-review/internal/auth"
	"github.com/kozaktomas/face-review/internal/config"
)

// timestampLayout is what the account service expects in lastUpdatedAt.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// AccountUpdate describes an account state change to announce.
type AccountUpdate struct {
	UserID               string
	Token                string // bearer token of the request that caused the change
	Metadata             string // raw metadata token, forwarded as-is
	LastUpdatedAt        []time.Time
	Disabled             bool
	PotentiallyDuplicate bool
}

type accountUpdateBody struct {
	LastUpdatedAt        []string `json:"lastUpdatedAt"`
	Disabled             bool     `json:"disabled"`
	PotentiallyDuplicate bool     `json:"potentiallyDuplicate"`
}

type migrateLoginBody struct {
	Email          string `json:"email"`
	DeviceUniqueID string `json:"deviceUniqueId"`
	Language       string `json:"language"`
}

type migrateLoginResponse struct {
	LoginSession string `json:"loginSession"`
}

// Notifier delivers account callbacks with bounded constant-interval
// retries. Both destinations are optional; an unset URL makes the
// corresponding call a no-op.
type Notifier struct {
	cfg    config.WebhookConfig
	client *http.Client
}

func NewNotifier(cfg *config.Config) *Notifier {
	return &Notifier{
		cfg:    cfg.Webhook,
		client: &http.Client{Timeout: cfg.Webhook.Timeout},
	}
}

// AccountUpdated tells the account service that an account changed
// (disabled, or flagged as a potential duplicate). Delivery retries at a
// constant interval until the receiver accepts, the try budget runs out, or
// the wall-clock window closes. A 401 or 404 from the receiver stops the
// retries immediately; 401 surfaces ErrUnauthorized so the caller can roll
// the change back.
func (n *Notifier) AccountUpdated(ctx context.Context, update AccountUpdate) error {
	if n.cfg.AccountUpdatedURL == "" {
		return nil
	}

	timestamps := make([]string, len(update.LastUpdatedAt))
	for i, ts := range update.LastUpdatedAt {
		timestamps[i] = ts.UTC().Format(timestampLayout)
	}
	payload, err := json.Marshal(accountUpdateBody{
		LastUpdatedAt:        timestamps,
		Disabled:             update.Disabled,
		PotentiallyDuplicate: update.PotentiallyDuplicate,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal account update: %w", err)
	}

	destination := n.cfg.AccountUpdatedURL + "?userId=" + url.QueryEscape(update.UserID)
	// one delivery id across all retries of this notification
	deliveryID := uuid.NewString()

	operation := func() error {
		status, body, err := n.post(ctx, destination, payload, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+update.Token)
			req.Header.Set("X-Account-Metadata", update.Metadata)
			req.Header.Set("X-API-Key", n.cfg.APIKey)
			req.Header.Set("X-User-ID", update.UserID)
			req.Header.Set("X-Delivery-ID", deliveryID)
		})
		if err != nil {
			log.Printf("account-updated webhook %s to %s failed: %v", deliveryID, destination, err)
			return err
		}

		switch {
		case status >= 200 && status < 300:
			return nil
		case status == http.StatusUnauthorized:
			log.Printf("account-updated webhook to %s got %d: %s", destination, status, body)
			return backoff.Permanent(fmt.Errorf("%w: status %d", ErrUnauthorized, status))
		case status == http.StatusNotFound:
			log.Printf("account-updated webhook to %s got %d: %s", destination, status, body)
			return backoff.Permanent(fmt.Errorf("account not found: status %d: %s", status, body))
		default:
			log.Printf("account-updated webhook to %s got %d: %s", destination, status, body)
			return fmt.Errorf("account-updated webhook returned status %d", status)
		}
	}

	return n.retry(ctx, operation, n.cfg.MaxElapsed)
}

// MigratePhoneLogin asks the account service to start an email login session
// for a phone-number account being migrated. Returns the login session token.
// The receiver's 400, 409 and 429 answers are final and map to typed errors.
func (n *Notifier) MigratePhoneLogin(ctx context.Context, identity *auth.Identity) (string, error) {
	if n.cfg.MigrateLoginURL == "" {
		return "", nil
	}

	payload, err := json.Marshal(migrateLoginBody{
		Email:          identity.Email,
		DeviceUniqueID: identity.DeviceUniqueID,
		Language:       identity.Language,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal migrate login request: %w", err)
	}

	destination := n.cfg.MigrateLoginURL + "?userId=" + url.QueryEscape(identity.UserID)
	deliveryID := uuid.NewString()

	var session string
	operation := func() error {
		status, body, err := n.post(ctx, destination, payload, func(req *http.Request) {
			// Migration identities are built from headers and carry no token.
			if identity.RawToken != "" {
				req.Header.Set("Authorization", "Bearer "+identity.RawToken)
			}
			req.Header.Set("X-API-Key", n.cfg.APIKey)
			req.Header.Set("X-User-ID", identity.UserID)
			req.Header.Set("X-Delivery-ID", deliveryID)
		})
		if err != nil {
			log.Printf("migrate-login webhook %s to %s failed: %v", deliveryID, destination, err)
			return err
		}

		switch status {
		case http.StatusOK, http.StatusCreated:
			var result migrateLoginResponse
			if err := json.Unmarshal(body, &result); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to unmarshal login session: %w", err))
			}
			session = result.LoginSession
			return nil
		case http.StatusBadRequest:
			log.Printf("migrate-login webhook to %s got %d: %s", destination, status, body)
			return backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrBadRequest, status, body))
		case http.StatusConflict:
			log.Printf("migrate-login webhook to %s got %d: %s", destination, status, body)
			return backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrConflict, status, body))
		case http.StatusTooManyRequests:
			log.Printf("migrate-login webhook to %s got %d: %s", destination, status, body)
			return backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrRateLimited, status, body))
		default:
			log.Printf("migrate-login webhook to %s got %d: %s", destination, status, body)
			return fmt.Errorf("migrate-login webhook returned status %d", status)
		}
	}

	if err := n.retry(ctx, operation, n.cfg.MigrateMaxElapsed); err != nil {
		return "", err
	}
	return session, nil
}

// retry runs op at a constant interval until it succeeds, returns a
// permanent error, exceeds the try budget or the wall-clock window closes.
func (n *Notifier) retry(ctx context.Context, op backoff.Operation, maxElapsed time.Duration) error {
	if maxElapsed > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxElapsed)
		defer cancel()
	}

	tries := n.cfg.MaxTries
	if tries < 1 {
		tries = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(n.cfg.RetryInterval),
			uint64(tries-1), // MaxRetries counts retries after the first try
		),
		ctx,
	)
	return backoff.Retry(op, policy)
}

func (n *Notifier) post(ctx context.Context, destination string, payload []byte, decorate func(*http.Request)) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	decorate(req)

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
