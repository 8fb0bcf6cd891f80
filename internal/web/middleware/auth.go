package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-review/internal/auth"
)

type contextKey string

const identityContextKey contextKey = "identity"

// TokenVerifier parses bearer tokens and applies metadata linking.
// Implemented by auth.Verifier.
type TokenVerifier interface {
	Parse(ctx context.Context, raw string) (*auth.Identity, error)
	Link(identity *auth.Identity, mdToken string) error
}

// RequireAuth authenticates the request and stores the resolved identity in
// the context. With allowMigration set, the phone-number migration headers
// short-circuit credential parsing entirely and build a synthetic identity
// from the headers and the path user id.
//
// A path {user_id} that disagrees with the authenticated identity is logged
// and rejected with 403.
func RequireAuth(verifier TokenVerifier, allowMigration bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowMigration && r.Header.Get("X-Migrate-Phone-Number-To-Email") != "" {
				identity := &auth.Identity{
					UserID:               chi.URLParam(r, "user_id"),
					Email:                r.Header.Get("X-Migrate-Phone-Number-Email"),
					DeviceUniqueID:       r.Header.Get("X-Migrate-Phone-Number-Device-Unique-Id"),
					Language:             r.Header.Get("X-Migrate-Phone-Number-Language"),
					PhoneNumberMigration: true,
					SendEmailMagicLink:   r.Header.Get("X-Send-Email-Magic-Link") != "",
				}
				next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), identity)))
				return
			}

			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			identity, err := verifier.Parse(r.Context(), raw)
			if err != nil {
				log.Printf("token verification failed: %v", err)
				respondUnauthorized(w, err.Error())
				return
			}

			if md := r.Header.Get("X-Account-Metadata"); md != "" {
				if err := verifier.Link(identity, md); err != nil {
					log.Printf("metadata linking failed for %s: %v", identity.UserID, err)
					respondUnauthorized(w, err.Error())
					return
				}
			}

			// Admins decide on other users' accounts; only non-admin
			// identities must match the path.
			if pathID := chi.URLParam(r, "user_id"); pathID != "" && pathID != identity.UserID && identity.Role != "admin" {
				log.Printf("operation not allowed. uri>%s!=token>%s", pathID, identity.UserID)
				respondForbidden(w, "operation not allowed. uri>"+pathID+"!=token>"+identity.UserID)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), identity)))
		})
	}
}

// GetIdentity retrieves the authenticated identity from the context.
func GetIdentity(ctx context.Context) *auth.Identity {
	identity, ok := ctx.Value(identityContextKey).(*auth.Identity)
	if !ok {
		return nil
	}
	return identity
}

// SetIdentity adds an identity to the context. Exposed for handler tests.
func SetIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"message": message,
		"code":    "INVALID_TOKEN",
		"error":   "Unauthorized",
	})
}

func respondForbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]string{
		"message": message,
		"code":    "OPERATION_NOT_ALLOWED",
	})
}
