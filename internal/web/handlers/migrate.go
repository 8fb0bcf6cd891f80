package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/kozaktomas/face-review/internal/auth"
	"github.com/kozaktomas/face-review/internal/web/middleware"
	"github.com/kozaktomas/face-review/internal/webhook"
)

// Migrator starts an email login session for a phone-number account.
type Migrator interface {
	MigratePhoneLogin(ctx context.Context, identity *auth.Identity) (string, error)
}

// MigrateHandler serves the phone-number-to-email migration endpoint.
type MigrateHandler struct {
	migrator Migrator
}

func NewMigrateHandler(migrator Migrator) *MigrateHandler {
	return &MigrateHandler{migrator: migrator}
}

// Login requests a login session for the migrating account. The identity
// comes from the migration headers via the auth middleware.
func (h *MigrateHandler) Login(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil || !identity.PhoneNumberMigration {
		respondForbidden(w, "phone number migration headers required")
		return
	}

	session, err := h.migrator.MigratePhoneLogin(r.Context(), identity)
	if err != nil {
		log.Printf("migrate login for %s failed: %v", sanitizeForLog(identity.UserID), err)

		switch {
		case errors.Is(err, webhook.ErrBadRequest):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, webhook.ErrConflict):
			respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, webhook.ErrRateLimited):
			respondError(w, http.StatusTooManyRequests, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to start login session")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"loginSession": session,
	})
}
