package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-review/internal/auth"
	"github.com/kozaktomas/face-review/internal/web/middleware"
	"github.com/kozaktomas/face-review/internal/webhook"
)

type fakeMigrator struct {
	session string
	err     error

	gotIdentity *auth.Identity
}

func (f *fakeMigrator) MigratePhoneLogin(ctx context.Context, identity *auth.Identity) (string, error) {
	f.gotIdentity = identity
	return f.session, f.err
}

func migrationIdentity() *auth.Identity {
	return &auth.Identity{
		UserID:               "u1",
		Email:                "user@example.com",
		DeviceUniqueID:       "device-7",
		Language:             "en",
		PhoneNumberMigration: true,
	}
}

func doMigrateLogin(t *testing.T, migrator Migrator, identity *auth.Identity) *httptest.ResponseRecorder {
	t.Helper()

	handler := NewMigrateHandler(migrator)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/migrate-login", nil)
	req = req.WithContext(middleware.SetIdentity(req.Context(), identity))
	recorder := httptest.NewRecorder()
	handler.Login(recorder, req)
	return recorder
}

func TestMigrateLogin_Success(t *testing.T) {
	migrator := &fakeMigrator{session: "session-token"}

	recorder := doMigrateLogin(t, migrator, migrationIdentity())

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["loginSession"] != "session-token" {
		t.Errorf("expected loginSession session-token, got %q", resp["loginSession"])
	}
	if migrator.gotIdentity == nil || migrator.gotIdentity.Email != "user@example.com" {
		t.Errorf("expected the identity forwarded, got %+v", migrator.gotIdentity)
	}
}

func TestMigrateLogin_RequiresMigrationIdentity(t *testing.T) {
	identity := migrationIdentity()
	identity.PhoneNumberMigration = false

	recorder := doMigrateLogin(t, &fakeMigrator{}, identity)

	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without migration headers, got %d", recorder.Code)
	}
}

func TestMigrateLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"bad request", webhook.ErrBadRequest, http.StatusBadRequest},
		{"conflict", webhook.ErrConflict, http.StatusConflict},
		{"rate limited", webhook.ErrRateLimited, http.StatusTooManyRequests},
		{"unclassified", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := doMigrateLogin(t, &fakeMigrator{err: tc.err}, migrationIdentity())

			if recorder.Code != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, recorder.Code)
			}
		})
	}
}
