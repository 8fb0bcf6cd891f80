package auth

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kozaktomas/face-review/internal/config"
)

func metadataToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["iss"]; !ok {
		claims["iss"] = config.IssuerMetadata
	}
	return signToken(t, secret, claims)
}

func TestLink_EmptyMetadataPassesThrough(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})
	identity := &Identity{UserID: "u1"}

	if err := v.Link(identity, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if identity.UserID != "u1" {
		t.Errorf("expected user id unchanged, got %q", identity.UserID)
	}
	if identity.Metadata != "" {
		t.Error("expected no metadata to be retained")
	}
}

func TestLink_RewritesToFirebaseID(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})
	identity := &Identity{UserID: "ice-1"}

	md := metadataToken(t, testSecret, jwt.MapClaims{
		"sub":                  "ice-1",
		"iceId":                "ice-1",
		"firebaseId":           "fb-1",
		"registeredWithProvider": "firebase",
	})

	if err := v.Link(identity, md); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if identity.UserID != "fb-1" {
		t.Errorf("expected user id rewritten to fb-1, got %q", identity.UserID)
	}
	if identity.Metadata != md {
		t.Error("expected raw metadata credential retained for forwarding")
	}
}

func TestLink_RewritesToICEID(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})
	identity := &Identity{UserID: "fb-1"}

	md := metadataToken(t, testSecret, jwt.MapClaims{
		"sub":                  "fb-1",
		"iceId":                "ice-1",
		"firebaseId":           "fb-1",
		"registeredWithProvider": "ice",
	})

	if err := v.Link(identity, md); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if identity.UserID != "ice-1" {
		t.Errorf("expected user id rewritten to ice-1, got %q", identity.UserID)
	}
}

func TestLink_UnknownProviderLeavesIDUnchanged(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})
	identity := &Identity{UserID: "u1"}

	md := metadataToken(t, testSecret, jwt.MapClaims{
		"sub":                  "u1",
		"registeredWithProvider": "phone",
	})

	if err := v.Link(identity, md); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if identity.UserID != "u1" {
		t.Errorf("expected user id unchanged, got %q", identity.UserID)
	}
	if identity.Metadata != "" {
		t.Error("expected metadata not retained without a rewrite")
	}
}

func TestLink_WrongIssuerFails(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})
	identity := &Identity{UserID: "u1"}

	md := metadataToken(t, testSecret, jwt.MapClaims{
		"iss": config.IssuerAccess, // access issuer must not mint metadata
		"sub": "u1",
	})

	err := v.Link(identity, md)
	if !errors.Is(err, ErrInvalidIssuer) {
		t.Fatalf("expected ErrInvalidIssuer, got %v", err)
	}
}

func TestLink_WrongIssuerFailsEvenWithSubjectMatch(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})
	identity := &Identity{UserID: "u1"}

	md := metadataToken(t, testSecret, jwt.MapClaims{
		"iss":                  "other.example.com/metadata",
		"sub":                  "u1",
		"firebaseId":           "u1",
		"registeredWithProvider": "firebase",
	})

	if err := v.Link(identity, md); !errors.Is(err, ErrInvalidIssuer) {
		t.Fatalf("expected ErrInvalidIssuer regardless of subject match, got %v", err)
	}
}

func TestLink_OwnershipMismatchFails(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})
	identity := &Identity{UserID: "intruder"}

	md := metadataToken(t, testSecret, jwt.MapClaims{
		"sub":        "u1",
		"iceId":      "ice-1",
		"firebaseId": "fb-1",
	})

	err := v.Link(identity, md)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for ownership mismatch, got %v", err)
	}
}

func TestLink_EmptyIdentityIDSkipsOwnershipCheck(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})
	identity := &Identity{UserID: ""}

	md := metadataToken(t, testSecret, jwt.MapClaims{
		"sub":                  "u1",
		"firebaseId":           "fb-1",
		"registeredWithProvider": "firebase",
	})

	if err := v.Link(identity, md); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if identity.UserID != "fb-1" {
		t.Errorf("expected user id fb-1, got %q", identity.UserID)
	}
}

func TestLink_BadSignatureFails(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})
	identity := &Identity{UserID: "u1"}

	md := metadataToken(t, "wrong-secret", jwt.MapClaims{"sub": "u1"})

	if err := v.Link(identity, md); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestLink_Idempotent(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})
	identity := &Identity{UserID: "ice-1"}

	md := metadataToken(t, testSecret, jwt.MapClaims{
		"sub":                  "ice-1",
		"iceId":                "ice-1",
		"firebaseId":           "fb-1",
		"registeredWithProvider": "firebase",
	})

	if err := v.Link(identity, md); err != nil {
		t.Fatalf("first link failed: %v", err)
	}
	first := identity.UserID

	// Applying the same credential again resolves through firebaseId.
	if err := v.Link(identity, md); err != nil {
		t.Fatalf("second link failed: %v", err)
	}

	if identity.UserID != first {
		t.Errorf("expected linking to be idempotent, got %q then %q", first, identity.UserID)
	}
}
