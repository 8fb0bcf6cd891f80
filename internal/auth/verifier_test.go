package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kozaktomas/face-review/internal/config"
)

const testSecret = "test-secret"

// fakeProvider is a ProviderClient for tests.
type fakeProvider struct {
	token *ProviderToken
	err   error
	calls int
}

func (f *fakeProvider) VerifyIDToken(ctx context.Context, token string) (*ProviderToken, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

// signToken mints an HS256 token with the given claims.
func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func internalToken(t *testing.T, secret, sub, email, role string) string {
	t.Helper()
	return signToken(t, secret, jwt.MapClaims{
		"iss":   config.IssuerAccess,
		"sub":   sub,
		"email": email,
		"role":  role,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
}

func TestVerifier_Parse_InternalToken(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})

	raw := internalToken(t, testSecret, "u1", "a@x.com", "user")
	identity, err := v.Parse(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if identity.UserID != "u1" {
		t.Errorf("expected user id u1, got %q", identity.UserID)
	}
	if identity.Email != "a@x.com" {
		t.Errorf("expected email a@x.com, got %q", identity.Email)
	}
	if identity.Role != "user" {
		t.Errorf("expected role user, got %q", identity.Role)
	}
	if !identity.IsICE() {
		t.Errorf("expected provider ice, got %q", identity.Provider())
	}
	if identity.RawToken != raw {
		t.Error("expected raw token to be retained")
	}
}

func TestVerifier_Parse_EmptyToken(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})

	_, err := v.Parse(context.Background(), "")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifier_Parse_MalformedToken(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})

	_, err := v.Parse(context.Background(), "not-a-jwt")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifier_Parse_WrongSignature(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})

	raw := internalToken(t, "wrong-secret", "u1", "a@x.com", "user")
	_, err := v.Parse(context.Background(), raw)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifier_Parse_ExpiredToken(t *testing.T) {
	v := NewVerifierWithProvider(testSecret, &fakeProvider{})

	raw := signToken(t, testSecret, jwt.MapClaims{
		"iss": config.IssuerAccess,
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	_, err := v.Parse(context.Background(), raw)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifier_Parse_ExternalIssuer(t *testing.T) {
	fp := &fakeProvider{token: &ProviderToken{UID: "fb-1", Email: "b@x.com"}}
	v := NewVerifierWithProvider(testSecret, fp)

	// Signature is irrelevant here, the provider validates its own tokens.
	raw := signToken(t, "provider-key", jwt.MapClaims{
		"iss": "https://securetoken.example.com/project",
		"uid": "fb-1",
	})

	identity, err := v.Parse(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if identity.UserID != "fb-1" {
		t.Errorf("expected user id fb-1, got %q", identity.UserID)
	}
	if identity.Provider() != ProviderFirebase {
		t.Errorf("expected provider firebase, got %q", identity.Provider())
	}
	if fp.calls != 1 {
		t.Errorf("expected one provider call, got %d", fp.calls)
	}
}

func TestVerifier_Parse_ExternalIssuerRejected(t *testing.T) {
	fp := &fakeProvider{err: errors.New("no verifier for issuer")}
	v := NewVerifierWithProvider(testSecret, fp)

	raw := signToken(t, "provider-key", jwt.MapClaims{
		"iss": "third-party.example.com",
		"uid": "x",
	})

	_, err := v.Parse(context.Background(), raw)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifier_ProviderClientBuiltOnce(t *testing.T) {
	built := 0
	fp := &fakeProvider{token: &ProviderToken{UID: "fb-1"}}
	v := &Verifier{
		secret: []byte(testSecret),
		newProvider: func() ProviderClient {
			built++
			return fp
		},
	}

	raw := signToken(t, "provider-key", jwt.MapClaims{"iss": "ext", "uid": "fb-1"})
	for range 5 {
		if _, err := v.Parse(context.Background(), raw); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if built != 1 {
		t.Errorf("expected provider client to be built once, got %d", built)
	}
}
