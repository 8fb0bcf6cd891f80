package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kozaktomas/face-review/internal/config"
)

var (
	// ErrInvalidToken covers every credential failure: missing, malformed,
	// bad signature, expired, or issued by an unknown authority.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidIssuer is returned when a metadata credential was minted by
	// anything other than the metadata issuer.
	ErrInvalidIssuer = errors.New("invalid issuer")
)

// Verifier resolves identities from bearer credentials. Internal tokens are
// verified locally with the shared secret, everything else is delegated to
// the external identity provider.
type Verifier struct {
	secret []byte

	providerOnce sync.Once
	provider     ProviderClient
	newProvider  func() ProviderClient
}

func NewVerifier(cfg *config.Config) *Verifier {
	return &Verifier{
		secret: []byte(cfg.JWT.Secret),
		newProvider: func() ProviderClient {
			return newHTTPProvider(cfg.Provider.VerifyURL, cfg.Provider.Audience)
		},
	}
}

// NewVerifierWithProvider builds a verifier with an injected provider client.
func NewVerifierWithProvider(secret string, pc ProviderClient) *Verifier {
	return &Verifier{
		secret:      []byte(secret),
		newProvider: func() ProviderClient { return pc },
	}
}

// providerClient lazily constructs the external provider client. The client
// is process wide and must be built at most once.
func (v *Verifier) providerClient() ProviderClient {
	v.providerOnce.Do(func() {
		v.provider = v.newProvider()
	})
	return v.provider
}

// Parse verifies a raw bearer credential and returns the resolved identity.
// The issuer claim is read without signature verification first, only to
// decide which trust root applies; the token is then fully verified against
// that root. Any failure surfaces as ErrInvalidToken with the cause attached.
func (v *Verifier) Parse(ctx context.Context, raw string) (*Identity, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: authorization token not presented", ErrInvalidToken)
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	issuer, err := unverified.Claims.GetIssuer()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	if issuer == config.IssuerAccess {
		return v.parseInternal(raw)
	}
	return v.parseProvider(ctx, raw)
}

// parseInternal verifies a token minted by the internal issuer. The
// algorithm is pinned to HS256, anything else fails verification.
func (v *Verifier) parseInternal(raw string) (*Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return &Identity{
		UserID:   sub,
		Email:    email,
		Role:     role,
		RawToken: raw,
		provider: ProviderICE,
	}, nil
}

// parseProvider delegates verification to the external provider, which
// validates the signature against its own keys.
func (v *Verifier) parseProvider(ctx context.Context, raw string) (*Identity, error) {
	data, err := v.providerClient().VerifyIDToken(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	return &Identity{
		UserID:   data.UID,
		Email:    data.Email,
		Role:     data.Role,
		RawToken: raw,
		provider: ProviderFirebase,
	}, nil
}
