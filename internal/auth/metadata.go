package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kozaktomas/face-review/internal/config"
)

// Metadata credential claim keys.
const (
	claimRegisteredWith = "registeredWithProvider"
	claimICEID          = "iceId"
	claimFirebaseID     = "firebaseId"
)

// Link applies a signed metadata credential to a verified identity,
// rewriting the user id to the canonical account when the metadata says the
// account is registered with another provider. An empty credential is a
// no-op. Link must run before any check that compares a path-embedded user
// id against the identity, otherwise a legitimately linked caller would be
// rejected. Applying the same credential twice is idempotent.
func (v *Verifier) Link(identity *Identity, mdToken string) error {
	if mdToken == "" {
		return nil
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(mdToken, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	issuer, _ := claims["iss"].(string)
	if issuer != config.IssuerMetadata {
		return fmt.Errorf("%w: %s must be %s", ErrInvalidIssuer, issuer, config.IssuerMetadata)
	}

	sub, _ := claims["sub"].(string)
	firebaseID, _ := claims[claimFirebaseID].(string)
	iceID, _ := claims[claimICEID].(string)

	userID := identity.UserID
	subMatch := sub != "" && userID == sub
	fbMatch := firebaseID != "" && userID == firebaseID
	iceMatch := iceID != "" && userID == iceID
	if userID != "" && !subMatch && !fbMatch && !iceMatch {
		return fmt.Errorf("%w: token %s does not own metadata", ErrInvalidToken, userID)
	}

	var linkedID string
	switch registeredWith, _ := claims[claimRegisteredWith].(string); registeredWith {
	case ProviderFirebase:
		linkedID = firebaseID
	case ProviderICE:
		linkedID = iceID
	}
	if linkedID != "" {
		identity.UserID = linkedID
		identity.Metadata = mdToken
	}

	return nil
}
