package authmw

import (
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Federated verifies RS256 access tokens minted by a Keycloak realm against
// the realm's published JWKS.
type Federated struct {
	Issuer   string
	Audience string

	keyfunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
	// allowed clock skew
	Leeway time.Duration
}

type KCClaims struct {
	jwt.RegisteredClaims

	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
}

// NewFederated fetches the JWKS once and keeps it refreshed in the
// background. Build it at startup, not per request.
func NewFederated(jwksURL, issuer, audience string) (*Federated, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:  time.Hour,
		RefreshRateLimit: time.Minute * 5,
		RefreshTimeout:   time.Second * 10,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}

	return NewFederatedWithJWKS(jwks, issuer, audience), nil
}

// NewFederatedWithJWKS wraps an already built key set.
func NewFederatedWithJWKS(jwks *keyfunc.JWKS, issuer, audience string) *Federated {
	return &Federated{
		Issuer:   issuer,
		Audience: audience,
		keyfunc:  jwks.Keyfunc,
		jwks:     jwks,
		Leeway:   30 * time.Second,
	}
}

// Verify checks signature, issuer, audience and expiry of token.
func (f *Federated) Verify(token string) (*KCClaims, error) {
	claims := &KCClaims{}
	opts := []jwt.ParserOption{
		jwt.WithIssuer(f.Issuer),
		jwt.WithLeeway(f.Leeway),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	}
	if f.Audience != "" {
		opts = append(opts, jwt.WithAudience(f.Audience))
	}

	if _, err := jwt.ParseWithClaims(token, claims, f.keyfunc, opts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.PreferredUsername == "" {
		return nil, fmt.Errorf("%w: missing preferred_username", ErrInvalidToken)
	}
	return claims, nil
}

// Close stops the background JWKS refresh.
func (f *Federated) Close() {
	if f.jwks != nil {
		f.jwks.EndBackground()
	}
}
