package authmw

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"kyri56xcaesar/taskhub/internal/authz"
)

// ErrInvalidToken covers every reason a bearer token is rejected once it
// has been presented: bad signature, unknown key id, expiry, bad claims.
var ErrInvalidToken = errors.New("invalid token")

type tokenClaims struct {
	authz.Claims
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 tokens. Tokens are always signed with
// the active key; verification accepts any key still in the ring, selected
// by the kid header.
type Signer struct {
	activeKID string
	keys      map[string][]byte
	ttl       time.Duration
	now       func() time.Time
}

func NewSigner(activeKID string, keys map[string][]byte, ttl time.Duration) (*Signer, error) {
	if len(keys[activeKID]) == 0 {
		return nil, fmt.Errorf("no secret for active key id %q", activeKID)
	}
	ring := make(map[string][]byte, len(keys))
	for kid, secret := range keys {
		ring[kid] = append([]byte(nil), secret...)
	}
	return &Signer{activeKID: activeKID, keys: ring, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for c and its expiry.
func (s *Signer) Issue(c authz.Claims) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Claims: c,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	tok.Header["kid"] = s.activeKID

	signed, err := tok.SignedString(s.keys[s.activeKID])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies token and returns its claims. Any failure is reported as
// ErrInvalidToken wrapping the cause.
func (s *Signer) Parse(token string) (authz.Claims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, s.keyFor,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return authz.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UID == "" || !claims.Role.Valid() {
		return authz.Claims{}, fmt.Errorf("%w: incomplete claims", ErrInvalidToken)
	}
	return claims.Claims, nil
}

func (s *Signer) keyFor(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	secret, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return secret, nil
}

// TokenAlg reads the alg header of token without verifying it.
func TokenAlg(token string) string {
	t, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	return t.Method.Alg()
}
