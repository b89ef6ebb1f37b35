package authmw

import (
	"errors"
	"strings"
	"testing"
	"time"

	"kyri56xcaesar/taskhub/internal/authz"
)

var alice = authz.Claims{UID: "u1", Username: "alice", Email: "alice@example.com", Role: authz.RoleNormal}

func TestSignerRoundTrip(t *testing.T) {
	s, err := NewSigner("k1", map[string][]byte{"k1": []byte("secret-one")}, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	tok, exp, err := s.Issue(alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if d := time.Until(exp); d < 9*time.Minute || d > 10*time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}

	got, err := s.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != alice {
		t.Fatalf("claims mismatch: got %+v", got)
	}
	if TokenAlg(tok) != "HS256" {
		t.Fatalf("unexpected alg %q", TokenAlg(tok))
	}
}

func TestSignerRotation(t *testing.T) {
	old, _ := NewSigner("k1", map[string][]byte{"k1": []byte("secret-one")}, time.Minute)
	tok, _, err := old.Issue(alice)
	if err != nil {
		t.Fatal(err)
	}

	rotated, _ := NewSigner("k2", map[string][]byte{
		"k2": []byte("secret-two"),
		"k1": []byte("secret-one"),
	}, time.Minute)
	if _, err := rotated.Parse(tok); err != nil {
		t.Fatalf("token under a retired key still in the ring should verify: %v", err)
	}

	retired, _ := NewSigner("k2", map[string][]byte{"k2": []byte("secret-two")}, time.Minute)
	if _, err := retired.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken once the key is dropped, got %v", err)
	}
}

func TestSignerRejects(t *testing.T) {
	s, _ := NewSigner("k1", map[string][]byte{"k1": []byte("secret-one")}, time.Minute)
	tok, _, _ := s.Issue(alice)

	expired, _ := NewSigner("k1", map[string][]byte{"k1": []byte("secret-one")}, time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _, _ := expired.Issue(alice)

	noRole, _, _ := s.Issue(authz.Claims{UID: "u1"})

	parts := strings.Split(tok, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"tampered signature", tampered},
		{"expired", stale},
		{"missing role", noRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Parse(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewSignerNeedsActiveKey(t *testing.T) {
	if _, err := NewSigner("k9", map[string][]byte{"k1": []byte("x")}, time.Minute); err == nil {
		t.Fatalf("expected error when the active kid has no secret")
	}
}
