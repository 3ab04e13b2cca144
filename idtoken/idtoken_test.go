package idtoken

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestIsExpiredHonorsLeeway(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := NewInspector(time.Minute, func() time.Time { return now })

	fresh := signToken(t, Claims{
		Email:            "alice@example.com",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute))},
	})
	if in.IsExpired(fresh) {
		t.Fatalf("expected fresh token to be valid")
	}

	nearly := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(30 * time.Second))},
	})
	if !in.IsExpired(nearly) {
		t.Fatalf("expected token inside leeway to be expired")
	}

	past := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour))},
	})
	if !in.IsExpired(past) {
		t.Fatalf("expected past token to be expired")
	}
}

func TestEmailClaim(t *testing.T) {
	in := NewInspector(0, nil)
	tok := signToken(t, Claims{
		Email:            "bob@example.com",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	email, err := in.Email(tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if email != "bob@example.com" {
		t.Fatalf("expected bob@example.com, got %q", email)
	}
}

func TestMalformedTokens(t *testing.T) {
	in := NewInspector(0, nil)
	if !in.IsExpired("not-a-token") {
		t.Fatalf("expected malformed token to count as expired")
	}
	if _, err := in.Claims("not-a-token"); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}

	noExp := signToken(t, Claims{Email: "x@example.com"})
	if _, err := in.ExpiresAt(noExp); !errors.Is(err, ErrNoExpiry) {
		t.Fatalf("expected ErrNoExpiry, got %v", err)
	}
	if !in.IsExpired(noExp) {
		t.Fatalf("expected token without exp to count as expired")
	}
}
