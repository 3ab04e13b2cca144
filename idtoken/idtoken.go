// Package idtoken inspects social ID tokens without verifying them. The
// issuer's signature is checked by the secret facade; onboarding flows only
// need the expiry and the email claim to pick a reconstruction path.
package idtoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformedToken = errors.New("malformed id token")
	ErrNoExpiry       = errors.New("id token has no exp claim")
)

// Claims is the subset of ID-token claims onboarding reads.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Inspector reads ID-token claims. The zero value is not usable; build with
// NewInspector.
type Inspector struct {
	parser *jwt.Parser
	leeway time.Duration
	now    func() time.Time
}

// NewInspector returns an inspector that treats a token as expired once
// now is past exp minus leeway. A nil clock means time.Now.
func NewInspector(leeway time.Duration, now func() time.Time) *Inspector {
	if now == nil {
		now = time.Now
	}
	return &Inspector{
		parser: jwt.NewParser(jwt.WithoutClaimsValidation()),
		leeway: leeway,
		now:    now,
	}
}

// Claims decodes token claims without signature verification.
func (i *Inspector) Claims(token string) (Claims, error) {
	var claims Claims
	if _, _, err := i.parser.ParseUnverified(token, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}

// ExpiresAt returns the exp claim.
func (i *Inspector) ExpiresAt(token string) (time.Time, error) {
	claims, err := i.Claims(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether token is past its expiry. Tokens that cannot be
// decoded or carry no exp claim count as expired.
func (i *Inspector) IsExpired(token string) bool {
	exp, err := i.ExpiresAt(token)
	if err != nil {
		return true
	}
	return !i.now().Before(exp.Add(-i.leeway))
}

// Email returns the email claim, empty when absent.
func (i *Inspector) Email(token string) (string, error) {
	claims, err := i.Claims(token)
	if err != nil {
		return "", err
	}
	return claims.Email, nil
}
