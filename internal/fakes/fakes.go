// Package fakes provides scripted in-memory collaborators for onboarding
// flows. They back the engine tests and the CLI simulator.
package fakes

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/walletflow/idtoken"
	"github.com/MrEthical07/walletflow/metadata"
	"github.com/MrEthical07/walletflow/onboarding"
)

var tokenKey = []byte("walletflow-fake-issuer")

// IssueToken mints an HS256 ID token carrying email and exp.
func IssueToken(email string, exp time.Time) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, idtoken.Claims{
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	}).SignedString(tokenKey)
	if err != nil {
		panic(err)
	}
	return tok
}

// Clock is a settable clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Auth answers every provider with a token minted for Email. IsExpired reads
// the token's exp claim against the inspector clock.
type Auth struct {
	Email     string
	TTL       time.Duration
	Err       error
	Inspector *idtoken.Inspector
	Now       func() time.Time

	mu    sync.Mutex
	calls int
}

func (a *Auth) Auth(_ context.Context, _ onboarding.SocialProvider) (onboarding.SocialAuthResult, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.Err != nil {
		return onboarding.SocialAuthResult{}, a.Err
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	ttl := a.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return onboarding.SocialAuthResult{
		Token: IssueToken(a.Email, now().Add(ttl)),
		Email: a.Email,
	}, nil
}

func (a *Auth) IsExpired(token string) bool {
	in := a.Inspector
	if in == nil {
		in = idtoken.NewInspector(0, a.Now)
	}
	return in.IsExpired(token)
}

func (a *Auth) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Facade returns scripted results. A nil error field means the call succeeds.
type Facade struct {
	InitErr         error
	SignUpResult    onboarding.SignUpResult
	SignUpErr       error
	SignInResult    onboarding.SignInResult
	DeviceShareErr  error
	CustomShareErr  error
	TokenCustomErr  error
	DeviceCustomErr error

	mu    sync.Mutex
	calls []string
}

func (f *Facade) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

// Calls returns the method names invoked so far, in order.
func (f *Facade) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *Facade) Initialize(context.Context) error {
	f.record("Initialize")
	return f.InitErr
}

func (f *Facade) SignUp(context.Context, onboarding.TokenID) (onboarding.SignUpResult, error) {
	f.record("SignUp")
	if f.SignUpErr != nil {
		return onboarding.SignUpResult{}, f.SignUpErr
	}
	return f.SignUpResult, nil
}

func (f *Facade) SignInWithDeviceShare(context.Context, onboarding.TokenID, string) (onboarding.SignInResult, error) {
	f.record("SignInWithDeviceShare")
	return f.signIn(f.DeviceShareErr)
}

func (f *Facade) SignInWithCustomShare(context.Context, onboarding.TokenID, string) (onboarding.SignInResult, error) {
	f.record("SignInWithCustomShare")
	return f.signIn(f.CustomShareErr)
}

func (f *Facade) SignInWithTokenCustomShare(context.Context, onboarding.TokenID, string, string) (onboarding.SignInResult, error) {
	f.record("SignInWithTokenCustomShare")
	return f.signIn(f.TokenCustomErr)
}

func (f *Facade) SignInWithDeviceCustomShare(context.Context, string, string, string) (onboarding.SignInResult, error) {
	f.record("SignInWithDeviceCustomShare")
	return f.signIn(f.DeviceCustomErr)
}

func (f *Facade) signIn(err error) (onboarding.SignInResult, error) {
	if err != nil {
		return onboarding.SignInResult{}, err
	}
	return f.SignInResult, nil
}

// Gateway is a scripted phone-verification gateway.
type Gateway struct {
	SendErr    error
	ConfirmErr error
	Payload    onboarding.RestorePayload

	mu       sync.Mutex
	sends    int
	confirms int
	lastKey  []byte
}

func (g *Gateway) RestoreWallet(_ context.Context, key []byte, _ string, _ onboarding.Channel, _ time.Time) error {
	g.mu.Lock()
	g.sends++
	g.lastKey = append([]byte(nil), key...)
	g.mu.Unlock()
	return g.SendErr
}

func (g *Gateway) ConfirmRestoreWallet(_ context.Context, key []byte, _, _ string, _ time.Time) (onboarding.RestorePayload, error) {
	g.mu.Lock()
	g.confirms++
	g.lastKey = append([]byte(nil), key...)
	g.mu.Unlock()
	if g.ConfirmErr != nil {
		return onboarding.RestorePayload{}, g.ConfirmErr
	}
	return g.Payload, nil
}

func (g *Gateway) Sends() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sends
}

func (g *Gateway) Confirms() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.confirms
}

// LastKey returns the request key of the most recent call.
func (g *Gateway) LastKey() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]byte(nil), g.lastKey...)
}

type SecurityStatus struct {
	Biometry onboarding.BiometryType
	Err      error
}

func (s SecurityStatus) Status(context.Context) (onboarding.SecurityStatus, error) {
	if s.Err != nil {
		return onboarding.SecurityStatus{}, s.Err
	}
	return onboarding.SecurityStatus{Biometry: s.Biometry}, nil
}

type ICloudAccounts struct {
	Accounts []onboarding.RawICloudAccount
	Err      error
}

func (a ICloudAccounts) All(context.Context) ([]onboarding.RawICloudAccount, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	return append([]onboarding.RawICloudAccount(nil), a.Accounts...), nil
}

// EscrowPayload builds a gateway payload whose metadata opens with seed.
func EscrowPayload(seed string, w metadata.Wallet) onboarding.RestorePayload {
	env, err := metadata.Encrypt(seed, w, rand.Reader)
	if err != nil {
		panic(err)
	}
	return onboarding.RestorePayload{
		EncryptedShare:    "custom-share",
		EncryptedMetadata: env,
		EncryptedPayload:  "encrypted-mnemonic",
	}
}
