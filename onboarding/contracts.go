package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// SocialProvider names a social sign-in provider.
type SocialProvider string

const (
	SocialProviderApple  SocialProvider = "apple"
	SocialProviderGoogle SocialProvider = "google"
)

// TokenID is a social ID token together with the provider that issued it.
type TokenID struct {
	Value    string         `json:"value"`
	Provider SocialProvider `json:"provider"`
}

// SocialAuthResult is the outcome of an interactive social sign-in.
type SocialAuthResult struct {
	Token string
	Email string
}

// SocialAuthService performs interactive social sign-in.
type SocialAuthService interface {
	Auth(ctx context.Context, provider SocialProvider) (SocialAuthResult, error)
	IsExpired(token string) bool
}

// SignUpResult is returned by SecretFacade.SignUp.
type SignUpResult struct {
	PrivateKey             string
	ReconstructedPublicKey string
	DeviceShare            string
	CustomShare            string
	Metadata               string
}

// SignInResult is returned by every SecretFacade sign-in shape.
type SignInResult struct {
	PrivateKey             string
	ReconstructedPublicKey string
}

// SecretFacade reconstructs a private key from distributed secret shares.
// Initialize is idempotent and must be called before any other method.
type SecretFacade interface {
	Initialize(ctx context.Context) error
	SignUp(ctx context.Context, token TokenID) (SignUpResult, error)
	SignInWithDeviceShare(ctx context.Context, token TokenID, deviceShare string) (SignInResult, error)
	SignInWithCustomShare(ctx context.Context, token TokenID, customShare string) (SignInResult, error)
	SignInWithTokenCustomShare(ctx context.Context, token TokenID, customShare, encryptedMnemonic string) (SignInResult, error)
	SignInWithDeviceCustomShare(ctx context.Context, deviceShare, customShare, encryptedMnemonic string) (SignInResult, error)
}

// FacadeCodeDeviceShareUnrecognized is reported when the device share does
// not belong to the reconstructed key.
const FacadeCodeDeviceShareUnrecognized = 1009

// FacadeError is the structured error reported by a SecretFacade.
type FacadeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *FacadeError) Error() string {
	return fmt.Sprintf("secret facade error %d: %s", e.Code, e.Message)
}

// ParseFacadeError decodes the JSON error body a facade backend reports, e.g.
// {"code":1009,"message":"..."} or {"error":{"code":1009,...}}.
func ParseFacadeError(raw string) (*FacadeError, bool) {
	if !gjson.Valid(raw) {
		return nil, false
	}
	root := gjson.Parse(raw)
	if nested := root.Get("error"); nested.IsObject() {
		root = nested
	}
	code := root.Get("code")
	if !code.Exists() || code.Type != gjson.Number {
		return nil, false
	}
	return &FacadeError{
		Code:    int(code.Int()),
		Message: root.Get("message").String(),
	}, true
}

func facadeErrorCode(err error) (int, bool) {
	var fe *FacadeError
	if errors.As(err, &fe) {
		return fe.Code, true
	}
	if err == nil {
		return 0, false
	}
	if fe, ok := ParseFacadeError(err.Error()); ok {
		return fe.Code, true
	}
	return 0, false
}

// Channel is the OTP delivery channel.
type Channel string

const (
	ChannelSMS  Channel = "sms"
	ChannelCall Channel = "call"
)

// RestorePayload is the escrow material released by a confirmed restore OTP.
type RestorePayload struct {
	EncryptedShare    string `json:"encrypted_share"`
	EncryptedMetadata string `json:"encrypted_metadata"`
	EncryptedPayload  string `json:"encrypted_payload"`
}

// Gateway is the phone-verification gateway.
type Gateway interface {
	RestoreWallet(ctx context.Context, requestKey []byte, phone string, channel Channel, at time.Time) error
	ConfirmRestoreWallet(ctx context.Context, requestKey []byte, phone, otp string, at time.Time) (RestorePayload, error)
}

// GatewayError carries the protocol error code of a failed gateway call.
type GatewayError struct {
	Code    int
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Code, e.Message)
}

// BiometryType is the biometric capability of the device.
type BiometryType string

const (
	BiometryNone    BiometryType = "none"
	BiometryTouchID BiometryType = "touch_id"
	BiometryFaceID  BiometryType = "face_id"
)

// SecurityStatus is a snapshot of the device security capabilities.
type SecurityStatus struct {
	Biometry BiometryType
}

type SecurityStatusProvider interface {
	Status(ctx context.Context) (SecurityStatus, error)
}

// RawICloudAccount is an account as stored in the keychain.
type RawICloudAccount struct {
	Name          string
	Phrase        string
	DerivablePath string
}

type ICloudAccountProvider interface {
	All(ctx context.Context) ([]RawICloudAccount, error)
}

// OnboardingWallet is the material a finished onboarding flow hands over.
type OnboardingWallet struct {
	SolPrivateKey string `json:"sol_private_key"`
	DeviceShare   string `json:"device_share"`
	Pincode       string `json:"pincode"`
	UseBiometric  bool   `json:"use_biometric"`
}
