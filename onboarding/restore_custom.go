package onboarding

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/walletflow/machine"
	"github.com/MrEthical07/walletflow/metadata"
)

// DefaultBlockDuration is used when RestoreCustomProvider.BlockDuration is zero.
const DefaultBlockDuration = 10 * time.Minute

// maxResendAttempt is the attempt value at which a further resend blocks
// instead of sending.
const maxResendAttempt = 4

// Gateway codes interpreted by the restore funnel. Every other code is
// returned to the caller unchanged.
const (
	codeParseError         = -32700
	codeInvalidRequest     = -32600
	codeMethodNotFound     = -32601
	codeInvalidParams      = -32602
	codeInternalError      = -32603
	codeRequestRejected    = -32052
	codeTooManyAttempts    = -32053
	codeNotDeliverable     = -32054
	codeServiceUnavailable = -32058
	codeAnotherNumber      = -32060
)

// BlockReason records which step tripped a restore block.
type BlockReason string

const (
	BlockEnterPhoneNumber BlockReason = "enter_phone_number"
	BlockEnterOTP         BlockReason = "enter_otp"
)

// RestoreSocialData is a social identity obtained earlier in the restore flow.
type RestoreSocialData struct {
	Email   string  `json:"email"`
	TokenID TokenID `json:"token_id"`
}

// RestoreCustomProvider bundles the collaborators of phone-based restore.
// DeviceShare is nil when this device holds no share. Now, BlockDuration and
// NewRequestKey fall back to time.Now, DefaultBlockDuration and a fresh
// ed25519 key.
type RestoreCustomProvider struct {
	Facade        SecretFacade
	Gateway       Gateway
	Auth          SocialAuthService
	DeviceShare   *string
	BlockDuration time.Duration
	Now           func() time.Time
	NewRequestKey func() ([]byte, error)
}

func (p RestoreCustomProvider) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p RestoreCustomProvider) blockUntil() time.Time {
	d := p.BlockDuration
	if d <= 0 {
		d = DefaultBlockDuration
	}
	return p.now().Add(d).UTC().Round(0)
}

func (p RestoreCustomProvider) requestKey() ([]byte, error) {
	if p.NewRequestKey != nil {
		return p.NewRequestKey()
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return priv, nil
}

// RestoreCustomResult is one of RestoreCustomSuccessful,
// RestoreCustomRequireSocialCustom, RestoreCustomRequireSocialDevice,
// RestoreCustomExpiredSocial, RestoreCustomStart or RestoreCustomBreakProcess.
type RestoreCustomResult interface {
	isRestoreCustomResult()
}

type RestoreCustomSuccessful struct {
	SeedPhrase   string           `json:"seed_phrase"`
	EthPublicKey string           `json:"eth_public_key"`
	Metadata     *metadata.Wallet `json:"metadata"`
}

// RestoreCustomRequireSocialCustom asks the parent to combine the custom
// share with a social share.
type RestoreCustomRequireSocialCustom struct {
	Result RestorePayload `json:"result"`
}

// RestoreCustomRequireSocialDevice asks the parent to combine the device
// share with a social share.
type RestoreCustomRequireSocialDevice struct {
	Provider SocialProvider `json:"provider"`
}

type RestoreCustomExpiredSocial struct {
	Result   RestorePayload `json:"result"`
	Provider SocialProvider `json:"provider"`
	Email    string         `json:"email"`
}

type RestoreCustomStart struct{}

type RestoreCustomBreakProcess struct{}

func (RestoreCustomSuccessful) isRestoreCustomResult()          {}
func (RestoreCustomRequireSocialCustom) isRestoreCustomResult() {}
func (RestoreCustomRequireSocialDevice) isRestoreCustomResult() {}
func (RestoreCustomExpiredSocial) isRestoreCustomResult()       {}
func (RestoreCustomStart) isRestoreCustomResult()               {}
func (RestoreCustomBreakProcess) isRestoreCustomResult()        {}

// RestoreCustomState is a state of the phone restore funnel.
type RestoreCustomState interface {
	machine.Stepper
	machine.Continuable
	isRestoreCustomState()
}

// RestoreCustomEnterPhone waits for a phone number. DidSend and RequestKey
// are set after a back from OTP entry so the same number skips the resend.
type RestoreCustomEnterPhone struct {
	InitialPhone *string            `json:"initial_phone"`
	DidSend      bool               `json:"did_send"`
	RequestKey   []byte             `json:"request_key"`
	Social       *RestoreSocialData `json:"social"`
}

// RestoreCustomEnterOTP waits for the code. Attempt counts resends.
type RestoreCustomEnterOTP struct {
	Phone      string             `json:"phone"`
	RequestKey []byte             `json:"request_key"`
	Social     *RestoreSocialData `json:"social"`
	Attempt    int                `json:"attempt"`
}

type RestoreCustomOTPNotDeliveredTrySocial struct {
	Phone string `json:"phone"`
	Code  int    `json:"code"`
}

type RestoreCustomOTPNotDelivered struct {
	Phone string `json:"phone"`
	Code  int    `json:"code"`
}

type RestoreCustomNoMatch struct{}

type RestoreCustomNotFoundDevice struct{}

type RestoreCustomBroken struct {
	Code int `json:"code"`
}

type RestoreCustomTryAnother struct {
	WrongNumber string `json:"wrong_number"`
	TrySocial   bool   `json:"try_social"`
}

type RestoreCustomBlock struct {
	Until  time.Time          `json:"until"`
	Social *RestoreSocialData `json:"social"`
	Reason BlockReason        `json:"reason"`
}

type RestoreCustomExpiredSocialTryAgain struct {
	Result RestorePayload    `json:"result"`
	Social RestoreSocialData `json:"social"`
}

type RestoreCustomFinish struct {
	Result RestoreCustomResult
}

func (RestoreCustomEnterPhone) isRestoreCustomState()               {}
func (RestoreCustomEnterOTP) isRestoreCustomState()                 {}
func (RestoreCustomOTPNotDeliveredTrySocial) isRestoreCustomState() {}
func (RestoreCustomOTPNotDelivered) isRestoreCustomState()          {}
func (RestoreCustomNoMatch) isRestoreCustomState()                  {}
func (RestoreCustomNotFoundDevice) isRestoreCustomState()           {}
func (RestoreCustomBroken) isRestoreCustomState()                   {}
func (RestoreCustomTryAnother) isRestoreCustomState()               {}
func (RestoreCustomBlock) isRestoreCustomState()                    {}
func (RestoreCustomExpiredSocialTryAgain) isRestoreCustomState()    {}
func (RestoreCustomFinish) isRestoreCustomState()                   {}

func (RestoreCustomEnterPhone) Step() float64               { return 1 }
func (RestoreCustomEnterOTP) Step() float64                 { return 2 }
func (RestoreCustomOTPNotDeliveredTrySocial) Step() float64 { return 3 }
func (RestoreCustomOTPNotDelivered) Step() float64          { return 4 }
func (RestoreCustomNoMatch) Step() float64                  { return 5 }
func (RestoreCustomNotFoundDevice) Step() float64           { return 6 }
func (RestoreCustomBroken) Step() float64                   { return 7 }
func (RestoreCustomTryAnother) Step() float64               { return 8 }
func (RestoreCustomBlock) Step() float64                    { return 9 }
func (RestoreCustomExpiredSocialTryAgain) Step() float64    { return 10 }
func (RestoreCustomFinish) Step() float64                   { return 11 }

func (RestoreCustomEnterPhone) Continuable() bool               { return true }
func (RestoreCustomEnterOTP) Continuable() bool                 { return true }
func (RestoreCustomOTPNotDeliveredTrySocial) Continuable() bool { return true }
func (RestoreCustomOTPNotDelivered) Continuable() bool          { return true }
func (RestoreCustomNoMatch) Continuable() bool                  { return true }
func (RestoreCustomNotFoundDevice) Continuable() bool           { return true }
func (RestoreCustomBroken) Continuable() bool                   { return true }
func (RestoreCustomTryAnother) Continuable() bool               { return true }
func (RestoreCustomBlock) Continuable() bool                    { return true }
func (RestoreCustomExpiredSocialTryAgain) Continuable() bool    { return true }
func (RestoreCustomFinish) Continuable() bool                   { return true }

// RestoreCustomEvent is an input of the phone restore funnel.
type RestoreCustomEvent interface {
	isRestoreCustomEvent()
}

// RestoreCustomOpenPhone returns to a fresh phone entry.
type RestoreCustomOpenPhone struct{}

type RestoreCustomSubmitPhone struct {
	Phone string
}

type RestoreCustomSubmitOTP struct {
	OTP string
}

type RestoreCustomResendOTP struct{}

type RestoreCustomRequireSocial struct {
	Provider SocialProvider
}

// RestoreCustomRestart asks the parent to restart restoration.
type RestoreCustomRestart struct{}

type RestoreCustomBack struct{}

func (RestoreCustomOpenPhone) isRestoreCustomEvent()     {}
func (RestoreCustomSubmitPhone) isRestoreCustomEvent()   {}
func (RestoreCustomSubmitOTP) isRestoreCustomEvent()     {}
func (RestoreCustomResendOTP) isRestoreCustomEvent()     {}
func (RestoreCustomRequireSocial) isRestoreCustomEvent() {}
func (RestoreCustomRestart) isRestoreCustomEvent()       {}
func (RestoreCustomBack) isRestoreCustomEvent()          {}

var RestoreCustomFlow = machine.Definition[RestoreCustomState, RestoreCustomEvent, RestoreCustomProvider]{
	Name: "restore_custom",
	Initial: func(context.Context, RestoreCustomProvider) (RestoreCustomState, error) {
		return RestoreCustomEnterPhone{}, nil
	},
	Accept: AcceptRestoreCustom,
}

func finishRestoreCustom(r RestoreCustomResult) RestoreCustomFinish {
	return RestoreCustomFinish{Result: r}
}

// AcceptRestoreCustom is the phone restore transition function.
func AcceptRestoreCustom(ctx context.Context, current RestoreCustomState, event RestoreCustomEvent, p RestoreCustomProvider) (RestoreCustomState, error) {
	switch s := current.(type) {
	case RestoreCustomEnterPhone:
		switch e := event.(type) {
		case RestoreCustomSubmitPhone:
			if s.DidSend && s.InitialPhone != nil && *s.InitialPhone == e.Phone && len(s.RequestKey) > 0 {
				return RestoreCustomEnterOTP{Phone: e.Phone, RequestKey: s.RequestKey, Social: s.Social}, nil
			}
			key, err := p.requestKey()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrNoRequestKey, err)
			}
			return sendOTP(ctx, e.Phone, key, s.Social, 0, p)
		case RestoreCustomBack:
			return finishRestoreCustom(RestoreCustomBreakProcess{}), nil
		}

	case RestoreCustomEnterOTP:
		switch e := event.(type) {
		case RestoreCustomSubmitOTP:
			return confirmOTP(ctx, s, e.OTP, p)
		case RestoreCustomResendOTP:
			if s.Attempt >= maxResendAttempt {
				return RestoreCustomBlock{Until: p.blockUntil(), Social: s.Social, Reason: BlockEnterOTP}, nil
			}
			return sendOTP(ctx, s.Phone, s.RequestKey, s.Social, s.Attempt+1, p)
		case RestoreCustomBack:
			phone := s.Phone
			return RestoreCustomEnterPhone{InitialPhone: &phone, DidSend: true, RequestKey: s.RequestKey, Social: s.Social}, nil
		}

	case RestoreCustomOTPNotDeliveredTrySocial:
		switch e := event.(type) {
		case RestoreCustomBack:
			return RestoreCustomEnterPhone{}, nil
		case RestoreCustomRequireSocial:
			return finishRestoreCustom(RestoreCustomRequireSocialDevice{Provider: e.Provider}), nil
		case RestoreCustomRestart:
			return finishRestoreCustom(RestoreCustomStart{}), nil
		}

	case RestoreCustomOTPNotDelivered, RestoreCustomBroken, RestoreCustomNoMatch:
		switch event.(type) {
		case RestoreCustomBack, RestoreCustomRestart:
			return finishRestoreCustom(RestoreCustomStart{}), nil
		}

	case RestoreCustomTryAnother:
		switch e := event.(type) {
		case RestoreCustomOpenPhone:
			return RestoreCustomEnterPhone{}, nil
		case RestoreCustomRequireSocial:
			if s.TrySocial {
				return finishRestoreCustom(RestoreCustomRequireSocialDevice{Provider: e.Provider}), nil
			}
		case RestoreCustomRestart:
			return finishRestoreCustom(RestoreCustomStart{}), nil
		}

	case RestoreCustomBlock:
		switch event.(type) {
		case RestoreCustomRestart:
			return finishRestoreCustom(RestoreCustomStart{}), nil
		case RestoreCustomOpenPhone:
			if p.now().After(s.Until) {
				return RestoreCustomEnterPhone{}, nil
			}
			return nil, fmt.Errorf("%w: blocked until %s", machine.ErrInvalidEvent, s.Until.Format(time.RFC3339))
		}

	case RestoreCustomExpiredSocialTryAgain:
		switch e := event.(type) {
		case RestoreCustomRequireSocial:
			return finishRestoreCustom(RestoreCustomExpiredSocial{
				Result:   s.Result,
				Provider: e.Provider,
				Email:    s.Social.Email,
			}), nil
		case RestoreCustomRestart:
			return finishRestoreCustom(RestoreCustomStart{}), nil
		}

	case RestoreCustomNotFoundDevice:
		switch e := event.(type) {
		case RestoreCustomOpenPhone:
			return RestoreCustomEnterPhone{}, nil
		case RestoreCustomRequireSocial:
			return finishRestoreCustom(RestoreCustomRequireSocialDevice{Provider: e.Provider}), nil
		case RestoreCustomRestart:
			return finishRestoreCustom(RestoreCustomStart{}), nil
		}

	case RestoreCustomFinish:
	}
	return nil, machine.Invalid(current, event)
}

func sendOTP(ctx context.Context, phone string, key []byte, social *RestoreSocialData, attempt int, p RestoreCustomProvider) (RestoreCustomState, error) {
	err := p.Gateway.RestoreWallet(ctx, key, phone, ChannelSMS, p.now())
	if err == nil {
		return RestoreCustomEnterOTP{Phone: phone, RequestKey: key, Social: social, Attempt: attempt}, nil
	}

	code, ok := gatewayErrorCode(err)
	if !ok {
		return nil, err
	}
	next, handled := sendOTPFailure(code, phone, social, p.DeviceShare != nil, p.blockUntil())
	if !handled {
		return nil, err
	}
	return next, nil
}

// sendOTPFailure maps a gateway code from a send-OTP call to the next state.
// handled is false for codes the caller must see.
func sendOTPFailure(code int, phone string, social *RestoreSocialData, hasDeviceShare bool, until time.Time) (next RestoreCustomState, handled bool) {
	switch code {
	case codeServiceUnavailable, codeParseError, codeInvalidRequest, codeMethodNotFound,
		codeInvalidParams, codeInternalError, codeRequestRejected:
		return RestoreCustomBroken{Code: code}, true
	case codeAnotherNumber:
		return RestoreCustomTryAnother{WrongNumber: phone, TrySocial: hasDeviceShare}, true
	case codeNotDeliverable:
		if hasDeviceShare {
			return RestoreCustomOTPNotDeliveredTrySocial{Phone: phone, Code: code}, true
		}
		return RestoreCustomOTPNotDelivered{Phone: phone, Code: code}, true
	case codeTooManyAttempts:
		return RestoreCustomBlock{Until: until, Social: social, Reason: BlockEnterPhoneNumber}, true
	}
	return nil, false
}

// confirmOTPFailure maps a gateway code from a confirm-OTP call.
func confirmOTPFailure(code int, social *RestoreSocialData, until time.Time) (next RestoreCustomState, handled bool) {
	switch code {
	case codeParseError, codeInvalidRequest, codeMethodNotFound,
		codeInvalidParams, codeInternalError, codeRequestRejected:
		return RestoreCustomBroken{Code: code}, true
	case codeTooManyAttempts:
		return RestoreCustomBlock{Until: until, Social: social, Reason: BlockEnterOTP}, true
	}
	return nil, false
}

func gatewayErrorCode(err error) (int, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Code, true
	}
	return 0, false
}

func confirmOTP(ctx context.Context, s RestoreCustomEnterOTP, otp string, p RestoreCustomProvider) (RestoreCustomState, error) {
	payload, err := p.Gateway.ConfirmRestoreWallet(ctx, s.RequestKey, s.Phone, otp, p.now())
	if err != nil {
		code, ok := gatewayErrorCode(err)
		if !ok {
			return nil, err
		}
		next, handled := confirmOTPFailure(code, s.Social, p.blockUntil())
		if !handled {
			return nil, err
		}
		return next, nil
	}

	switch {
	case s.Social != nil && !p.Auth.IsExpired(s.Social.TokenID.Value) && p.DeviceShare != nil:
		return restoreWithToken(ctx, s.Social.TokenID, payload, *p.DeviceShare, p.Facade), nil

	case p.DeviceShare != nil:
		res, meta, err := restoreWithDevice(ctx, *p.DeviceShare, payload, p.Facade)
		if err == nil {
			return finishRestoreCustom(RestoreCustomSuccessful{
				SeedPhrase:   res.PrivateKey,
				EthPublicKey: res.ReconstructedPublicKey,
				Metadata:     meta,
			}), nil
		}
		if s.Social != nil && p.Auth.IsExpired(s.Social.TokenID.Value) {
			return RestoreCustomExpiredSocialTryAgain{Result: payload, Social: *s.Social}, nil
		}
		if code, ok := facadeErrorCode(err); ok && code == FacadeCodeDeviceShareUnrecognized {
			return RestoreCustomNotFoundDevice{}, nil
		}
		return RestoreCustomNoMatch{}, nil

	default:
		return finishRestoreCustom(RestoreCustomRequireSocialCustom{Result: payload}), nil
	}
}

// restoreWithToken combines the social and custom shares, falling back to the
// device and custom shares. Metadata is optional on the fallback path.
func restoreWithToken(ctx context.Context, token TokenID, payload RestorePayload, deviceShare string, f SecretFacade) RestoreCustomState {
	res, err := func() (SignInResult, error) {
		if err := f.Initialize(ctx); err != nil {
			return SignInResult{}, err
		}
		return f.SignInWithTokenCustomShare(ctx, token, payload.EncryptedShare, payload.EncryptedPayload)
	}()
	if err == nil {
		meta, derr := metadata.Decrypt(res.PrivateKey, payload.EncryptedMetadata)
		if derr == nil {
			return finishRestoreCustom(RestoreCustomSuccessful{
				SeedPhrase:   res.PrivateKey,
				EthPublicKey: res.ReconstructedPublicKey,
				Metadata:     meta,
			})
		}
	}

	if err := f.Initialize(ctx); err != nil {
		return RestoreCustomNoMatch{}
	}
	res, err = f.SignInWithDeviceCustomShare(ctx, deviceShare, payload.EncryptedShare, payload.EncryptedPayload)
	if err != nil {
		return RestoreCustomNoMatch{}
	}
	meta, err := metadata.Decrypt(res.PrivateKey, payload.EncryptedMetadata)
	if err != nil {
		meta = nil
	}
	return finishRestoreCustom(RestoreCustomSuccessful{
		SeedPhrase:   res.PrivateKey,
		EthPublicKey: res.ReconstructedPublicKey,
		Metadata:     meta,
	})
}

func restoreWithDevice(ctx context.Context, deviceShare string, payload RestorePayload, f SecretFacade) (SignInResult, *metadata.Wallet, error) {
	if err := f.Initialize(ctx); err != nil {
		return SignInResult{}, nil, err
	}
	res, err := f.SignInWithDeviceCustomShare(ctx, deviceShare, payload.EncryptedShare, payload.EncryptedPayload)
	if err != nil {
		return SignInResult{}, nil, err
	}
	meta, err := metadata.Decrypt(res.PrivateKey, payload.EncryptedMetadata)
	if err != nil {
		return SignInResult{}, nil, err
	}
	return res, meta, nil
}
