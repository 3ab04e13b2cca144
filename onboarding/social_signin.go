package onboarding

import (
	"context"

	"github.com/MrEthical07/walletflow/machine"
)

// SocialSignInProvider bundles the collaborators of social sign-up.
type SocialSignInProvider struct {
	Facade SecretFacade
	Auth   SocialAuthService
}

// SocialSignInResult is one of SocialSignInSuccessful, SocialSignInBreakProcess
// or SocialSignInSwitchToRestore.
type SocialSignInResult interface {
	isSocialSignInResult()
}

// SocialSignInSuccessful carries the material of a new key split.
type SocialSignInSuccessful struct {
	Email         string `json:"email"`
	SolPrivateKey string `json:"sol_private_key"`
	EthPublicKey  string `json:"eth_public_key"`
	DeviceShare   string `json:"device_share"`
	CustomShare   string `json:"custom_share"`
	Metadata      string `json:"metadata"`
}

type SocialSignInBreakProcess struct{}

// SocialSignInSwitchToRestore is reported when the social account already
// owns a wallet and the user chose to restore it.
type SocialSignInSwitchToRestore struct {
	Provider SocialProvider `json:"provider"`
	Email    string         `json:"email"`
}

func (SocialSignInSuccessful) isSocialSignInResult()      {}
func (SocialSignInBreakProcess) isSocialSignInResult()    {}
func (SocialSignInSwitchToRestore) isSocialSignInResult() {}

// SocialSignInState is one of SocialSelection, SocialAccountWasUsed,
// SocialTryAgain or SocialSignInFinish.
type SocialSignInState interface {
	machine.Stepper
	machine.Continuable
	isSocialSignInState()
}

type SocialSelection struct{}

type SocialAccountWasUsed struct {
	Provider SocialProvider `json:"provider"`
	Email    string         `json:"email"`
}

type SocialTryAgain struct {
	Provider SocialProvider `json:"provider"`
}

type SocialSignInFinish struct {
	Result SocialSignInResult
}

func (SocialSelection) isSocialSignInState()      {}
func (SocialAccountWasUsed) isSocialSignInState() {}
func (SocialTryAgain) isSocialSignInState()       {}
func (SocialSignInFinish) isSocialSignInState()   {}

func (SocialSelection) Step() float64      { return 1 }
func (SocialAccountWasUsed) Step() float64 { return 2 }
func (SocialTryAgain) Step() float64       { return 3 }
func (SocialSignInFinish) Step() float64   { return 4 }

// Nothing exists server-side before sign-up succeeds, so no social state is
// worth resuming.
func (SocialSelection) Continuable() bool      { return false }
func (SocialAccountWasUsed) Continuable() bool { return false }
func (SocialTryAgain) Continuable() bool       { return false }
func (SocialSignInFinish) Continuable() bool   { return false }

// SocialSignInEvent is one of SocialSignIn, SocialRetry,
// SocialSwitchToRestore or SocialBack.
type SocialSignInEvent interface {
	isSocialSignInEvent()
}

type SocialSignIn struct {
	Provider SocialProvider
}

// SocialRetry repeats sign-up with the provider held by SocialTryAgain.
type SocialRetry struct{}

type SocialSwitchToRestore struct{}

type SocialBack struct{}

func (SocialSignIn) isSocialSignInEvent()          {}
func (SocialRetry) isSocialSignInEvent()           {}
func (SocialSwitchToRestore) isSocialSignInEvent() {}
func (SocialBack) isSocialSignInEvent()            {}

var SocialSignInFlow = machine.Definition[SocialSignInState, SocialSignInEvent, SocialSignInProvider]{
	Name: "social_sign_in",
	Initial: func(context.Context, SocialSignInProvider) (SocialSignInState, error) {
		return SocialSelection{}, nil
	},
	Accept: AcceptSocialSignIn,
}

// AcceptSocialSignIn is the social sign-up transition function.
func AcceptSocialSignIn(ctx context.Context, current SocialSignInState, event SocialSignInEvent, p SocialSignInProvider) (SocialSignInState, error) {
	switch s := current.(type) {
	case SocialSelection:
		switch e := event.(type) {
		case SocialSignIn:
			return signUp(ctx, e.Provider, p)
		case SocialBack:
			return SocialSignInFinish{Result: SocialSignInBreakProcess{}}, nil
		}

	case SocialAccountWasUsed:
		switch e := event.(type) {
		case SocialSignIn:
			return signUp(ctx, e.Provider, p)
		case SocialSwitchToRestore:
			return SocialSignInFinish{Result: SocialSignInSwitchToRestore{Provider: s.Provider, Email: s.Email}}, nil
		case SocialBack:
			return SocialSelection{}, nil
		}

	case SocialTryAgain:
		switch event.(type) {
		case SocialRetry:
			return signUp(ctx, s.Provider, p)
		case SocialBack:
			return SocialSelection{}, nil
		}

	case SocialSignInFinish:
	}
	return nil, machine.Invalid(current, event)
}

func signUp(ctx context.Context, provider SocialProvider, p SocialSignInProvider) (SocialSignInState, error) {
	auth, err := p.Auth.Auth(ctx, provider)
	if err != nil {
		return nil, err
	}

	res, err := facadeSignUp(ctx, p.Facade, TokenID{Value: auth.Token, Provider: provider})
	if err != nil {
		code, ok := facadeErrorCode(err)
		switch {
		case !ok:
			return nil, err
		case code == FacadeCodeDeviceShareUnrecognized:
			return SocialAccountWasUsed{Provider: provider, Email: auth.Email}, nil
		default:
			return SocialTryAgain{Provider: provider}, nil
		}
	}

	return SocialSignInFinish{Result: SocialSignInSuccessful{
		Email:         auth.Email,
		SolPrivateKey: res.PrivateKey,
		EthPublicKey:  res.ReconstructedPublicKey,
		DeviceShare:   res.DeviceShare,
		CustomShare:   res.CustomShare,
		Metadata:      res.Metadata,
	}}, nil
}

func facadeSignUp(ctx context.Context, f SecretFacade, token TokenID) (SignUpResult, error) {
	if err := f.Initialize(ctx); err != nil {
		return SignUpResult{}, err
	}
	return f.SignUp(ctx, token)
}
