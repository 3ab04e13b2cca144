package onboarding

import (
	"context"

	"github.com/MrEthical07/walletflow/machine"
)

// DefaultPincode is used when security setup finishes without a PIN.
const DefaultPincode = "000000"

// WalletIdentity is the key material threaded through composite flows. The
// orchestrators forward it without interpreting it.
type WalletIdentity struct {
	Email         string `json:"email"`
	SolPrivateKey string `json:"sol_private_key"`
	EthPublicKey  string `json:"eth_public_key"`
	DeviceShare   string `json:"device_share"`
}

// CreateWalletProvider bundles the collaborators of wallet creation.
type CreateWalletProvider struct {
	Auth           SocialAuthService
	Facade         SecretFacade
	SecurityStatus SecurityStatusProvider
}

func (p CreateWalletProvider) socialSignIn() SocialSignInProvider {
	return SocialSignInProvider{Facade: p.Facade, Auth: p.Auth}
}

// CreateWalletResult is one of CreateWalletNewWallet, CreateWalletBreakProcess
// or CreateWalletSwitchToRestore.
type CreateWalletResult interface {
	isCreateWalletResult()
}

type CreateWalletNewWallet struct {
	Wallet OnboardingWallet `json:"wallet"`
}

type CreateWalletBreakProcess struct{}

type CreateWalletSwitchToRestore struct {
	Provider SocialProvider `json:"provider"`
	Email    string         `json:"email"`
}

func (CreateWalletNewWallet) isCreateWalletResult()       {}
func (CreateWalletBreakProcess) isCreateWalletResult()    {}
func (CreateWalletSwitchToRestore) isCreateWalletResult() {}

// CreateWalletState is one of CreateWalletSocialSignIn, CreateWalletBindingPhone,
// CreateWalletSecuritySetup or CreateWalletFinish.
type CreateWalletState interface {
	machine.Stepper
	machine.Continuable
	isCreateWalletState()
}

type CreateWalletSocialSignIn struct {
	Sub SocialSignInState
}

type CreateWalletBindingPhone struct {
	Identity WalletIdentity
	Sub      BindingPhoneState
}

type CreateWalletSecuritySetup struct {
	Identity WalletIdentity
	Sub      SecuritySetupState
}

type CreateWalletFinish struct {
	Result CreateWalletResult
}

func (CreateWalletSocialSignIn) isCreateWalletState()  {}
func (CreateWalletBindingPhone) isCreateWalletState()  {}
func (CreateWalletSecuritySetup) isCreateWalletState() {}
func (CreateWalletFinish) isCreateWalletState()        {}

func (s CreateWalletSocialSignIn) Step() float64  { return 100 + s.Sub.Step() }
func (s CreateWalletBindingPhone) Step() float64  { return 200 + s.Sub.Step() }
func (s CreateWalletSecuritySetup) Step() float64 { return 300 + s.Sub.Step() }
func (CreateWalletFinish) Step() float64          { return 400 }

func (s CreateWalletSocialSignIn) Continuable() bool  { return s.Sub.Continuable() }
func (s CreateWalletBindingPhone) Continuable() bool  { return s.Sub.Continuable() }
func (s CreateWalletSecuritySetup) Continuable() bool { return s.Sub.Continuable() }
func (CreateWalletFinish) Continuable() bool          { return false }

// CreateWalletEvent wraps the event of whichever sub-flow is active.
type CreateWalletEvent interface {
	isCreateWalletEvent()
}

type CreateWalletSocialSignInEvent struct {
	Event SocialSignInEvent
}

type CreateWalletBindingPhoneEvent struct {
	Event BindingPhoneEvent
}

type CreateWalletSecuritySetupEvent struct {
	Event SecuritySetupEvent
}

func (CreateWalletSocialSignInEvent) isCreateWalletEvent()  {}
func (CreateWalletBindingPhoneEvent) isCreateWalletEvent()  {}
func (CreateWalletSecuritySetupEvent) isCreateWalletEvent() {}

var CreateWalletFlow = machine.Definition[CreateWalletState, CreateWalletEvent, CreateWalletProvider]{
	Name: "create_wallet",
	Initial: func(context.Context, CreateWalletProvider) (CreateWalletState, error) {
		return CreateWalletSocialSignIn{Sub: SocialSelection{}}, nil
	},
	Accept: AcceptCreateWallet,
}

// AcceptCreateWallet routes an event into the active sub-flow and maps a
// terminal sub-result to the next macro-state.
func AcceptCreateWallet(ctx context.Context, current CreateWalletState, event CreateWalletEvent, p CreateWalletProvider) (CreateWalletState, error) {
	switch s := current.(type) {
	case CreateWalletSocialSignIn:
		e, ok := event.(CreateWalletSocialSignInEvent)
		if !ok {
			break
		}
		next, err := AcceptSocialSignIn(ctx, s.Sub, e.Event, p.socialSignIn())
		if err != nil {
			return nil, err
		}
		fin, done := next.(SocialSignInFinish)
		if !done {
			return CreateWalletSocialSignIn{Sub: next}, nil
		}
		return afterSocialSignIn(fin.Result, current, event)

	case CreateWalletBindingPhone:
		e, ok := event.(CreateWalletBindingPhoneEvent)
		if !ok {
			break
		}
		next, err := AcceptBindingPhone(ctx, s.Sub, e.Event, None{})
		if err != nil {
			return nil, err
		}
		if _, done := next.(BindingPhoneFinish); !done {
			return CreateWalletBindingPhone{Identity: s.Identity, Sub: next}, nil
		}
		initial, err := InitialSecuritySetup(ctx, p.SecurityStatus)
		if err != nil {
			return nil, err
		}
		return CreateWalletSecuritySetup{Identity: s.Identity, Sub: initial}, nil

	case CreateWalletSecuritySetup:
		e, ok := event.(CreateWalletSecuritySetupEvent)
		if !ok {
			break
		}
		next, err := AcceptSecuritySetup(ctx, s.Sub, e.Event, p.SecurityStatus)
		if err != nil {
			return nil, err
		}
		fin, done := next.(SecurityFinish)
		if !done {
			return CreateWalletSecuritySetup{Identity: s.Identity, Sub: next}, nil
		}
		return CreateWalletFinish{Result: CreateWalletNewWallet{
			Wallet: onboardingWallet(s.Identity, fin.Result),
		}}, nil

	case CreateWalletFinish:
	}
	return nil, machine.Invalid(current, event)
}

func afterSocialSignIn(result SocialSignInResult, current CreateWalletState, event CreateWalletEvent) (CreateWalletState, error) {
	switch r := result.(type) {
	case SocialSignInSuccessful:
		return CreateWalletBindingPhone{
			Identity: WalletIdentity{
				Email:         r.Email,
				SolPrivateKey: r.SolPrivateKey,
				EthPublicKey:  r.EthPublicKey,
				DeviceShare:   r.DeviceShare,
			},
			Sub: NewBindingPhone(BindingPhoneData{
				SolanaPublicKey: r.SolPrivateKey,
				EthereumID:      r.EthPublicKey,
				CustomShare:     r.CustomShare,
				Payload:         r.Metadata,
			}),
		}, nil
	case SocialSignInBreakProcess:
		return CreateWalletFinish{Result: CreateWalletBreakProcess{}}, nil
	case SocialSignInSwitchToRestore:
		return CreateWalletFinish{Result: CreateWalletSwitchToRestore{Provider: r.Provider, Email: r.Email}}, nil
	}
	return nil, machine.Invalid(current, event)
}

func onboardingWallet(id WalletIdentity, r SecuritySetupResult) OnboardingWallet {
	pincode := DefaultPincode
	if r.Pincode != nil {
		pincode = *r.Pincode
	}
	return OnboardingWallet{
		SolPrivateKey: id.SolPrivateKey,
		DeviceShare:   id.DeviceShare,
		Pincode:       pincode,
		UseBiometric:  r.WithBiometric,
	}
}
