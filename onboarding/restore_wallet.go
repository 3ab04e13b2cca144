package onboarding

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/walletflow/keys"
	"github.com/MrEthical07/walletflow/machine"
)

// ICloudAccount is a keychain account whose phrase derived successfully.
type ICloudAccount struct {
	Name          string `json:"name"`
	Phrase        string `json:"phrase"`
	DerivablePath string `json:"derivable_path"`
	PublicKey     string `json:"public_key"`
}

// RestoreWalletProvider bundles the collaborators of wallet restoration.
// Network defaults to keys.MainnetBeta.
type RestoreWalletProvider struct {
	Facade         SecretFacade
	Auth           SocialAuthService
	Gateway        Gateway
	SecurityStatus SecurityStatusProvider
	ICloudAccounts ICloudAccountProvider
	DeviceShare    *string
	Network        keys.Network
	BlockDuration  time.Duration
	Now            func() time.Time
	NewRequestKey  func() ([]byte, error)
}

func (p RestoreWalletProvider) restoreCustom() RestoreCustomProvider {
	return RestoreCustomProvider{
		Facade:        p.Facade,
		Gateway:       p.Gateway,
		Auth:          p.Auth,
		DeviceShare:   p.DeviceShare,
		BlockDuration: p.BlockDuration,
		Now:           p.Now,
		NewRequestKey: p.NewRequestKey,
	}
}

func (p RestoreWalletProvider) network() keys.Network {
	if p.Network == "" {
		return keys.MainnetBeta
	}
	return p.Network
}

func (p RestoreWalletProvider) deviceShare() string {
	if p.DeviceShare == nil {
		return ""
	}
	return *p.DeviceShare
}

// RestoreWalletResult is one of RestoreWalletRestored or RestoreWalletBreakProcess.
type RestoreWalletResult interface {
	isRestoreWalletResult()
}

type RestoreWalletRestored struct {
	Wallet OnboardingWallet `json:"wallet"`
}

type RestoreWalletBreakProcess struct{}

func (RestoreWalletRestored) isRestoreWalletResult()     {}
func (RestoreWalletBreakProcess) isRestoreWalletResult() {}

// RestoreWalletState is a macro-state of wallet restoration.
type RestoreWalletState interface {
	machine.Stepper
	machine.Continuable
	isRestoreWalletState()
}

// RestoreWalletRestore is the entry point: pick a restore method.
type RestoreWalletRestore struct{}

type RestoreWalletSignInKeychain struct {
	Accounts []ICloudAccount `json:"accounts"`
}

type RestoreWalletSignInSeed struct{}

type RestoreWalletRestoreCustom struct {
	Sub RestoreCustomState
}

// RestoreWalletSocial waits for a social sign-in that completes the custom
// share released by the gateway.
type RestoreWalletSocial struct {
	Result RestorePayload `json:"result"`
}

type RestoreWalletRestoredData struct {
	SolPrivateKey string `json:"sol_private_key"`
	EthPublicKey  string `json:"eth_public_key"`
}

type RestoreWalletSecuritySetup struct {
	Identity WalletIdentity
	Sub      SecuritySetupState
}

type RestoreWalletFinish struct {
	Result RestoreWalletResult
}

func (RestoreWalletRestore) isRestoreWalletState()        {}
func (RestoreWalletSignInKeychain) isRestoreWalletState() {}
func (RestoreWalletSignInSeed) isRestoreWalletState()     {}
func (RestoreWalletRestoreCustom) isRestoreWalletState()  {}
func (RestoreWalletSocial) isRestoreWalletState()         {}
func (RestoreWalletRestoredData) isRestoreWalletState()   {}
func (RestoreWalletSecuritySetup) isRestoreWalletState()  {}
func (RestoreWalletFinish) isRestoreWalletState()         {}

func (RestoreWalletRestore) Step() float64         { return 1 }
func (RestoreWalletSignInKeychain) Step() float64  { return 2 }
func (RestoreWalletSignInSeed) Step() float64      { return 3 }
func (s RestoreWalletRestoreCustom) Step() float64 { return 100 + s.Sub.Step() }
func (RestoreWalletSocial) Step() float64          { return 200 }
func (RestoreWalletRestoredData) Step() float64    { return 300 }
func (s RestoreWalletSecuritySetup) Step() float64 { return 400 + s.Sub.Step() }
func (RestoreWalletFinish) Step() float64          { return 500 }

func (RestoreWalletRestore) Continuable() bool         { return true }
func (RestoreWalletSignInKeychain) Continuable() bool  { return true }
func (RestoreWalletSignInSeed) Continuable() bool      { return true }
func (s RestoreWalletRestoreCustom) Continuable() bool { return s.Sub.Continuable() }
func (RestoreWalletSocial) Continuable() bool          { return true }
func (RestoreWalletRestoredData) Continuable() bool    { return true }
func (s RestoreWalletSecuritySetup) Continuable() bool { return s.Sub.Continuable() }
func (RestoreWalletFinish) Continuable() bool          { return false }

// RestoreWalletEvent is an input of wallet restoration.
type RestoreWalletEvent interface {
	isRestoreWalletEvent()
}

type RestoreWalletBack struct{}

// RestoreWalletUseKeychain lists the keychain accounts.
type RestoreWalletUseKeychain struct{}

type RestoreWalletPickAccount struct {
	Account ICloudAccount
}

type RestoreWalletUseSeed struct{}

// RestoreWalletSignInDevice combines a social share with a device share.
type RestoreWalletSignInDevice struct {
	Provider    SocialProvider
	DeviceShare string
}

// RestoreWalletSignInCustom combines a social share with the custom share
// held by RestoreWalletSocial.
type RestoreWalletSignInCustom struct {
	Provider SocialProvider
}

type RestoreWalletEnterPhone struct{}

type RestoreWalletRestoreCustomEvent struct {
	Event RestoreCustomEvent
}

type RestoreWalletContinue struct{}

type RestoreWalletSecuritySetupEvent struct {
	Event SecuritySetupEvent
}

func (RestoreWalletBack) isRestoreWalletEvent()               {}
func (RestoreWalletUseKeychain) isRestoreWalletEvent()        {}
func (RestoreWalletPickAccount) isRestoreWalletEvent()        {}
func (RestoreWalletUseSeed) isRestoreWalletEvent()            {}
func (RestoreWalletSignInDevice) isRestoreWalletEvent()       {}
func (RestoreWalletSignInCustom) isRestoreWalletEvent()       {}
func (RestoreWalletEnterPhone) isRestoreWalletEvent()         {}
func (RestoreWalletRestoreCustomEvent) isRestoreWalletEvent() {}
func (RestoreWalletContinue) isRestoreWalletEvent()           {}
func (RestoreWalletSecuritySetupEvent) isRestoreWalletEvent() {}

var RestoreWalletFlow = machine.Definition[RestoreWalletState, RestoreWalletEvent, RestoreWalletProvider]{
	Name: "restore_wallet",
	Initial: func(context.Context, RestoreWalletProvider) (RestoreWalletState, error) {
		return RestoreWalletRestore{}, nil
	},
	Accept: AcceptRestoreWallet,
}

// AcceptRestoreWallet is the wallet restoration transition function.
func AcceptRestoreWallet(ctx context.Context, current RestoreWalletState, event RestoreWalletEvent, p RestoreWalletProvider) (RestoreWalletState, error) {
	switch s := current.(type) {
	case RestoreWalletRestore:
		switch e := event.(type) {
		case RestoreWalletUseKeychain:
			accounts, err := loadICloudAccounts(ctx, p)
			if err != nil {
				return nil, err
			}
			return RestoreWalletSignInKeychain{Accounts: accounts}, nil
		case RestoreWalletUseSeed:
			return RestoreWalletSignInSeed{}, nil
		case RestoreWalletSignInDevice:
			return signInSocial(ctx, p, e.Provider, func(token TokenID) (SignInResult, error) {
				return p.Facade.SignInWithDeviceShare(ctx, token, e.DeviceShare)
			})
		case RestoreWalletEnterPhone:
			return RestoreWalletRestoreCustom{Sub: RestoreCustomEnterPhone{}}, nil
		case RestoreWalletBack:
			return RestoreWalletFinish{Result: RestoreWalletBreakProcess{}}, nil
		}

	case RestoreWalletSignInKeychain:
		switch e := event.(type) {
		case RestoreWalletPickAccount:
			acc, err := keys.DeriveAccount(e.Account.Phrase, p.network(), e.Account.DerivablePath)
			if err != nil {
				return nil, err
			}
			return startSecuritySetup(ctx, p, WalletIdentity{SolPrivateKey: acc.EncodedSecretKey()})
		case RestoreWalletBack:
			return RestoreWalletRestore{}, nil
		}

	case RestoreWalletSignInSeed:
		return nil, fmt.Errorf("%w: %T", ErrNotImplemented, event)

	case RestoreWalletRestoreCustom:
		e, ok := event.(RestoreWalletRestoreCustomEvent)
		if !ok {
			break
		}
		next, err := AcceptRestoreCustom(ctx, s.Sub, e.Event, p.restoreCustom())
		if err != nil {
			return nil, err
		}
		fin, done := next.(RestoreCustomFinish)
		if !done {
			return RestoreWalletRestoreCustom{Sub: next}, nil
		}
		return afterRestoreCustom(fin.Result, current, event)

	case RestoreWalletSocial:
		switch e := event.(type) {
		case RestoreWalletSignInCustom:
			return signInSocial(ctx, p, e.Provider, func(token TokenID) (SignInResult, error) {
				return p.Facade.SignInWithCustomShare(ctx, token, s.Result.EncryptedShare)
			})
		case RestoreWalletBack:
			return RestoreWalletRestore{}, nil
		}

	case RestoreWalletRestoredData:
		if _, ok := event.(RestoreWalletContinue); ok {
			return startSecuritySetup(ctx, p, WalletIdentity{
				SolPrivateKey: s.SolPrivateKey,
				EthPublicKey:  s.EthPublicKey,
				DeviceShare:   p.deviceShare(),
			})
		}

	case RestoreWalletSecuritySetup:
		e, ok := event.(RestoreWalletSecuritySetupEvent)
		if !ok {
			break
		}
		next, err := AcceptSecuritySetup(ctx, s.Sub, e.Event, p.SecurityStatus)
		if err != nil {
			return nil, err
		}
		fin, done := next.(SecurityFinish)
		if !done {
			return RestoreWalletSecuritySetup{Identity: s.Identity, Sub: next}, nil
		}
		return RestoreWalletFinish{Result: RestoreWalletRestored{
			Wallet: onboardingWallet(s.Identity, fin.Result),
		}}, nil

	case RestoreWalletFinish:
	}
	return nil, machine.Invalid(current, event)
}

func afterRestoreCustom(result RestoreCustomResult, current RestoreWalletState, event RestoreWalletEvent) (RestoreWalletState, error) {
	switch r := result.(type) {
	case RestoreCustomSuccessful:
		return RestoreWalletRestoredData{SolPrivateKey: r.SeedPhrase, EthPublicKey: r.EthPublicKey}, nil
	case RestoreCustomRequireSocialCustom:
		return RestoreWalletSocial{Result: r.Result}, nil
	case RestoreCustomRequireSocialDevice:
		return RestoreWalletRestore{}, nil
	case RestoreCustomExpiredSocial:
		return RestoreWalletSocial{Result: r.Result}, nil
	case RestoreCustomStart:
		return RestoreWalletRestore{}, nil
	case RestoreCustomBreakProcess:
		return RestoreWalletFinish{Result: RestoreWalletBreakProcess{}}, nil
	}
	return nil, machine.Invalid(current, event)
}

func loadICloudAccounts(ctx context.Context, p RestoreWalletProvider) ([]ICloudAccount, error) {
	raw, err := p.ICloudAccounts.All(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]ICloudAccount, 0, len(raw))
	for _, r := range raw {
		acc, err := keys.DeriveAccount(r.Phrase, p.network(), r.DerivablePath)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", r.Name, err)
		}
		accounts = append(accounts, ICloudAccount{
			Name:          r.Name,
			Phrase:        keys.NormalizePhrase(r.Phrase),
			DerivablePath: r.DerivablePath,
			PublicKey:     acc.PublicKey,
		})
	}
	return accounts, nil
}

func signInSocial(ctx context.Context, p RestoreWalletProvider, provider SocialProvider, signIn func(TokenID) (SignInResult, error)) (RestoreWalletState, error) {
	auth, err := p.Auth.Auth(ctx, provider)
	if err != nil {
		return nil, err
	}
	if err := p.Facade.Initialize(ctx); err != nil {
		return nil, err
	}
	res, err := signIn(TokenID{Value: auth.Token, Provider: provider})
	if err != nil {
		return nil, err
	}
	return RestoreWalletRestoredData{SolPrivateKey: res.PrivateKey, EthPublicKey: res.ReconstructedPublicKey}, nil
}

func startSecuritySetup(ctx context.Context, p RestoreWalletProvider, id WalletIdentity) (RestoreWalletState, error) {
	initial, err := InitialSecuritySetup(ctx, p.SecurityStatus)
	if err != nil {
		return nil, err
	}
	return RestoreWalletSecuritySetup{Identity: id, Sub: initial}, nil
}
