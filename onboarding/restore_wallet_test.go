package onboarding_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrEthical07/walletflow/internal/fakes"
	"github.com/MrEthical07/walletflow/keys"
	"github.com/MrEthical07/walletflow/machine"
	"github.com/MrEthical07/walletflow/onboarding"
)

type restoreWalletMachine = machine.Machine[onboarding.RestoreWalletState, onboarding.RestoreWalletEvent, onboarding.RestoreWalletProvider]

func restoreWalletProvider(f *restoreCustomFixture) onboarding.RestoreWalletProvider {
	return onboarding.RestoreWalletProvider{
		Facade:         f.facade,
		Auth:           f.auth,
		Gateway:        f.gateway,
		SecurityStatus: fakes.SecurityStatus{Biometry: onboarding.BiometryNone},
		ICloudAccounts: fakes.ICloudAccounts{Accounts: []onboarding.RawICloudAccount{
			{Name: "main", Phrase: testSeed, DerivablePath: keys.DefaultDerivablePath},
		}},
		DeviceShare:   f.device,
		BlockDuration: f.provider().BlockDuration,
		Now:           f.clock.Now,
		NewRequestKey: func() ([]byte, error) { return testKey, nil },
	}
}

func newRestoreWalletMachine(t *testing.T, p onboarding.RestoreWalletProvider, state onboarding.RestoreWalletState) *restoreWalletMachine {
	t.Helper()
	m, err := machine.New(onboarding.RestoreWalletFlow, p, state)
	if err != nil {
		t.Fatalf("new machine: %v", err)
	}
	return m
}

func custom(e onboarding.RestoreCustomEvent) onboarding.RestoreWalletEvent {
	return onboarding.RestoreWalletRestoreCustomEvent{Event: e}
}

func TestRestoreWalletKeychainPath(t *testing.T) {
	f := newRestoreCustomFixture(false)
	m := newRestoreWalletMachine(t, restoreWalletProvider(f), onboarding.RestoreWalletRestore{})
	ctx := context.Background()

	got, err := m.Accept(ctx, onboarding.RestoreWalletUseKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, ok := got.(onboarding.RestoreWalletSignInKeychain)
	if !ok || len(list.Accounts) != 1 {
		t.Fatalf("expected one keychain account, got %#v", got)
	}
	derived, err := keys.DeriveAccount(testSeed, keys.MainnetBeta, keys.DefaultDerivablePath)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if list.Accounts[0].PublicKey != derived.PublicKey {
		t.Fatalf("expected public key %s, got %s", derived.PublicKey, list.Accounts[0].PublicKey)
	}

	got, err = m.Accept(ctx, onboarding.RestoreWalletPickAccount{Account: list.Accounts[0]})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := onboarding.RestoreWalletSecuritySetup{
		Identity: onboarding.WalletIdentity{SolPrivateKey: derived.EncodedSecretKey()},
		Sub:      onboarding.SecurityCreatePincode{Biometry: onboarding.BiometryNone},
	}
	if diff := cmp.Diff(onboarding.RestoreWalletState(want), got); diff != "" {
		t.Fatalf("unexpected state (-want +got):\n%s", diff)
	}

	if _, err := m.Accept(ctx, onboarding.RestoreWalletSecuritySetupEvent{Event: onboarding.SecurityPincodeCreated{Pincode: "654321"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err = m.Accept(ctx, onboarding.RestoreWalletSecuritySetupEvent{Event: onboarding.SecurityPincodeConfirmed{Pincode: "654321"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fin := onboarding.RestoreWalletFinish{Result: onboarding.RestoreWalletRestored{Wallet: onboarding.OnboardingWallet{
		SolPrivateKey: derived.EncodedSecretKey(),
		Pincode:       "654321",
	}}}
	if diff := cmp.Diff(onboarding.RestoreWalletState(fin), got); diff != "" {
		t.Fatalf("unexpected finish (-want +got):\n%s", diff)
	}
}

func TestRestoreWalletMalformedPhraseFails(t *testing.T) {
	f := newRestoreCustomFixture(false)
	p := restoreWalletProvider(f)
	start := onboarding.RestoreWalletSignInKeychain{}
	m := newRestoreWalletMachine(t, p, start)

	_, err := m.Accept(context.Background(), onboarding.RestoreWalletPickAccount{Account: onboarding.ICloudAccount{Phrase: "not a phrase"}})
	if !errors.Is(err, keys.ErrInvalidMnemonic) {
		t.Fatalf("expected ErrInvalidMnemonic, got %v", err)
	}
	if diff := cmp.Diff(onboarding.RestoreWalletState(start), m.State()); diff != "" {
		t.Fatalf("state changed on failure (-want +got):\n%s", diff)
	}
}

func TestRestoreWalletSeedIsNotImplemented(t *testing.T) {
	f := newRestoreCustomFixture(false)
	m := newRestoreWalletMachine(t, restoreWalletProvider(f), onboarding.RestoreWalletRestore{})
	ctx := context.Background()

	if _, err := m.Accept(ctx, onboarding.RestoreWalletUseSeed{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, ev := range []onboarding.RestoreWalletEvent{onboarding.RestoreWalletBack{}, onboarding.RestoreWalletContinue{}} {
		if _, err := m.Accept(ctx, ev); !errors.Is(err, onboarding.ErrNotImplemented) {
			t.Fatalf("expected ErrNotImplemented for %T, got %v", ev, err)
		}
	}
}

func TestRestoreWalletDeviceShareSignIn(t *testing.T) {
	f := newRestoreCustomFixture(true)
	m := newRestoreWalletMachine(t, restoreWalletProvider(f), onboarding.RestoreWalletRestore{})
	ctx := context.Background()

	got, err := m.Accept(ctx, onboarding.RestoreWalletSignInDevice{Provider: onboarding.SocialProviderApple, DeviceShare: "device-share"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := onboarding.RestoreWalletRestoredData{SolPrivateKey: testSeed, EthPublicKey: "eth-pub"}
	if diff := cmp.Diff(onboarding.RestoreWalletState(want), got); diff != "" {
		t.Fatalf("unexpected state (-want +got):\n%s", diff)
	}

	got, err = m.Accept(ctx, onboarding.RestoreWalletContinue{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	setup, ok := got.(onboarding.RestoreWalletSecuritySetup)
	if !ok {
		t.Fatalf("expected security setup, got %T", got)
	}
	if setup.Identity.DeviceShare != "device-share" || setup.Identity.EthPublicKey != "eth-pub" {
		t.Fatalf("unexpected identity %+v", setup.Identity)
	}
	if step, _ := m.Step(); step != 401 {
		t.Fatalf("expected step 401, got %v", step)
	}
}

func TestRestoreWalletPhoneThenSocialCustom(t *testing.T) {
	f := newRestoreCustomFixture(false)
	m := newRestoreWalletMachine(t, restoreWalletProvider(f), onboarding.RestoreWalletRestore{})
	ctx := context.Background()

	events := []onboarding.RestoreWalletEvent{
		onboarding.RestoreWalletEnterPhone{},
		custom(onboarding.RestoreCustomSubmitPhone{Phone: "+1555"}),
		custom(onboarding.RestoreCustomSubmitOTP{OTP: "123456"}),
	}
	wantSteps := []float64{101, 102, 200}
	for i, ev := range events {
		if _, err := m.Accept(ctx, ev); err != nil {
			t.Fatalf("event %d: unexpected error: %v", i, err)
		}
		if step, _ := m.Step(); step != wantSteps[i] {
			t.Fatalf("event %d: expected step %v, got %v", i, wantSteps[i], step)
		}
	}
	if diff := cmp.Diff(onboarding.RestoreWalletState(onboarding.RestoreWalletSocial{Result: f.gateway.Payload}), m.State()); diff != "" {
		t.Fatalf("unexpected state (-want +got):\n%s", diff)
	}

	got, err := m.Accept(ctx, onboarding.RestoreWalletSignInCustom{Provider: onboarding.SocialProviderGoogle})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got.(onboarding.RestoreWalletRestoredData); !ok {
		t.Fatalf("expected restored data, got %T", got)
	}
	calls := f.facade.Calls()
	if calls[len(calls)-1] != "SignInWithCustomShare" {
		t.Fatalf("expected custom-share sign-in, got %v", calls)
	}
}

func TestRestoreWalletMapsRestoreCustomResults(t *testing.T) {
	tests := []struct {
		name  string
		sub   onboarding.RestoreCustomState
		event onboarding.RestoreCustomEvent
		want  onboarding.RestoreWalletState
	}{
		{"break process", onboarding.RestoreCustomEnterPhone{}, onboarding.RestoreCustomBack{}, onboarding.RestoreWalletFinish{Result: onboarding.RestoreWalletBreakProcess{}}},
		{"start", onboarding.RestoreCustomBroken{Code: -32603}, onboarding.RestoreCustomRestart{}, onboarding.RestoreWalletRestore{}},
		{"require social device", onboarding.RestoreCustomNotFoundDevice{}, onboarding.RestoreCustomRequireSocial{Provider: onboarding.SocialProviderApple}, onboarding.RestoreWalletRestore{}},
		{"stays nested", onboarding.RestoreCustomTryAnother{WrongNumber: "+1"}, onboarding.RestoreCustomOpenPhone{}, onboarding.RestoreWalletRestoreCustom{Sub: onboarding.RestoreCustomEnterPhone{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRestoreCustomFixture(true)
			m := newRestoreWalletMachine(t, restoreWalletProvider(f), onboarding.RestoreWalletRestoreCustom{Sub: tt.sub})
			got, err := m.Accept(context.Background(), custom(tt.event))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected state (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRestoreWalletBackFromRestoreBreaks(t *testing.T) {
	f := newRestoreCustomFixture(false)
	m := newRestoreWalletMachine(t, restoreWalletProvider(f), onboarding.RestoreWalletRestore{})

	got, err := m.Accept(context.Background(), onboarding.RestoreWalletBack{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(onboarding.RestoreWalletState(onboarding.RestoreWalletFinish{Result: onboarding.RestoreWalletBreakProcess{}}), got); diff != "" {
		t.Fatalf("unexpected state (-want +got):\n%s", diff)
	}
	if step, _ := m.Step(); step != 500 {
		t.Fatalf("expected step 500, got %v", step)
	}
}
