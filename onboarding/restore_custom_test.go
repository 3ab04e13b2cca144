package onboarding_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrEthical07/walletflow/internal/fakes"
	"github.com/MrEthical07/walletflow/machine"
	"github.com/MrEthical07/walletflow/metadata"
	"github.com/MrEthical07/walletflow/onboarding"
)

const testSeed = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var testKey = []byte("request-key-0001")

type restoreCustomFixture struct {
	clock   *fakes.Clock
	auth    *fakes.Auth
	facade  *fakes.Facade
	gateway *fakes.Gateway
	device  *string
}

func newRestoreCustomFixture(withDevice bool) *restoreCustomFixture {
	clock := fakes.NewClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	f := &restoreCustomFixture{
		clock:   clock,
		auth:    &fakes.Auth{Email: "alice@example.com", Now: clock.Now},
		facade:  &fakes.Facade{SignInResult: onboarding.SignInResult{PrivateKey: testSeed, ReconstructedPublicKey: "eth-pub"}},
		gateway: &fakes.Gateway{Payload: fakes.EscrowPayload(testSeed, metadata.Wallet{Email: "alice@example.com", PhoneNumber: "+1555"})},
	}
	if withDevice {
		share := "device-share"
		f.device = &share
	}
	return f
}

func (f *restoreCustomFixture) provider() onboarding.RestoreCustomProvider {
	return onboarding.RestoreCustomProvider{
		Facade:        f.facade,
		Gateway:       f.gateway,
		Auth:          f.auth,
		DeviceShare:   f.device,
		BlockDuration: 5 * time.Minute,
		Now:           f.clock.Now,
		NewRequestKey: func() ([]byte, error) { return testKey, nil },
	}
}

func (f *restoreCustomFixture) machine(t *testing.T, state onboarding.RestoreCustomState) *machine.Machine[onboarding.RestoreCustomState, onboarding.RestoreCustomEvent, onboarding.RestoreCustomProvider] {
	t.Helper()
	m, err := machine.New(onboarding.RestoreCustomFlow, f.provider(), state)
	if err != nil {
		t.Fatalf("new machine: %v", err)
	}
	return m
}

func (f *restoreCustomFixture) social(expired bool) *onboarding.RestoreSocialData {
	exp := f.clock.Now().Add(time.Hour)
	if expired {
		exp = f.clock.Now().Add(-time.Hour)
	}
	return &onboarding.RestoreSocialData{
		Email:   "alice@example.com",
		TokenID: onboarding.TokenID{Value: fakes.IssueToken("alice@example.com", exp), Provider: onboarding.SocialProviderGoogle},
	}
}

func TestRestoreCustomEnterPhoneSendsOTP(t *testing.T) {
	f := newRestoreCustomFixture(false)
	m := f.machine(t, onboarding.RestoreCustomEnterPhone{})

	got, err := m.Accept(context.Background(), onboarding.RestoreCustomSubmitPhone{Phone: "+1555"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := onboarding.RestoreCustomEnterOTP{Phone: "+1555", RequestKey: testKey, Attempt: 0}
	if diff := cmp.Diff(onboarding.RestoreCustomState(want), got); diff != "" {
		t.Fatalf("unexpected state (-want +got):\n%s", diff)
	}
	if f.gateway.Sends() != 1 {
		t.Fatalf("expected one send, got %d", f.gateway.Sends())
	}
}

func TestRestoreCustomResendBlocksOnFifth(t *testing.T) {
	f := newRestoreCustomFixture(false)
	m := f.machine(t, onboarding.RestoreCustomEnterOTP{Phone: "+1555", RequestKey: testKey})
	ctx := context.Background()

	for want := 1; want <= 4; want++ {
		got, err := m.Accept(ctx, onboarding.RestoreCustomResendOTP{})
		if err != nil {
			t.Fatalf("resend %d: unexpected error: %v", want, err)
		}
		otp, ok := got.(onboarding.RestoreCustomEnterOTP)
		if !ok {
			t.Fatalf("resend %d: expected EnterOTP, got %T", want, got)
		}
		if otp.Attempt != want {
			t.Fatalf("resend %d: expected attempt %d, got %d", want, want, otp.Attempt)
		}
	}

	got, err := m.Accept(ctx, onboarding.RestoreCustomResendOTP{})
	if err != nil {
		t.Fatalf("fifth resend: unexpected error: %v", err)
	}
	block, ok := got.(onboarding.RestoreCustomBlock)
	if !ok {
		t.Fatalf("expected Block, got %T", got)
	}
	if block.Reason != onboarding.BlockEnterOTP {
		t.Fatalf("expected reason %q, got %q", onboarding.BlockEnterOTP, block.Reason)
	}
	if !block.Until.Equal(f.clock.Now().Add(5 * time.Minute)) {
		t.Fatalf("expected block until now+5m, got %v", block.Until)
	}
	if f.gateway.Sends() != 4 {
		t.Fatalf("expected 4 sends, got %d", f.gateway.Sends())
	}
}

func TestRestoreCustomBlockTimeGuard(t *testing.T) {
	f := newRestoreCustomFixture(false)
	until := f.clock.Now().Add(time.Minute)
	block := onboarding.RestoreCustomBlock{Until: until, Reason: onboarding.BlockEnterPhoneNumber}
	m := f.machine(t, block)
	ctx := context.Background()

	if _, err := m.Accept(ctx, onboarding.RestoreCustomOpenPhone{}); !errors.Is(err, machine.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent before until, got %v", err)
	}
	f.clock.Advance(time.Minute)
	if _, err := m.Accept(ctx, onboarding.RestoreCustomOpenPhone{}); !errors.Is(err, machine.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent at until, got %v", err)
	}
	if diff := cmp.Diff(onboarding.RestoreCustomState(block), m.State()); diff != "" {
		t.Fatalf("state changed on rejected event (-want +got):\n%s", diff)
	}

	f.clock.Advance(time.Second)
	got, err := m.Accept(ctx, onboarding.RestoreCustomOpenPhone{})
	if err != nil {
		t.Fatalf("unexpected error after until: %v", err)
	}
	if diff := cmp.Diff(onboarding.RestoreCustomState(onboarding.RestoreCustomEnterPhone{}), got); diff != "" {
		t.Fatalf("unexpected state (-want +got):\n%s", diff)
	}
}

func TestRestoreCustomDeviceShareUnrecognized(t *testing.T) {
	f := newRestoreCustomFixture(true)
	f.facade.DeviceCustomErr = &onboarding.FacadeError{Code: onboarding.FacadeCodeDeviceShareUnrecognized}
	m := f.machine(t, onboarding.RestoreCustomEnterOTP{Phone: "+1555", RequestKey: testKey})

	got, err := m.Accept(context.Background(), onboarding.RestoreCustomSubmitOTP{OTP: "123456"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got.(onboarding.RestoreCustomNotFoundDevice); !ok {
		t.Fatalf("expected NotFoundDevice, got %T", got)
	}
}

func TestRestoreCustomRawFacadeErrorBody(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want onboarding.RestoreCustomState
	}{
		{"nested 1009 body", errors.New(`{"error":{"code":1009,"message":"device share not recognized"}}`), onboarding.RestoreCustomNotFoundDevice{}},
		{"flat 1009 body", errors.New(`{"code":1009,"message":"device share not recognized"}`), onboarding.RestoreCustomNotFoundDevice{}},
		{"other code", errors.New(`{"code":1001,"message":"invalid share"}`), onboarding.RestoreCustomNoMatch{}},
		{"unparseable", errors.New("facade offline"), onboarding.RestoreCustomNoMatch{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRestoreCustomFixture(true)
			f.facade.DeviceCustomErr = tt.err
			m := f.machine(t, onboarding.RestoreCustomEnterOTP{Phone: "+1555", RequestKey: testKey})

			got, err := m.Accept(context.Background(), onboarding.RestoreCustomSubmitOTP{OTP: "123456"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected state (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRestoreCustomDeviceShareSuccess(t *testing.T) {
	f := newRestoreCustomFixture(true)
	m := f.machine(t, onboarding.RestoreCustomEnterOTP{Phone: "+1555", RequestKey: testKey})

	got, err := m.Accept(context.Background(), onboarding.RestoreCustomSubmitOTP{OTP: "123456"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := onboarding.RestoreCustomFinish{Result: onboarding.RestoreCustomSuccessful{
		SeedPhrase:   testSeed,
		EthPublicKey: "eth-pub",
		Metadata:     &metadata.Wallet{Email: "alice@example.com", PhoneNumber: "+1555"},
	}}
	if diff := cmp.Diff(onboarding.RestoreCustomState(want), got); diff != "" {
		t.Fatalf("unexpected state (-want +got):\n%s", diff)
	}
}

func TestRestoreCustomBrokenMetadataIsNoMatch(t *testing.T) {
	f := newRestoreCustomFixture(true)
	f.gateway.Payload.EncryptedMetadata = `{"nonce":"bad"}`
	m := f.machine(t, onboarding.RestoreCustomEnterOTP{Phone: "+1555", RequestKey: testKey})

	got, err := m.Accept(context.Background(), onboarding.RestoreCustomSubmitOTP{OTP: "123456"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got.(onboarding.RestoreCustomNoMatch); !ok {
		t.Fatalf("expected NoMatch, got %T", got)
	}
}

func TestRestoreCustomExpiredSocialTryAgain(t *testing.T) {
	f := newRestoreCustomFixture(true)
	f.facade.DeviceCustomErr = &onboarding.FacadeError{Code: 1001}
	social := f.social(true)
	m := f.machine(t, onboarding.RestoreCustomEnterOTP{Phone: "+1555", RequestKey: testKey, Social: social})
	ctx := context.Background()

	got, err := m.Accept(ctx, onboarding.RestoreCustomSubmitOTP{OTP: "123456"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := onboarding.RestoreCustomExpiredSocialTryAgain{Result: f.gateway.Payload, Social: *social}
	if diff := cmp.Diff(onboarding.RestoreCustomState(want), got); diff != "" {
		t.Fatalf("unexpected state (-want +got):\n%s", diff)
	}

	got, err = m.Accept(ctx, onboarding.RestoreCustomRequireSocial{Provider: onboarding.SocialProviderApple})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fin := onboarding.RestoreCustomFinish{Result: onboarding.RestoreCustomExpiredSocial{
		Result:   f.gateway.Payload,
		Provider: onboarding.SocialProviderApple,
		Email:    "alice@example.com",
	}}
	if diff := cmp.Diff(onboarding.RestoreCustomState(fin), got); diff != "" {
		t.Fatalf("unexpected finish (-want +got):\n%s", diff)
	}
}

func TestRestoreCustomTokenPath(t *testing.T) {
	f := newRestoreCustomFixture(true)
	m := f.machine(t, onboarding.RestoreCustomEnterOTP{Phone: "+1555", RequestKey: testKey, Social: f.social(false)})

	got, err := m.Accept(context.Background(), onboarding.RestoreCustomSubmitOTP{OTP: "123456"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got.(onboarding.RestoreCustomFinish); !ok {
		t.Fatalf("expected Finish, got %T", got)
	}
	want := []string{"Initialize", "SignInWithTokenCustomShare"}
	if diff := cmp.Diff(want, f.facade.Calls()); diff != "" {
		t.Fatalf("unexpected facade calls (-want +got):\n%s", diff)
	}
}

func TestRestoreCustomTokenPathFallsBackToDevice(t *testing.T) {
	f := newRestoreCustomFixture(true)
	f.facade.TokenCustomErr = &onboarding.FacadeError{Code: 1001}
	f.gateway.Payload.EncryptedMetadata = "not-json"
	m := f.machine(t, onboarding.RestoreCustomEnterOTP{Phone: "+1555", RequestKey: testKey, Social: f.social(false)})

	got, err := m.Accept(context.Background(), onboarding.RestoreCustomSubmitOTP{OTP: "123456"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := onboarding.RestoreCustomFinish{Result: onboarding.RestoreCustomSuccessful{
		SeedPhrase:   testSeed,
		EthPublicKey: "eth-pub",
	}}
	if diff := cmp.Diff(onboarding.RestoreCustomState(want), got); diff != "" {
		t.Fatalf("unexpected state (-want +got):\n%s", diff)
	}
	calls := f.facade.Calls()
	if calls[len(calls)-1] != "SignInWithDeviceCustomShare" {
		t.Fatalf("expected device fallback, got %v", calls)
	}
}

func TestRestoreCustomWithoutSharesRequiresSocial(t *testing.T) {
	f := newRestoreCustomFixture(false)
	m := f.machine(t, onboarding.RestoreCustomEnterOTP{Phone: "+1555", RequestKey: testKey})

	got, err := m.Accept(context.Background(), onboarding.RestoreCustomSubmitOTP{OTP: "123456"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := onboarding.RestoreCustomFinish{Result: onboarding.RestoreCustomRequireSocialCustom{Result: f.gateway.Payload}}
	if diff := cmp.Diff(onboarding.RestoreCustomState(want), got); diff != "" {
		t.Fatalf("unexpected state (-want +got):\n%s", diff)
	}
	if len(f.facade.Calls()) != 0 {
		t.Fatalf("expected no facade calls, got %v", f.facade.Calls())
	}
}

func TestRestoreCustomGatewayCodes(t *testing.T) {
	tests := []struct {
		name   string
		device bool
		err    error
		want   onboarding.RestoreCustomState
	}{
		{"broken", false, &onboarding.GatewayError{Code: -32603}, onboarding.RestoreCustomBroken{Code: -32603}},
		{"try another with device", true, &onboarding.GatewayError{Code: -32060}, onboarding.RestoreCustomTryAnother{WrongNumber: "+1555", TrySocial: true}},
		{"not delivered try social", true, &onboarding.GatewayError{Code: -32054}, onboarding.RestoreCustomOTPNotDeliveredTrySocial{Phone: "+1555", Code: -32054}},
		{"not delivered", false, &onboarding.GatewayError{Code: -32054}, onboarding.RestoreCustomOTPNotDelivered{Phone: "+1555", Code: -32054}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRestoreCustomFixture(tt.device)
			f.gateway.SendErr = tt.err
			m := f.machine(t, onboarding.RestoreCustomEnterPhone{})
			got, err := m.Accept(context.Background(), onboarding.RestoreCustomSubmitPhone{Phone: "+1555"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected state (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRestoreCustomUnknownGatewayCodeIsReturned(t *testing.T) {
	f := newRestoreCustomFixture(false)
	f.gateway.SendErr = &onboarding.GatewayError{Code: -32001}
	start := onboarding.RestoreCustomEnterPhone{}
	m := f.machine(t, start)

	_, err := m.Accept(context.Background(), onboarding.RestoreCustomSubmitPhone{Phone: "+1555"})
	var ge *onboarding.GatewayError
	if !errors.As(err, &ge) || ge.Code != -32001 {
		t.Fatalf("expected gateway error -32001, got %v", err)
	}
	if diff := cmp.Diff(onboarding.RestoreCustomState(start), m.State()); diff != "" {
		t.Fatalf("state changed on failure (-want +got):\n%s", diff)
	}
}

func TestRestoreCustomBackKeepsSentCode(t *testing.T) {
	f := newRestoreCustomFixture(false)
	m := f.machine(t, onboarding.RestoreCustomEnterOTP{Phone: "+1555", RequestKey: testKey, Attempt: 2})
	ctx := context.Background()

	got, err := m.Accept(ctx, onboarding.RestoreCustomBack{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	phone := "+1555"
	want := onboarding.RestoreCustomEnterPhone{InitialPhone: &phone, DidSend: true, RequestKey: testKey}
	if diff := cmp.Diff(onboarding.RestoreCustomState(want), got); diff != "" {
		t.Fatalf("unexpected state (-want +got):\n%s", diff)
	}

	got, err = m.Accept(ctx, onboarding.RestoreCustomSubmitPhone{Phone: "+1555"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(onboarding.RestoreCustomState(onboarding.RestoreCustomEnterOTP{Phone: "+1555", RequestKey: testKey}), got); diff != "" {
		t.Fatalf("unexpected state (-want +got):\n%s", diff)
	}
	if f.gateway.Sends() != 0 {
		t.Fatalf("expected no resend, got %d sends", f.gateway.Sends())
	}
}

func TestRestoreCustomTryAnotherWithoutDeviceRejectsSocial(t *testing.T) {
	f := newRestoreCustomFixture(false)
	m := f.machine(t, onboarding.RestoreCustomTryAnother{WrongNumber: "+1555", TrySocial: false})

	_, err := m.Accept(context.Background(), onboarding.RestoreCustomRequireSocial{Provider: onboarding.SocialProviderApple})
	if !errors.Is(err, machine.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}
