package onboarding

import (
	"encoding/json"
	"fmt"

	"github.com/MrEthical07/walletflow/internal/union"
)

// State codecs. Every variant encodes as {"kind": ..., "value": ...}; variants
// that embed another union encode the inner union the same way.

var bindingPhoneStates = func() *union.Registry[BindingPhoneState] {
	r := union.NewRegistry[BindingPhoneState]("binding_phone")
	union.Register[BindingPhoneState, BindingPhoneEnterNumber](r, "enter_phone_number")
	union.Register[BindingPhoneState, BindingPhoneEnterOTP](r, "enter_otp")
	union.Register[BindingPhoneState, BindingPhoneFinish](r, "finish")
	return r
}()

var securitySetupStates = func() *union.Registry[SecuritySetupState] {
	r := union.NewRegistry[SecuritySetupState]("security_setup")
	union.Register[SecuritySetupState, SecurityCreatePincode](r, "create_pincode")
	union.Register[SecuritySetupState, SecurityConfirmPincode](r, "confirm_pincode")
	union.Register[SecuritySetupState, SecuritySetBiometric](r, "set_biometric")
	union.Register[SecuritySetupState, SecurityFinish](r, "finish")
	return r
}()

var socialSignInResults = func() *union.Registry[SocialSignInResult] {
	r := union.NewRegistry[SocialSignInResult]("social_sign_in_result")
	union.Register[SocialSignInResult, SocialSignInSuccessful](r, "successful")
	union.Register[SocialSignInResult, SocialSignInBreakProcess](r, "break_process")
	union.Register[SocialSignInResult, SocialSignInSwitchToRestore](r, "switch_to_restore_flow")
	return r
}()

var socialSignInStates = func() *union.Registry[SocialSignInState] {
	r := union.NewRegistry[SocialSignInState]("social_sign_in")
	union.Register[SocialSignInState, SocialSelection](r, "social_selection")
	union.Register[SocialSignInState, SocialAccountWasUsed](r, "account_was_used")
	union.Register[SocialSignInState, SocialTryAgain](r, "try_again")
	union.Register[SocialSignInState, SocialSignInFinish](r, "finish")
	return r
}()

var restoreCustomResults = func() *union.Registry[RestoreCustomResult] {
	r := union.NewRegistry[RestoreCustomResult]("restore_custom_result")
	union.Register[RestoreCustomResult, RestoreCustomSuccessful](r, "successful")
	union.Register[RestoreCustomResult, RestoreCustomRequireSocialCustom](r, "require_social_custom")
	union.Register[RestoreCustomResult, RestoreCustomRequireSocialDevice](r, "require_social_device")
	union.Register[RestoreCustomResult, RestoreCustomExpiredSocial](r, "expired_social_try_again")
	union.Register[RestoreCustomResult, RestoreCustomStart](r, "start")
	union.Register[RestoreCustomResult, RestoreCustomBreakProcess](r, "break_process")
	return r
}()

var restoreCustomStates = func() *union.Registry[RestoreCustomState] {
	r := union.NewRegistry[RestoreCustomState]("restore_custom")
	union.Register[RestoreCustomState, RestoreCustomEnterPhone](r, "enter_phone")
	union.Register[RestoreCustomState, RestoreCustomEnterOTP](r, "enter_otp")
	union.Register[RestoreCustomState, RestoreCustomOTPNotDeliveredTrySocial](r, "otp_not_delivered_try_social")
	union.Register[RestoreCustomState, RestoreCustomOTPNotDelivered](r, "otp_not_delivered")
	union.Register[RestoreCustomState, RestoreCustomNoMatch](r, "no_match")
	union.Register[RestoreCustomState, RestoreCustomNotFoundDevice](r, "not_found_device")
	union.Register[RestoreCustomState, RestoreCustomBroken](r, "broken")
	union.Register[RestoreCustomState, RestoreCustomTryAnother](r, "try_another")
	union.Register[RestoreCustomState, RestoreCustomBlock](r, "block")
	union.Register[RestoreCustomState, RestoreCustomExpiredSocialTryAgain](r, "expired_social_try_again")
	union.Register[RestoreCustomState, RestoreCustomFinish](r, "finish")
	return r
}()

var createWalletResults = func() *union.Registry[CreateWalletResult] {
	r := union.NewRegistry[CreateWalletResult]("create_wallet_result")
	union.Register[CreateWalletResult, CreateWalletNewWallet](r, "new_wallet")
	union.Register[CreateWalletResult, CreateWalletBreakProcess](r, "break_process")
	union.Register[CreateWalletResult, CreateWalletSwitchToRestore](r, "switch_to_restore_flow")
	return r
}()

var createWalletStates = func() *union.Registry[CreateWalletState] {
	r := union.NewRegistry[CreateWalletState]("create_wallet")
	union.Register[CreateWalletState, CreateWalletSocialSignIn](r, "social_sign_in")
	union.Register[CreateWalletState, CreateWalletBindingPhone](r, "binding_phone_number")
	union.Register[CreateWalletState, CreateWalletSecuritySetup](r, "security_setup")
	union.Register[CreateWalletState, CreateWalletFinish](r, "finish")
	return r
}()

var restoreWalletResults = func() *union.Registry[RestoreWalletResult] {
	r := union.NewRegistry[RestoreWalletResult]("restore_wallet_result")
	union.Register[RestoreWalletResult, RestoreWalletRestored](r, "restored")
	union.Register[RestoreWalletResult, RestoreWalletBreakProcess](r, "break_process")
	return r
}()

var restoreWalletStates = func() *union.Registry[RestoreWalletState] {
	r := union.NewRegistry[RestoreWalletState]("restore_wallet")
	union.Register[RestoreWalletState, RestoreWalletRestore](r, "restore")
	union.Register[RestoreWalletState, RestoreWalletSignInKeychain](r, "sign_in_keychain")
	union.Register[RestoreWalletState, RestoreWalletSignInSeed](r, "sign_in_seed")
	union.Register[RestoreWalletState, RestoreWalletRestoreCustom](r, "restore_custom")
	union.Register[RestoreWalletState, RestoreWalletSocial](r, "social")
	union.Register[RestoreWalletState, RestoreWalletRestoredData](r, "restored_data")
	union.Register[RestoreWalletState, RestoreWalletSecuritySetup](r, "security_setup")
	union.Register[RestoreWalletState, RestoreWalletFinish](r, "finish")
	return r
}()

func MarshalBindingPhoneState(s BindingPhoneState) ([]byte, error) {
	return bindingPhoneStates.Marshal(s)
}

func UnmarshalBindingPhoneState(data []byte) (BindingPhoneState, error) {
	return bindingPhoneStates.Unmarshal(data)
}

func MarshalSecuritySetupState(s SecuritySetupState) ([]byte, error) {
	return securitySetupStates.Marshal(s)
}

func UnmarshalSecuritySetupState(data []byte) (SecuritySetupState, error) {
	return securitySetupStates.Unmarshal(data)
}

func MarshalSocialSignInState(s SocialSignInState) ([]byte, error) {
	return socialSignInStates.Marshal(s)
}

func UnmarshalSocialSignInState(data []byte) (SocialSignInState, error) {
	return socialSignInStates.Unmarshal(data)
}

func MarshalRestoreCustomState(s RestoreCustomState) ([]byte, error) {
	return restoreCustomStates.Marshal(s)
}

func UnmarshalRestoreCustomState(data []byte) (RestoreCustomState, error) {
	return restoreCustomStates.Unmarshal(data)
}

func MarshalCreateWalletState(s CreateWalletState) ([]byte, error) {
	return createWalletStates.Marshal(s)
}

func UnmarshalCreateWalletState(data []byte) (CreateWalletState, error) {
	return createWalletStates.Unmarshal(data)
}

func MarshalRestoreWalletState(s RestoreWalletState) ([]byte, error) {
	return restoreWalletStates.Marshal(s)
}

func UnmarshalRestoreWalletState(data []byte) (RestoreWalletState, error) {
	return restoreWalletStates.Unmarshal(data)
}

// Variants that embed a union.

type resultWire struct {
	Result json.RawMessage `json:"result"`
}

type subWire struct {
	Sub json.RawMessage `json:"sub"`
}

type identitySubWire struct {
	Identity WalletIdentity  `json:"identity"`
	Sub      json.RawMessage `json:"sub"`
}

func decodeField[S any](r *union.Registry[S], field string, raw json.RawMessage) (S, error) {
	if len(raw) == 0 || string(raw) == "null" {
		var zero S
		return zero, fmt.Errorf("missing %s", field)
	}
	return r.Unmarshal(raw)
}

func marshalResult[S any](r *union.Registry[S], v S) ([]byte, error) {
	raw, err := r.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resultWire{Result: raw})
}

func unmarshalResult[S any](r *union.Registry[S], data []byte) (S, error) {
	var w resultWire
	if err := json.Unmarshal(data, &w); err != nil {
		var zero S
		return zero, err
	}
	return decodeField(r, "result", w.Result)
}

func marshalSub[S any](r *union.Registry[S], v S) ([]byte, error) {
	raw, err := r.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(subWire{Sub: raw})
}

func unmarshalSub[S any](r *union.Registry[S], data []byte) (S, error) {
	var w subWire
	if err := json.Unmarshal(data, &w); err != nil {
		var zero S
		return zero, err
	}
	return decodeField(r, "sub", w.Sub)
}

func marshalIdentitySub[S any](r *union.Registry[S], id WalletIdentity, v S) ([]byte, error) {
	raw, err := r.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(identitySubWire{Identity: id, Sub: raw})
}

func unmarshalIdentitySub[S any](r *union.Registry[S], data []byte) (WalletIdentity, S, error) {
	var w identitySubWire
	if err := json.Unmarshal(data, &w); err != nil {
		var zero S
		return WalletIdentity{}, zero, err
	}
	sub, err := decodeField(r, "sub", w.Sub)
	return w.Identity, sub, err
}

func (s SocialSignInFinish) MarshalJSON() ([]byte, error) {
	return marshalResult(socialSignInResults, s.Result)
}

func (s *SocialSignInFinish) UnmarshalJSON(data []byte) (err error) {
	s.Result, err = unmarshalResult(socialSignInResults, data)
	return err
}

func (s RestoreCustomFinish) MarshalJSON() ([]byte, error) {
	return marshalResult(restoreCustomResults, s.Result)
}

func (s *RestoreCustomFinish) UnmarshalJSON(data []byte) (err error) {
	s.Result, err = unmarshalResult(restoreCustomResults, data)
	return err
}

func (s CreateWalletSocialSignIn) MarshalJSON() ([]byte, error) {
	return marshalSub(socialSignInStates, s.Sub)
}

func (s *CreateWalletSocialSignIn) UnmarshalJSON(data []byte) (err error) {
	s.Sub, err = unmarshalSub(socialSignInStates, data)
	return err
}

func (s CreateWalletBindingPhone) MarshalJSON() ([]byte, error) {
	return marshalIdentitySub(bindingPhoneStates, s.Identity, s.Sub)
}

func (s *CreateWalletBindingPhone) UnmarshalJSON(data []byte) (err error) {
	s.Identity, s.Sub, err = unmarshalIdentitySub(bindingPhoneStates, data)
	return err
}

func (s CreateWalletSecuritySetup) MarshalJSON() ([]byte, error) {
	return marshalIdentitySub(securitySetupStates, s.Identity, s.Sub)
}

func (s *CreateWalletSecuritySetup) UnmarshalJSON(data []byte) (err error) {
	s.Identity, s.Sub, err = unmarshalIdentitySub(securitySetupStates, data)
	return err
}

func (s CreateWalletFinish) MarshalJSON() ([]byte, error) {
	return marshalResult(createWalletResults, s.Result)
}

func (s *CreateWalletFinish) UnmarshalJSON(data []byte) (err error) {
	s.Result, err = unmarshalResult(createWalletResults, data)
	return err
}

func (s RestoreWalletRestoreCustom) MarshalJSON() ([]byte, error) {
	return marshalSub(restoreCustomStates, s.Sub)
}

func (s *RestoreWalletRestoreCustom) UnmarshalJSON(data []byte) (err error) {
	s.Sub, err = unmarshalSub(restoreCustomStates, data)
	return err
}

func (s RestoreWalletSecuritySetup) MarshalJSON() ([]byte, error) {
	return marshalIdentitySub(securitySetupStates, s.Identity, s.Sub)
}

func (s *RestoreWalletSecuritySetup) UnmarshalJSON(data []byte) (err error) {
	s.Identity, s.Sub, err = unmarshalIdentitySub(securitySetupStates, data)
	return err
}

func (s RestoreWalletFinish) MarshalJSON() ([]byte, error) {
	return marshalResult(restoreWalletResults, s.Result)
}

func (s *RestoreWalletFinish) UnmarshalJSON(data []byte) (err error) {
	s.Result, err = unmarshalResult(restoreWalletResults, data)
	return err
}
