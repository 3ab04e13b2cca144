package onboarding

import (
	"context"
	"fmt"

	"github.com/MrEthical07/walletflow/machine"
)

// SecuritySetupResult is the terminal payload of security setup. Pincode is
// nil when the user skipped PIN creation.
type SecuritySetupResult struct {
	Pincode       *string `json:"pincode"`
	WithBiometric bool    `json:"with_biometric"`
}

// SecuritySetupState is one of SecurityCreatePincode, SecurityConfirmPincode,
// SecuritySetBiometric or SecurityFinish.
type SecuritySetupState interface {
	machine.Stepper
	machine.Continuable
	isSecuritySetupState()
}

type SecurityCreatePincode struct {
	Biometry BiometryType `json:"biometry"`
}

type SecurityConfirmPincode struct {
	Pincode  string       `json:"pincode"`
	Biometry BiometryType `json:"biometry"`
	Mismatch bool         `json:"mismatch"`
}

type SecuritySetBiometric struct {
	Pincode  string       `json:"pincode"`
	Biometry BiometryType `json:"biometry"`
}

type SecurityFinish struct {
	Result SecuritySetupResult `json:"result"`
}

func (SecurityCreatePincode) isSecuritySetupState()  {}
func (SecurityConfirmPincode) isSecuritySetupState() {}
func (SecuritySetBiometric) isSecuritySetupState()   {}
func (SecurityFinish) isSecuritySetupState()         {}

func (SecurityCreatePincode) Step() float64  { return 1 }
func (SecurityConfirmPincode) Step() float64 { return 2 }
func (SecuritySetBiometric) Step() float64   { return 3 }
func (SecurityFinish) Step() float64         { return 4 }

func (SecurityCreatePincode) Continuable() bool  { return true }
func (SecurityConfirmPincode) Continuable() bool { return true }
func (SecuritySetBiometric) Continuable() bool   { return true }
func (SecurityFinish) Continuable() bool         { return false }

// SecuritySetupEvent is one of SecurityPincodeCreated, SecurityPincodeConfirmed,
// SecurityBiometricChosen, SecuritySkip or SecurityBack.
type SecuritySetupEvent interface {
	isSecuritySetupEvent()
}

type SecurityPincodeCreated struct {
	Pincode string
}

type SecurityPincodeConfirmed struct {
	Pincode string
}

type SecurityBiometricChosen struct {
	Enabled bool
}

type SecuritySkip struct{}

type SecurityBack struct{}

func (SecurityPincodeCreated) isSecuritySetupEvent()   {}
func (SecurityPincodeConfirmed) isSecuritySetupEvent() {}
func (SecurityBiometricChosen) isSecuritySetupEvent()  {}
func (SecuritySkip) isSecuritySetupEvent()             {}
func (SecurityBack) isSecuritySetupEvent()             {}

// InitialSecuritySetup snapshots the device biometry and returns the first
// security-setup state.
func InitialSecuritySetup(ctx context.Context, status SecurityStatusProvider) (SecuritySetupState, error) {
	st, err := status.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("security status: %w", err)
	}
	biometry := st.Biometry
	if biometry == "" {
		biometry = BiometryNone
	}
	return SecurityCreatePincode{Biometry: biometry}, nil
}

var SecuritySetupFlow = machine.Definition[SecuritySetupState, SecuritySetupEvent, SecurityStatusProvider]{
	Name:    "security_setup",
	Initial: InitialSecuritySetup,
	Accept:  AcceptSecuritySetup,
}

// AcceptSecuritySetup is the security-setup transition function.
func AcceptSecuritySetup(_ context.Context, current SecuritySetupState, event SecuritySetupEvent, _ SecurityStatusProvider) (SecuritySetupState, error) {
	switch s := current.(type) {
	case SecurityCreatePincode:
		switch e := event.(type) {
		case SecurityPincodeCreated:
			if !validPincode(e.Pincode) {
				return nil, ErrInvalidPincode
			}
			return SecurityConfirmPincode{Pincode: e.Pincode, Biometry: s.Biometry}, nil
		case SecuritySkip:
			return SecurityFinish{}, nil
		}

	case SecurityConfirmPincode:
		switch e := event.(type) {
		case SecurityPincodeConfirmed:
			if e.Pincode != s.Pincode {
				return SecurityConfirmPincode{Pincode: s.Pincode, Biometry: s.Biometry, Mismatch: true}, nil
			}
			if s.Biometry == BiometryNone {
				return finishSecurity(s.Pincode, false), nil
			}
			return SecuritySetBiometric{Pincode: s.Pincode, Biometry: s.Biometry}, nil
		case SecurityBack:
			return SecurityCreatePincode{Biometry: s.Biometry}, nil
		}

	case SecuritySetBiometric:
		switch e := event.(type) {
		case SecurityBiometricChosen:
			return finishSecurity(s.Pincode, e.Enabled), nil
		case SecuritySkip:
			return finishSecurity(s.Pincode, false), nil
		case SecurityBack:
			return SecurityCreatePincode{Biometry: s.Biometry}, nil
		}

	case SecurityFinish:
	}
	return nil, machine.Invalid(current, event)
}

func finishSecurity(pincode string, biometric bool) SecurityFinish {
	return SecurityFinish{Result: SecuritySetupResult{Pincode: &pincode, WithBiometric: biometric}}
}

func validPincode(p string) bool {
	if len(p) != 6 {
		return false
	}
	for i := 0; i < len(p); i++ {
		if p[i] < '0' || p[i] > '9' {
			return false
		}
	}
	return true
}
