package onboarding

import (
	"context"

	"github.com/MrEthical07/walletflow/machine"
)

// None is the provider of flows that make no remote calls.
type None struct{}

// BindingPhoneData is the secret-share payload carried through phone
// binding. The flow never reads it.
type BindingPhoneData struct {
	SolanaPublicKey string `json:"solana_public_key"`
	EthereumID      string `json:"ethereum_id"`
	CustomShare     string `json:"custom_share"`
	Payload         string `json:"payload"`
}

// BindingPhoneResult is the terminal payload of phone binding.
type BindingPhoneResult string

const BindingPhoneSuccess BindingPhoneResult = "success"

// BindingPhoneState is one of BindingPhoneEnterNumber, BindingPhoneEnterOTP
// or BindingPhoneFinish.
type BindingPhoneState interface {
	machine.Stepper
	machine.Continuable
	isBindingPhoneState()
}

type BindingPhoneEnterNumber struct {
	InitialPhone *string          `json:"initial_phone"`
	Data         BindingPhoneData `json:"data"`
}

type BindingPhoneEnterOTP struct {
	Phone string           `json:"phone"`
	Data  BindingPhoneData `json:"data"`
}

type BindingPhoneFinish struct {
	Result BindingPhoneResult `json:"result"`
}

func (BindingPhoneEnterNumber) isBindingPhoneState() {}
func (BindingPhoneEnterOTP) isBindingPhoneState()    {}
func (BindingPhoneFinish) isBindingPhoneState()      {}

func (BindingPhoneEnterNumber) Step() float64 { return 1 }
func (BindingPhoneEnterOTP) Step() float64    { return 2 }
func (BindingPhoneFinish) Step() float64      { return 3 }

func (BindingPhoneEnterNumber) Continuable() bool { return true }
func (BindingPhoneEnterOTP) Continuable() bool    { return true }
func (BindingPhoneFinish) Continuable() bool      { return false }

// BindingPhoneEvent is one of BindingPhoneSubmitNumber, BindingPhoneSubmitOTP
// or BindingPhoneBack.
type BindingPhoneEvent interface {
	isBindingPhoneEvent()
}

type BindingPhoneSubmitNumber struct {
	Phone string
}

type BindingPhoneSubmitOTP struct {
	OTP string
}

type BindingPhoneBack struct{}

func (BindingPhoneSubmitNumber) isBindingPhoneEvent() {}
func (BindingPhoneSubmitOTP) isBindingPhoneEvent()    {}
func (BindingPhoneBack) isBindingPhoneEvent()         {}

// NewBindingPhone returns the first state of phone binding seeded with data.
func NewBindingPhone(data BindingPhoneData) BindingPhoneState {
	return BindingPhoneEnterNumber{Data: data}
}

// BindingPhoneFlow binds a phone number to a freshly created wallet. Phone
// validation happens upstream, so no step makes a remote call.
var BindingPhoneFlow = machine.Definition[BindingPhoneState, BindingPhoneEvent, None]{
	Name: "binding_phone",
	Initial: func(context.Context, None) (BindingPhoneState, error) {
		return NewBindingPhone(BindingPhoneData{}), nil
	},
	Accept: AcceptBindingPhone,
}

// AcceptBindingPhone is the phone-binding transition function.
func AcceptBindingPhone(_ context.Context, current BindingPhoneState, event BindingPhoneEvent, _ None) (BindingPhoneState, error) {
	switch s := current.(type) {
	case BindingPhoneEnterNumber:
		if e, ok := event.(BindingPhoneSubmitNumber); ok {
			return BindingPhoneEnterOTP{Phone: e.Phone, Data: s.Data}, nil
		}
	case BindingPhoneEnterOTP:
		switch event.(type) {
		case BindingPhoneSubmitOTP:
			return BindingPhoneFinish{Result: BindingPhoneSuccess}, nil
		case BindingPhoneBack:
			phone := s.Phone
			return BindingPhoneEnterNumber{InitialPhone: &phone, Data: s.Data}, nil
		}
	case BindingPhoneFinish:
	}
	return nil, machine.Invalid(current, event)
}
