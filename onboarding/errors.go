package onboarding

import "errors"

var (
	// ErrNotImplemented is returned by every event on the seed-phrase restore path.
	ErrNotImplemented = errors.New("seed phrase sign-in is not implemented")
	// ErrInvalidPincode is returned when a submitted PIN is not six digits.
	ErrInvalidPincode = errors.New("pincode must be six digits")
	// ErrNoRequestKey is returned when a restore request key cannot be generated.
	ErrNoRequestKey = errors.New("restore request key unavailable")
)
