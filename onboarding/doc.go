// Package onboarding implements the wallet onboarding flows as closed state
// machines driven by package machine.
//
// Leaf flows (binding phone, security setup, social sign-in, restore custom)
// own their own state, event and result unions. Composite flows (create
// wallet, restore wallet) embed a leaf state as a field of one of their own
// variants, route sub-events into it, and map a leaf's terminal result to
// their next macro-state.
//
// # Architecture boundaries
//
// Transition functions receive every collaborator through a provider struct.
// Remote calls happen only at the collaborator boundary; everything between
// them is a pure function of the current state and the event.
//
// # What this package must NOT do
//
//   - Hold mutable state outside the state values and the provider.
//   - Persist anything: states are serialized by the caller with the
//     Marshal/Unmarshal helpers in codec.go.
//   - Swallow unknown variants: every type switch ends in an invalid-event error.
package onboarding
