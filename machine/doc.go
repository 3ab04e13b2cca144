// Package machine provides the generic state-machine driver used by every
// onboarding flow.
//
// A [Machine] owns one current state value and feeds it events through a
// flow-specific [Transition] function. It holds no domain knowledge: flows
// supply their own state, event and provider types through a [Definition].
//
// # Architecture boundaries
//
// This package owns state replacement, the one-transition-in-flight guard and
// the optional [Observer] hook. It does NOT persist states, interpret results,
// or know about composite flows. Persistence and routing live in the host
// engine and in package onboarding.
//
// # What this package must NOT do
//
//   - Import onboarding or the host engine (no upward imports).
//   - Mutate the current state when a transition fails.
//   - Queue events: a concurrent Accept fails fast with [ErrBusy].
package machine
