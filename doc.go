// Package walletflow hosts wallet onboarding flows: wallet creation and wallet
// restoration, each a hierarchical state machine from package onboarding.
//
// An [Engine] starts flows, routes events to them by flow ID, and persists a
// snapshot after every accepted transition so that a flow interrupted by a
// process restart resumes where it stopped. Engines are assembled with
// [Builder]; snapshots live in Redis or in any gocloud blob bucket.
//
// # Architecture boundaries
//
// walletflow is the public host surface. It exposes [Engine], [Builder],
// [Config], [FlowInfo] and metrics and audit types. Flow semantics live in
// onboarding and machine; snapshot encoding and audit dispatch live under
// internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Interpret flow states beyond step, continuable and terminal.
//   - Log or audit state contents; states carry seed phrases and key shares.
//   - Import any sub-package that re-imports walletflow (no import cycles).
package walletflow
