// Package internal holds the parts of walletflow that are not public API.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - fakes: scripted onboarding collaborators for tests and the CLI simulator
//   - stores: flow snapshot persistence on Redis and cloud blob buckets
//   - union: tagged-union JSON codec for flow states
//
// # What this package must NOT do
//
//   - Export types that appear in the public walletflow API.
//   - Be imported by any package outside the walletflow module.
package internal
