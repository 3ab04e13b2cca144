// Package stores persists flow snapshots for the walletflow host.
//
// # Design
//
// A snapshot is a versioned, binary-encoded record: header fields an
// operator can read without knowing the flow (kind, revision, step,
// continuable, terminal, timestamps) followed by the flow's state JSON.
// Every Save carries the next revision; a store accepts it only when the
// stored revision is exactly one behind. The Redis store enforces this with
// WATCH/MULTI transactions retried on contention; the blob store enforces
// it per process.
//
// # Architecture boundaries
//
// This package owns encoding and concurrency control for snapshot records.
// It does NOT decode flow states, choose TTLs, or decide when to persist;
// the walletflow Engine does.
//
// # What this package must NOT do
//
//   - Import walletflow, onboarding, or any sibling internal package.
//   - Log snapshot contents; states carry seed phrases and key shares.
package stores
