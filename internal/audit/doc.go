// Package audit implements async event dispatching for flow lifecycle events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zerolog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, flow id, from/to variants and step.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; the walletflow Engine does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on flow logic.
//   - Import walletflow or any sibling internal package.
//   - Record secrets carried by flow states (seed phrases, shares, pincodes).
package audit
