package walletflow

import "errors"

var (
	// ErrFlowNotFound is returned when no live machine or snapshot exists for a flow ID.
	ErrFlowNotFound = errors.New("flow not found")
	// ErrFlowKindMismatch is returned when a flow ID is addressed with the wrong flow type.
	ErrFlowKindMismatch = errors.New("flow kind mismatch")
	// ErrFlowConflict is returned when another writer advanced the flow's snapshot first.
	ErrFlowConflict = errors.New("flow snapshot revision conflict")
	// ErrSnapshotUnavailable is returned when the snapshot backend cannot be reached.
	ErrSnapshotUnavailable = errors.New("snapshot backend unavailable")
	// ErrSnapshotCorrupt is returned when a persisted snapshot cannot be decoded.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
	// ErrProviderNotConfigured is returned when a flow type has no collaborators bound.
	ErrProviderNotConfigured = errors.New("flow provider not configured")
	// ErrEngineNotReady is returned by methods called on a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidConfig wraps every Config.Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
)
