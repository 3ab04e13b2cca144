package walletflow

import (
	"io"

	"github.com/MrEthical07/walletflow/internal/audit"
	"github.com/rs/zerolog"
)

// AuditEvent is one flow lifecycle record delivered to an AuditSink.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// Audit event types.
const (
	AuditFlowStarted    = audit.EventFlowStarted
	AuditFlowTransition = audit.EventFlowTransition
	AuditFlowRejected   = audit.EventFlowRejected
	AuditFlowFailed     = audit.EventFlowFailed
	AuditFlowFinished   = audit.EventFlowFinished
	AuditFlowDiscarded  = audit.EventFlowDiscarded
)

type NoOpSink = audit.NoOpSink

type ChannelSink = audit.ChannelSink

// NewChannelSink buffers events in a channel read through Events.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

type JSONWriterSink = audit.JSONWriterSink

// NewJSONWriterSink writes one JSON object per event line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

type LogSink = audit.LogSink

// NewLogSink writes events as structured zerolog lines.
func NewLogSink(log zerolog.Logger) *LogSink {
	return audit.NewLogSink(log)
}
