package events

// Event enumerates high-level topics inside the signal bridge.
type Event string

const (
	EventSignalReceived     Event = "signal.received"
	EventOrderPlaced        Event = "order.placed"
	EventExecutionCompleted Event = "execution.completed"
	EventAuditWriteFailed   Event = "audit.write_failed"
)
