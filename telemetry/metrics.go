package telemetry

// Broadcast metrics
var (
	// MessagesPublishedTotal counts messages handed to the publisher.
	MessagesPublishedTotal Counter = NoopStat{}

	// MessageDeliveriesTotal counts per-subscriber sends by result (success, failure).
	MessageDeliveriesTotal CounterVec = noopCounterVec{}

	// ConnectionsClosedTotal counts server-initiated closures by reason
	// (inactivity, send_failure).
	ConnectionsClosedTotal CounterVec = noopCounterVec{}
)
