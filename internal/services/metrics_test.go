package services

import "testing"

func TestMetricsNilReceiverSafe(t *testing.T) {
	// Before InitMetrics runs, GetMetrics returns nil; every Record method
	// must be a no-op rather than a panic.
	var m *Metrics

	m.RecordWebSocketConnect()
	m.RecordWebSocketDisconnect()
	m.RecordWebSocketMessage("chat_message", "inbound")
	m.RecordSessionCreated("created")
	m.RecordEventAppended(0.01)
	m.RecordAppendFailure()
	m.RecordReconstructionSkips(3)
	m.RecordMessageSaved("user")
	m.RecordMessageDeduplicated()
}
