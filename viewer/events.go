package viewer

import (
	"time"

	"crowdview/stream"
)

// EventType names a session lifecycle event.
type EventType string

const (
	EventConnected      EventType = "connected"
	EventDisconnected   EventType = "disconnected"
	EventSocketError    EventType = "socket_error"
	EventDecodeError    EventType = "decode_error"
	EventAnomalyRaised  EventType = "anomaly_raised"
	EventAnomalyCleared EventType = "anomaly_cleared"
)

// Event is one entry in the session event log.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time"`
}

// EventHandler receives session events on the session's event loop. It
// must not block.
type EventHandler func(Event)

// Recorder receives session counters, typically Prometheus metrics.
type Recorder interface {
	MessageReceived()
	DecodeError()
	BatchCommitted(applied, framesDiscarded int)
	QueueDepth(n int)
	ConnectionChanged(state stream.ConnState)
}

type nopRecorder struct{}

func (nopRecorder) MessageReceived() {}
func (nopRecorder) DecodeError() {}
func (nopRecorder) BatchCommitted(int, int) {}
func (nopRecorder) QueueDepth(int) {}
func (nopRecorder) ConnectionChanged(stream.ConnState) {}
