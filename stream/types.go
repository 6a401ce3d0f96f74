// Package stream decodes the crowd-analytics wire format and reads it from
// the producer WebSocket.
package stream

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	// ErrMalformed wraps every decode failure. The message is discarded and
	// no state changes.
	ErrMalformed     = errors.New("malformed stream message")
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// Sample is one analytics reading from the producer.
type Sample struct {
	Timestamp    float64 `json:"timestamp"` // seconds
	Count        float64 `json:"crowd"`
	Density      float64 `json:"density"`
	Velocity     float64 `json:"velocity"`
	AnomalyScore float64 `json:"anomaly"`
	IsAnomaly    bool    `json:"is_anomaly"`
}

// Anomalous reports whether the sample raises an anomaly: the producer's
// flag, or a score above threshold when threshold is positive.
func (s Sample) Anomalous(threshold float64) bool {
	return s.IsAnomaly || (threshold > 0 && s.AnomalyScore > threshold)
}

// Frame holds the JPEG bytes of the latest video frame. An empty Frame
// means "no image" and clears the display.
type Frame []byte

// Empty reports whether the frame carries no image.
func (f Frame) Empty() bool { return len(f) == 0 }

// Message is a decoded stream message.
type Message struct {
	Frame        Frame
	Sample       Sample
	HasAnalytics bool // false when the analytics object was absent
	ReceivedAt   time.Time
}

// RawMessage is an undecoded text frame plus its local receive time.
type RawMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// ConnState is the upstream connection state shown on the dashboard.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateConnected
	StateDisconnected
	StateError
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state as its name in JSON.
func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *ConnState) UnmarshalText(text []byte) error {
	for _, st := range []ConnState{StateConnecting, StateConnected, StateDisconnected, StateError} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown connection state %q", text)
}
