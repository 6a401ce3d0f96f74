// Package webui serves the crowdview dashboard: the embedded single-page
// UI, its JSON API and the browser WebSocket.
// This file contains WebSocket message types and constants.
package webui

import (
	"time"

	"crowdview/render"
	"crowdview/stream"
	"crowdview/viewer"
)

// Message type constants for dashboard WebSocket communication.
const (
	// MessageTypeInitial carries the current render result on connection.
	MessageTypeInitial = "initial"

	// MessageTypeViewUpdate carries a new render result after a commit.
	MessageTypeViewUpdate = "view_update"

	// MessageTypeStatus indicates an upstream connection state change.
	MessageTypeStatus = "status"

	// MessageTypeError carries a server-side error.
	MessageTypeError = "error"
)

// WSMessage is the envelope for all dashboard WebSocket messages.
type WSMessage struct {
	// Type identifies the message kind (use MessageType* constants)
	Type string `json:"type"`

	// Timestamp is when the message was created
	Timestamp time.Time `json:"timestamp"`

	// Data contains the type-specific payload
	Data any `json:"data,omitempty"`
}

// NewWSMessage creates a message stamped with the current time.
func NewWSMessage(msgType string, data any) WSMessage {
	return WSMessage{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// StatusData reports the upstream connection.
type StatusData struct {
	SessionID  string           `json:"session_id"`
	Connection stream.ConnState `json:"connection"`
	Counters   viewer.Counters  `json:"counters"`
}

// ErrorData contains error information sent to clients.
type ErrorData struct {
	// Code is an application-specific error code
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`
}

// NewInitialMessage wraps the render result sent to a new client.
func NewInitialMessage(res render.Result) WSMessage {
	return NewWSMessage(MessageTypeInitial, res)
}

// NewViewUpdateMessage wraps a render result produced by a commit.
func NewViewUpdateMessage(res render.Result) WSMessage {
	return NewWSMessage(MessageTypeViewUpdate, res)
}

// NewStatusMessage creates a connection status message.
func NewStatusMessage(state viewer.ViewState) WSMessage {
	return NewWSMessage(MessageTypeStatus, StatusData{
		SessionID:  state.SessionID,
		Connection: state.Connection,
		Counters:   state.Counters,
	})
}

// NewErrorMessage creates an error message.
func NewErrorMessage(code, message string) WSMessage {
	return NewWSMessage(MessageTypeError, ErrorData{Code: code, Message: message})
}
