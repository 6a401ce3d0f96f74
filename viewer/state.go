// Package viewer runs the stream session: it owns the upstream client, the
// drain ticker and the committed view state.
package viewer

import (
	"time"

	"crowdview/series"
	"crowdview/stream"
)

// Counters are cumulative per-session totals.
type Counters struct {
	Received        uint64 `json:"received"`
	DecodeErrors    uint64 `json:"decode_errors"`
	Applied         uint64 `json:"applied"`
	Batches         uint64 `json:"batches"`
	FramesDiscarded uint64 `json:"frames_discarded"`
	Pending         int    `json:"pending"`
}

// ViewState is the committed state the dashboard renders from. Values are
// never mutated after commit; every update produces a new ViewState.
type ViewState struct {
	SessionID    string           `json:"session_id"`
	Connection   stream.ConnState `json:"connection"`
	Frame        stream.Frame     `json:"-"`
	Series       series.Set       `json:"series"`
	Latest       stream.Sample    `json:"latest"`
	HasAnalytics bool             `json:"has_analytics"`
	Counters     Counters         `json:"counters"`
	StartedAt    time.Time        `json:"started_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// HasFrame reports whether there is an image to show.
func (s ViewState) HasFrame() bool { return !s.Frame.Empty() }
