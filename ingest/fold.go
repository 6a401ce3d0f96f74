package ingest

import (
	"crowdview/series"
	"crowdview/stream"
)

// Batch is the single state update produced from one drain.
type Batch struct {
	Series series.Set

	// Frame is the last message's frame. An empty frame clears the display.
	Frame stream.Frame

	// Latest is the last message's sample; it drives anomaly styling.
	Latest       stream.Sample
	HasAnalytics bool

	Applied         int // messages folded
	FramesDiscarded int // non-empty frames superseded within the batch
}

// Fold applies msgs in order to prev and keeps only the final frame.
// Every message appends one point to each series, with zeros when the
// analytics object was absent. Fold of an empty slice returns prev
// untouched with Applied == 0.
func Fold(prev series.Set, msgs []stream.Message, limit int) Batch {
	b := Batch{Series: prev}
	if len(msgs) == 0 {
		return b
	}

	for i, msg := range msgs {
		b.Series = b.Series.Apply(msg.Sample, limit)
		if i < len(msgs)-1 && !msg.Frame.Empty() {
			b.FramesDiscarded++
		}
	}

	last := msgs[len(msgs)-1]
	b.Frame = last.Frame
	b.Latest = last.Sample
	b.HasAnalytics = last.HasAnalytics
	b.Applied = len(msgs)
	return b
}
