// Package series holds the bounded rolling chart series, one per metric.
package series

import (
	"fmt"
	"math"
)

// DefaultLimit is the number of points each series keeps.
const DefaultLimit = 50

// Series is a bounded chart series. Labels and Values always have equal
// length and correspond index by index, oldest first.
type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Values) }

// Append returns a new series with (label, value) added at the end and the
// oldest points dropped so that at most limit remain. prev is never
// modified. A limit below 1 is treated as 1.
func Append(prev Series, label string, value float64, limit int) Series {
	if limit < 1 {
		limit = 1
	}
	n := len(prev.Values) + 1
	drop := 0
	if n > limit {
		drop = n - limit
	}

	labels := make([]string, 0, n-drop)
	values := make([]float64, 0, n-drop)
	labels = append(labels, prev.Labels[drop:]...)
	values = append(values, prev.Values[drop:]...)

	return Series{
		Labels: append(labels, label),
		Values: append(values, value),
	}
}

// Last returns the most recent value, or false when empty.
func (s Series) Last() (float64, bool) {
	if len(s.Values) == 0 {
		return 0, false
	}
	return s.Values[len(s.Values)-1], true
}

// FormatTimestamp renders seconds as MM:SS. Minutes are not wrapped at 60,
// so 3725 seconds is "62:05". Negative and non-finite input clamp to 0.
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
