package series

import "crowdview/stream"

// Metric names a charted series.
type Metric string

const (
	Crowd    Metric = "crowd"
	Density  Metric = "density"
	Velocity Metric = "velocity"
	Anomaly  Metric = "anomaly"
)

// Metrics lists the charted metrics in display order.
var Metrics = []Metric{Crowd, Velocity, Anomaly, Density}

// Valid reports whether m names a known metric.
func (m Metric) Valid() bool {
	switch m {
	case Crowd, Density, Velocity, Anomaly:
		return true
	}
	return false
}

// Set is the four metric series sharing one time axis.
type Set struct {
	Crowd    Series `json:"crowd"`
	Density  Series `json:"density"`
	Velocity Series `json:"velocity"`
	Anomaly  Series `json:"anomaly"`
}

// Apply returns a new Set with sample appended to every series. The
// receiver is left unchanged.
func (s Set) Apply(sample stream.Sample, limit int) Set {
	label := FormatTimestamp(sample.Timestamp)
	return Set{
		Crowd:    Append(s.Crowd, label, sample.Count, limit),
		Density:  Append(s.Density, label, sample.Density, limit),
		Velocity: Append(s.Velocity, label, sample.Velocity, limit),
		Anomaly:  Append(s.Anomaly, label, sample.AnomalyScore, limit),
	}
}

// Get returns the series for m and whether m is known.
func (s Set) Get(m Metric) (Series, bool) {
	switch m {
	case Crowd:
		return s.Crowd, true
	case Density:
		return s.Density, true
	case Velocity:
		return s.Velocity, true
	case Anomaly:
		return s.Anomaly, true
	}
	return Series{}, false
}

// Len returns the shared length of the series.
func (s Set) Len() int { return s.Crowd.Len() }
