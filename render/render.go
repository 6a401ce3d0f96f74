// Package render turns committed view state into chart datasets and the
// dashboard view model.
package render

import (
	"errors"
	"fmt"
	"math"
	"time"

	"crowdview/frame"
	"crowdview/series"
	"crowdview/stream"
	"crowdview/viewer"
)

// AnomalyBanner is shown while the anomaly condition holds.
const AnomalyBanner = "Anomaly = true"

// Colours applied to the anomaly chart while the anomaly condition holds.
const (
	AlertBorderColor     = "red"
	AlertBackgroundColor = "rgba(255, 0, 0, 0.3)"
	AlertPointColor      = "red"
)

// ErrInvalidState is returned for state the view cannot be built from.
var ErrInvalidState = errors.New("render: invalid view state")

// ChartStyle is the default look of one metric chart.
type ChartStyle struct {
	Title string
	Color string // hex, "#rrggbb"
}

// Background is the colour at quarter opacity.
func (s ChartStyle) Background() string { return s.Color + "40" }

// DefaultPalette maps each metric to its title and colour.
var DefaultPalette = map[series.Metric]ChartStyle{
	series.Crowd:    {Title: "People Count", Color: "#36a2eb"},
	series.Velocity: {Title: "Movement Intensity", Color: "#ff6384"},
	series.Anomaly:  {Title: "Anomaly Score", Color: "#9966ff"},
	series.Density:  {Title: "Crowd Density", Color: "#4bc0c0"},
}

// Options controls rendering.
type Options struct {
	// Threshold raises the anomaly condition when the latest score exceeds
	// it. Zero disables the check.
	Threshold float64
	Palette   map[series.Metric]ChartStyle
}

// DefaultOptions returns the default palette with the threshold disabled.
func DefaultOptions() Options {
	return Options{Palette: DefaultPalette}
}

func (o Options) style(m series.Metric) ChartStyle {
	if s, ok := o.Palette[m]; ok {
		return s
	}
	return DefaultPalette[m]
}

// Chart is one line chart dataset.
type Chart struct {
	Metric          series.Metric `json:"metric"`
	Title           string        `json:"title"`
	Labels          []string      `json:"labels"`
	Values          []float64     `json:"values"`
	BorderColor     string        `json:"border_color"`
	BackgroundColor string        `json:"background_color"`
	PointColor      string        `json:"point_color"`
	Alert           bool          `json:"alert"`
}

// View is the complete dashboard view model.
type View struct {
	SessionID  string           `json:"session_id"`
	Connection stream.ConnState `json:"connection"`
	HasFrame   bool             `json:"has_frame"`
	Frame      string           `json:"frame,omitempty"` // data URI
	Charts     []Chart          `json:"charts"`
	Anomaly    bool             `json:"anomaly"`
	Banner     string           `json:"banner,omitempty"`
	Latest     stream.Sample    `json:"latest"`
	Counters   viewer.Counters  `json:"counters"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// IsAnomalous reports the anomaly condition for the latest sample.
func IsAnomalous(latest stream.Sample, threshold float64) bool {
	return latest.Anomalous(threshold)
}

// Render builds the view for state. Charts come straight from the current
// series; only the anomaly chart's colours depend on the anomaly condition.
func Render(state viewer.ViewState, opts Options) (View, error) {
	if err := checkState(state); err != nil {
		return View{}, err
	}

	anomaly := IsAnomalous(state.Latest, opts.Threshold)

	charts := make([]Chart, 0, len(series.Metrics))
	for _, m := range series.Metrics {
		s, _ := state.Series.Get(m)
		charts = append(charts, buildChart(m, s, opts.style(m), anomaly && m == series.Anomaly))
	}

	v := View{
		SessionID:  state.SessionID,
		Connection: state.Connection,
		HasFrame:   state.HasFrame(),
		Frame:      frame.DataURI(state.Frame),
		Charts:     charts,
		Anomaly:    anomaly,
		Latest:     state.Latest,
		Counters:   state.Counters,
		UpdatedAt:  state.UpdatedAt,
	}
	if anomaly {
		v.Banner = AnomalyBanner
	}
	return v, nil
}

func buildChart(m series.Metric, s series.Series, style ChartStyle, alert bool) Chart {
	c := Chart{
		Metric:          m,
		Title:           style.Title,
		Labels:          s.Labels,
		Values:          s.Values,
		BorderColor:     style.Color,
		BackgroundColor: style.Background(),
		PointColor:      style.Color,
		Alert:           alert,
	}
	if c.Labels == nil {
		c.Labels = []string{}
	}
	if c.Values == nil {
		c.Values = []float64{}
	}
	if alert {
		c.BorderColor = AlertBorderColor
		c.BackgroundColor = AlertBackgroundColor
		c.PointColor = AlertPointColor
	}
	return c
}

// checkState rejects state that cannot be drawn: mismatched series or
// non-finite values, which the JSON encoder would refuse.
func checkState(state viewer.ViewState) error {
	for _, m := range series.Metrics {
		s, _ := state.Series.Get(m)
		if len(s.Labels) != len(s.Values) {
			return fmt.Errorf("%w: %s has %d labels and %d values", ErrInvalidState, m, len(s.Labels), len(s.Values))
		}
		for i, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s[%d] is not finite", ErrInvalidState, m, i)
			}
		}
	}
	return nil
}
