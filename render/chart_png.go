package render

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Default PNG chart size.
const (
	DefaultChartWidth  = 640
	DefaultChartHeight = 240
)

// maxXTicks bounds the number of labelled ticks on the time axis.
const maxXTicks = 10

// ChartPNG draws c as a PNG line chart using the chart's own colours, so an
// alerted anomaly chart is drawn in red.
func ChartPNG(w io.Writer, c Chart, width, height int) error {
	if width <= 0 {
		width = DefaultChartWidth
	}
	if height <= 0 {
		height = DefaultChartHeight
	}

	xs, ys := chartPoints(c.Values)
	line := chart.ContinuousSeries{
		Name:    c.Title,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeColor: parseColor(c.BorderColor),
			StrokeWidth: 2,
			FillColor:   parseColor(c.BackgroundColor),
			DotColor:    parseColor(c.PointColor),
			DotWidth:    3,
		},
	}

	ch := chart.Chart{
		Title:      c.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 36, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: math.Max(float64(len(xs)-1), 1)},
			Ticks: timeTicks(c.Labels),
		},
		YAxis: chart.YAxis{Range: valueRange(ys)},
		Series: []chart.Series{line},
	}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s chart: %w", c.Metric, err)
	}
	return nil
}

// chartPoints indexes values along x. An empty series is drawn as a flat
// line at zero so the chart still renders.
func chartPoints(values []float64) ([]float64, []float64) {
	if len(values) == 0 {
		return []float64{0, 1}, []float64{0, 0}
	}
	if len(values) == 1 {
		return []float64{0, 1}, []float64{values[0], values[0]}
	}
	xs := make([]float64, len(values))
	for i := range values {
		xs[i] = float64(i)
	}
	return xs, values
}

// timeTicks labels the time axis. go-chart derives the x range from the
// ticks, so the newest index always gets a tick and a single label is
// padded out to [0, 1].
func timeTicks(labels []string) []chart.Tick {
	n := len(labels)
	switch n {
	case 0:
		return nil
	case 1:
		return []chart.Tick{{Value: 0, Label: labels[0]}, {Value: 1}}
	}
	step := (n + maxXTicks - 1) / maxXTicks
	ticks := make([]chart.Tick, 0, maxXTicks+1)
	for i := 0; i < n; i += step {
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: labels[i]})
	}
	last := n - 1
	if int(ticks[len(ticks)-1].Value) != last {
		// Drop a crowded neighbour so the two labels don't overlap.
		if step > 1 && last-int(ticks[len(ticks)-1].Value) < (step+1)/2 {
			ticks = ticks[:len(ticks)-1]
		}
		ticks = append(ticks, chart.Tick{Value: float64(last), Label: labels[last]})
	}
	return ticks
}

// valueRange pads flat data so the axis never has zero height.
func valueRange(ys []float64) *chart.ContinuousRange {
	lo, hi := ys[0], ys[0]
	for _, y := range ys[1:] {
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}
	if hi-lo < 1e-9 {
		lo, hi = lo-1, hi+1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

// parseColor extends drawing.ParseColor with the "#rrggbbaa" form used for
// chart backgrounds.
func parseColor(s string) drawing.Color {
	s = strings.TrimSpace(strings.ToLower(s))
	if strings.HasPrefix(s, "#") && len(s) == 9 {
		c := drawing.ParseColor(s[:7])
		if a, err := strconv.ParseUint(s[7:], 16, 8); err == nil {
			c = c.WithAlpha(uint8(a))
		}
		return c
	}
	return drawing.ParseColor(s)
}
