package main

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"math/rand/v2"
	"time"

	xdraw "golang.org/x/image/draw"

	"crowdview/stream"
)

// generator produces a smooth synthetic crowd with periodic anomaly bursts.
type generator struct {
	width, height int
	anomalyEvery  int
	start         time.Time
	seq           int
	rng           *rand.Rand
}

// anomalyLength is how many consecutive messages an anomaly lasts.
const anomalyLength = 12

func newGenerator(width, height, anomalyEvery int, start time.Time) *generator {
	return &generator{
		width:        width,
		height:       height,
		anomalyEvery: anomalyEvery,
		start:        start,
		rng:          rand.New(rand.NewPCG(uint64(start.UnixNano()), 7)),
	}
}

func (g *generator) inAnomaly() bool {
	if g.anomalyEvery <= 0 {
		return false
	}
	return g.seq%g.anomalyEvery >= g.anomalyEvery-anomalyLength
}

// sample returns the analytics for the current sequence number.
func (g *generator) sample(now time.Time) stream.Sample {
	t := now.Sub(g.start).Seconds()
	anomalous := g.inAnomaly()

	count := 40 + 15*math.Sin(t/20) + g.rng.NormFloat64()*2
	velocity := 1.2 + 0.3*math.Sin(t/7) + g.rng.NormFloat64()*0.05
	score := 0.1 + 0.05*g.rng.Float64()
	if anomalous {
		count *= 1.8
		velocity *= 3
		score = 0.85 + 0.1*g.rng.Float64()
	}
	count = math.Max(0, math.Round(count))

	return stream.Sample{
		Timestamp:    float64(now.UnixMilli()) / 1000,
		Count:        count,
		Density:      math.Round(count/float64(g.width*g.height)*1e6) / 100,
		Velocity:     math.Round(velocity*100) / 100,
		AnomalyScore: math.Round(score*100) / 100,
		IsAnomaly:    anomalous,
	}
}

// frame draws one dot per person at a quarter of the target size, then
// scales it up so the output looks like a blurred camera feed.
func (g *generator) frame(s stream.Sample) ([]byte, error) {
	small := image.NewRGBA(image.Rect(0, 0, max(g.width/4, 4), max(g.height/4, 4)))
	bg := color.RGBA{30, 35, 45, 255}
	if s.IsAnomaly {
		bg = color.RGBA{70, 25, 30, 255}
	}
	xdraw.Draw(small, small.Bounds(), &image.Uniform{bg}, image.Point{}, xdraw.Src)

	b := small.Bounds()
	drift := float64(g.seq) * s.Velocity
	for i := 0; i < int(s.Count); i++ {
		x := (int(float64(i*37)+drift) % b.Dx())
		y := (i * 53) % b.Dy()
		small.Set(x, y, color.RGBA{240, 220, 120, 255})
	}

	out := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), small, small.Bounds(), xdraw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 70}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// next builds the wire message for now and advances the sequence.
func (g *generator) next(now time.Time, withFrame bool) ([]byte, error) {
	s := g.sample(now)
	var frame []byte
	if withFrame {
		var err error
		if frame, err = g.frame(s); err != nil {
			return nil, err
		}
	}
	g.seq++
	return stream.Encode(frame, s)
}
