package main

import (
	"bytes"
	"image/jpeg"
	"testing"
	"time"

	"crowdview/stream"
)

func TestGenerator_MessagesDecode(t *testing.T) {
	start := time.Unix(1700000000, 0)
	g := newGenerator(64, 32, 20, start)

	var anomalies int
	for i := 0; i < 40; i++ {
		data, err := g.next(start.Add(time.Duration(i)*100*time.Millisecond), true)
		if err != nil {
			t.Fatalf("next() error: %v", err)
		}
		msg, err := stream.Decode(data)
		if err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if !msg.HasAnalytics || msg.Sample.Count < 0 {
			t.Errorf("message %d analytics = %+v", i, msg.Sample)
		}
		img, err := jpeg.Decode(bytes.NewReader(msg.Frame))
		if err != nil {
			t.Fatalf("frame %d is not a JPEG: %v", i, err)
		}
		if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
			t.Errorf("frame size = %v", img.Bounds().Size())
		}
		if msg.Sample.IsAnomaly {
			anomalies++
			if msg.Sample.AnomalyScore < 0.85 {
				t.Errorf("anomalous score = %v, want >= 0.85", msg.Sample.AnomalyScore)
			}
		}
	}
	if anomalies != 2*anomalyLength {
		t.Errorf("anomalies = %d, want %d", anomalies, 2*anomalyLength)
	}
}

func TestGenerator_NoFrames(t *testing.T) {
	g := newGenerator(64, 32, 0, time.Now())
	data, err := g.next(time.Now(), false)
	if err != nil {
		t.Fatalf("next() error: %v", err)
	}
	msg, err := stream.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if !msg.Frame.Empty() || msg.Sample.IsAnomaly {
		t.Errorf("frame = %d bytes anomaly = %v, want empty and normal", len(msg.Frame), msg.Sample.IsAnomaly)
	}
}
