package stream

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func TestDecode_CanonicalMessage(t *testing.T) {
	raw := []byte(`{"frame":"","analytics":{"crowd":5,"velocity":1.2,"anomaly":0.1,"timestamp":10,"is_anomaly":false}}`)

	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !msg.Frame.Empty() {
		t.Errorf("Frame = %d bytes, want empty", len(msg.Frame))
	}
	if !msg.HasAnalytics {
		t.Fatal("HasAnalytics = false")
	}
	want := Sample{Timestamp: 10, Count: 5, Velocity: 1.2, AnomalyScore: 0.1}
	if msg.Sample != want {
		t.Errorf("Sample = %+v, want %+v", msg.Sample, want)
	}
}

func TestDecode_Frame(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	enc := base64.StdEncoding.EncodeToString(jpeg)

	tests := []struct {
		name  string
		frame string
	}{
		{"padded base64", enc},
		{"unpadded base64", base64.RawStdEncoding.EncodeToString(jpeg)},
		{"data uri", "data:image/jpeg;base64," + enc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(`{"frame":"` + tt.frame + `"}`))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !bytes.Equal(msg.Frame, jpeg) {
				t.Errorf("Frame = %x, want %x", []byte(msg.Frame), jpeg)
			}
			if msg.HasAnalytics {
				t.Error("HasAnalytics = true for message without analytics")
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"truncated json", `{bad json`},
		{"empty", ``},
		{"null", `null`},
		{"array", `[1,2]`},
		{"string timestamp", `{"analytics":{"crowd":1,"timestamp":"00:10"}}`},
		{"string crowd", `{"analytics":{"crowd":"many"}}`},
		{"bool anomaly flag as string", `{"analytics":{"is_anomaly":"yes"}}`},
		{"frame not base64", `{"frame":"!!!not-base64!!!","analytics":{"crowd":1}}`},
		{"frame wrong type", `{"frame":42}`},
		{"data uri without payload", `{"frame":"data:image/jpeg;base64"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.raw))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("Decode(%q) error = %v, want ErrMalformed", tt.raw, err)
			}
			if !msg.Frame.Empty() || msg.HasAnalytics {
				t.Errorf("Decode(%q) returned partial message %+v", tt.raw, msg)
			}
		})
	}
}

func TestDecode_IgnoresCountKeyAndUnknownFields(t *testing.T) {
	msg, err := Decode([]byte(`{"analytics":{"count":9,"density":0.4,"extra":"x"},"meta":{}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msg.Sample.Count != 0 {
		t.Errorf("Count = %v, want 0 (count key is not read)", msg.Sample.Count)
	}
	if msg.Sample.Density != 0.4 {
		t.Errorf("Density = %v, want 0.4", msg.Sample.Density)
	}
}

func TestEncode_DecodesBack(t *testing.T) {
	sample := Sample{Timestamp: 75.5, Count: 12, Density: 0.3, Velocity: 2.1, AnomalyScore: 0.9, IsAnomaly: true}
	raw, err := Encode([]byte("jpegdata"), sample)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msg.Sample != sample || string(msg.Frame) != "jpegdata" {
		t.Errorf("Decode(Encode()) = %+v", msg)
	}
}

func TestConnState_String(t *testing.T) {
	tests := map[ConnState]string{
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateDisconnected: "disconnected",
		StateError:        "error",
		ConnState(42):     "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("ConnState(%d).String() = %q, want %q", int(s), got, want)
		}
		text, _ := s.MarshalText()
		if string(text) != want {
			t.Errorf("MarshalText() = %q, want %q", text, want)
		}
	}
}

func TestConnState_JSONRoundTrip(t *testing.T) {
	for _, s := range []ConnState{StateConnecting, StateConnected, StateDisconnected, StateError} {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("Marshal(%v) error: %v", s, err)
		}
		var got ConnState
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", data, err)
		}
		if got != s {
			t.Errorf("round trip of %v = %v", s, got)
		}
	}

	var s ConnState
	if err := s.UnmarshalText([]byte("unknown")); err == nil {
		t.Error(`UnmarshalText("unknown") error = nil, want error`)
	}
}
