package stream

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// wireMessage is the producer's JSON envelope:
//
//	{"frame": "<base64 JPEG or empty>",
//	 "analytics": {"crowd": 5, "density": 0.2, "velocity": 1.2,
//	               "anomaly": 0.1, "timestamp": 10, "is_anomaly": false}}
type wireMessage struct {
	Frame     *string `json:"frame"`
	Analytics *Sample `json:"analytics"`
}

// Decode parses one stream message. Any failure, including a bad base64
// frame or a field of the wrong JSON type, returns an error wrapping
// ErrMalformed and no partial result.
func Decode(raw []byte) (Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Message{}, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	var wire wireMessage
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg Message
	if wire.Frame != nil && *wire.Frame != "" {
		jpeg, err := decodeFrame(*wire.Frame)
		if err != nil {
			return Message{}, fmt.Errorf("%w: frame: %v", ErrMalformed, err)
		}
		msg.Frame = jpeg
	}
	if wire.Analytics != nil {
		msg.Sample = *wire.Analytics
		msg.HasAnalytics = true
	}
	return msg, nil
}

// decodeFrame accepts plain base64 (padded or not) and data URIs such as
// "data:image/jpeg;base64,...".
func decodeFrame(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, fmt.Errorf("data URI without payload")
		}
		s = s[comma+1:]
	}
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// Encode produces the wire form of a frame and sample. The stream simulator
// and tests use it to generate producer traffic.
func Encode(frame []byte, sample Sample) ([]byte, error) {
	f := base64.StdEncoding.EncodeToString(frame)
	return json.Marshal(wireMessage{Frame: &f, Analytics: &sample})
}
