package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// ConnectivityResult is the outcome of probing the upstream stream.
type ConnectivityResult struct {
	Reachable bool
	Message   string
	Latency   time.Duration
	Error     error
}

// ConnectivityChecker opens and immediately closes a WebSocket to the
// stream URL.
type ConnectivityChecker struct {
	timeout time.Duration
}

func NewConnectivityChecker() *ConnectivityChecker {
	return &ConnectivityChecker{timeout: 5 * time.Second}
}

func (c *ConnectivityChecker) WithTimeout(timeout time.Duration) *ConnectivityChecker {
	c.timeout = timeout
	return c
}

// CheckStream dials streamURL. The caller treats an unreachable producer as
// a warning, since the producer may start after the viewer.
func (c *ConnectivityChecker) CheckStream(ctx context.Context, streamURL string) ConnectivityResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: c.timeout}

	start := time.Now()
	conn, resp, err := dialer.DialContext(ctx, streamURL, nil)
	latency := time.Since(start)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		msg := "Stream not reachable"
		if resp != nil {
			msg = fmt.Sprintf("Stream handshake rejected with HTTP %d", resp.StatusCode)
		}
		return ConnectivityResult{Reachable: false, Message: msg, Latency: latency, Error: err}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "validation probe"),
		time.Now().Add(time.Second))
	conn.Close()

	return ConnectivityResult{Reachable: true, Message: "Stream reachable", Latency: latency}
}
