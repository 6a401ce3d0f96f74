package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crowdview/logging"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ClientConfig configures the upstream WebSocket client.
type ClientConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	BufferSize       int   // capacity of the Messages channel
	ReadLimit        int64 // maximum message size in bytes; 0 means 8 MiB
}

const defaultReadLimit = 8 << 20

// Client is a read-only WebSocket connection to the analytics producer.
// Text frames are delivered on Messages in arrival order. The client never
// reconnects; after a read error it stays down until a new Client is made.
type Client struct {
	cfg    ClientConfig
	logger *zap.Logger

	conn *websocket.Conn

	messages chan RawMessage
	errors   chan error
	done     chan struct{}

	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewClient creates a client. Connect must be called before messages flow.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}

	return &Client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan RawMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect dials the producer and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrAlreadyClosed
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		ReadBufferSize:   64 << 10,
	}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("stream handshake failed with HTTP %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("stream dial failed: %w", err)
	}
	conn.SetReadLimit(c.cfg.ReadLimit)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)

	c.logger.Info("stream connected", zap.String("stream_url", logging.RedactURL(c.cfg.URL)))
	return nil
}

// Close sends a normal closure and shuts the socket. It is safe to call more
// than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	close(c.done)

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

// Messages returns the channel of raw text frames.
func (c *Client) Messages() <-chan RawMessage {
	return c.messages
}

// Errors delivers at most one terminal read error.
func (c *Client) Errors() <-chan error {
	return c.errors
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			select {
			case <-c.done:
				// Errors after Close are expected.
			default:
				select {
				case c.errors <- err:
				default:
				}
			}
			return
		}
		if msgType != websocket.TextMessage {
			c.logger.Debug("ignoring non-text frame", zap.Int("type", msgType))
			continue
		}

		// Block rather than drop: every message must reach the queue in order.
		select {
		case c.messages <- RawMessage{Data: data, ReceivedAt: receivedAt}:
		case <-c.done:
			return
		}
	}
}

// StateForError classifies a terminal read error. A clean close from the
// producer is a disconnect; anything else is an error.
func StateForError(err error) ConnState {
	if err == nil {
		return StateDisconnected
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return StateDisconnected
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNoStatusReceived {
		return StateDisconnected
	}
	return StateError
}
