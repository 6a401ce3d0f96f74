package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketBroadcaster manages dashboard WebSocket clients and fans out
// messages to all of them.
//
// Registration, removal and broadcast run on the Start loop. Each client
// has its own write pump, which is the only goroutine writing to that
// connection.
type WebSocketBroadcaster struct {
	clients   map[string]*wsClient
	clientsMu sync.RWMutex

	broadcast  chan WSMessage
	register   chan *wsClient
	unregister chan *wsClient
	stopped    chan struct{}

	upgrader websocket.Upgrader

	pingInterval   time.Duration
	pongWait       time.Duration
	writeWait      time.Duration
	maxMessageSize int64
	sendBufferSize int

	initial       func() WSMessage
	onCountChange func(int)

	logger *zap.Logger
}

type wsClient struct {
	id          string
	conn        *websocket.Conn
	remoteAddr  string
	connectedAt time.Time
	send        chan []byte
}

// BroadcasterConfig holds configuration for the WebSocketBroadcaster
type BroadcasterConfig struct {
	// PingInterval is how often to send ping messages (default: 30s)
	PingInterval time.Duration

	// PongWait is how long to wait for pong response (default: 60s)
	PongWait time.Duration

	// WriteWait is time allowed to write a message (default: 10s)
	WriteWait time.Duration

	// MaxMessageSize is max message size from client (default: 512 bytes)
	MaxMessageSize int64

	// BroadcastBufferSize is the broadcast channel buffer (default: 256)
	BroadcastBufferSize int

	// ClientSendBufferSize is per-client send buffer (default: 64)
	ClientSendBufferSize int

	// Initial builds the message sent to each new client before any
	// broadcast. Optional.
	Initial func() WSMessage

	// OnClientCountChange is called with the new client count. Optional.
	OnClientCountChange func(int)
}

// DefaultBroadcasterConfig returns the default configuration
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		PingInterval:         30 * time.Second,
		PongWait:             60 * time.Second,
		WriteWait:            10 * time.Second,
		MaxMessageSize:       512,
		BroadcastBufferSize:  256,
		ClientSendBufferSize: 64,
	}
}

// NewWebSocketBroadcaster creates a broadcaster. Call Start to begin
// processing messages.
func NewWebSocketBroadcaster(config BroadcasterConfig, logger *zap.Logger) *WebSocketBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultBroadcasterConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = def.PingInterval
	}
	if config.PongWait <= 0 {
		config.PongWait = def.PongWait
	}
	if config.WriteWait <= 0 {
		config.WriteWait = def.WriteWait
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = def.MaxMessageSize
	}
	if config.BroadcastBufferSize <= 0 {
		config.BroadcastBufferSize = def.BroadcastBufferSize
	}
	if config.ClientSendBufferSize <= 0 {
		config.ClientSendBufferSize = def.ClientSendBufferSize
	}

	return &WebSocketBroadcaster{
		clients:        make(map[string]*wsClient),
		broadcast:      make(chan WSMessage, config.BroadcastBufferSize),
		register:       make(chan *wsClient),
		unregister:     make(chan *wsClient),
		stopped:        make(chan struct{}),
		pingInterval:   config.PingInterval,
		pongWait:       config.PongWait,
		writeWait:      config.WriteWait,
		maxMessageSize: config.MaxMessageSize,
		sendBufferSize: config.ClientSendBufferSize,
		initial:        config.Initial,
		onCountChange:  config.OnClientCountChange,
		logger:         logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 << 10,
			// Same-origin deployment; the dashboard has no credentials to protect.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Start runs the broadcast loop until ctx is cancelled, then closes every
// client.
func (b *WebSocketBroadcaster) Start(ctx context.Context) {
	defer close(b.stopped)
	b.logger.Debug("broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.closeAllClients()
			b.logger.Debug("broadcaster stopped")
			return

		case c := <-b.register:
			b.addClient(c)

		case c := <-b.unregister:
			b.removeClient(c)

		case msg := <-b.broadcast:
			b.broadcastToAll(msg)
		}
	}
}

// HandleConnection upgrades the request and registers the client.
func (b *WebSocketBroadcaster) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	conn.SetReadLimit(b.maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(b.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(b.pongWait))
	})

	c := &wsClient{
		id:          uuid.NewString(),
		conn:        conn,
		remoteAddr:  r.RemoteAddr,
		connectedAt: time.Now(),
		send:        make(chan []byte, b.sendBufferSize),
	}

	select {
	case b.register <- c:
	case <-b.stopped:
		conn.Close()
		return
	}

	go b.writePump(c)
	go b.readPump(c)
}

// BroadcastMessage queues msg for every client. It never blocks; when the
// broadcast buffer is full the message is dropped.
func (b *WebSocketBroadcaster) BroadcastMessage(msg WSMessage) {
	select {
	case b.broadcast <- msg:
	default:
		b.logger.Warn("broadcast buffer full, dropping message", zap.String("type", msg.Type))
	}
}

// BroadcastError broadcasts an error message to all clients.
func (b *WebSocketBroadcaster) BroadcastError(code, message string) {
	b.BroadcastMessage(NewErrorMessage(code, message))
}

// ClientCount returns the current number of connected clients.
func (b *WebSocketBroadcaster) ClientCount() int {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	return len(b.clients)
}

func (b *WebSocketBroadcaster) addClient(c *wsClient) {
	// The initial snapshot is queued before the client becomes visible to
	// broadcasts, so it always arrives first.
	if b.initial != nil {
		if data, err := json.Marshal(b.initial()); err != nil {
			b.logger.Error("failed to marshal initial message", zap.Error(err))
		} else {
			c.send <- data
		}
	}

	b.clientsMu.Lock()
	b.clients[c.id] = c
	n := len(b.clients)
	b.clientsMu.Unlock()

	b.logger.Info("dashboard client connected",
		zap.String("client_id", c.id),
		zap.String("remote_addr", c.remoteAddr),
		zap.Int("clients", n),
	)
	b.countChanged(n)
}

func (b *WebSocketBroadcaster) removeClient(c *wsClient) {
	b.clientsMu.Lock()
	_, ok := b.clients[c.id]
	if ok {
		delete(b.clients, c.id)
		close(c.send)
	}
	n := len(b.clients)
	b.clientsMu.Unlock()

	if !ok {
		return
	}
	b.logger.Info("dashboard client disconnected",
		zap.String("client_id", c.id),
		zap.Duration("connected_for", time.Since(c.connectedAt)),
		zap.Int("clients", n),
	)
	b.countChanged(n)
}

func (b *WebSocketBroadcaster) broadcastToAll(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal broadcast message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	var slow []*wsClient
	b.clientsMu.RLock()
	for _, c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.clientsMu.RUnlock()

	for _, c := range slow {
		b.logger.Warn("client send buffer full, closing", zap.String("client_id", c.id))
		b.removeClient(c)
	}
}

func (b *WebSocketBroadcaster) closeAllClients() {
	b.clientsMu.Lock()
	for id, c := range b.clients {
		close(c.send)
		delete(b.clients, id)
	}
	b.clientsMu.Unlock()
	b.countChanged(0)
}

func (b *WebSocketBroadcaster) countChanged(n int) {
	if b.onCountChange != nil {
		b.onCountChange(n)
	}
}

// readPump discards client messages; it exists to process pongs and
// notice disconnects.
func (b *WebSocketBroadcaster) readPump(c *wsClient) {
	defer func() {
		select {
		case b.unregister <- c:
		case <-b.stopped:
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Debug("unexpected close", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
	}
}

func (b *WebSocketBroadcaster) writePump(c *wsClient) {
	ticker := time.NewTicker(b.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(b.writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				b.logger.Debug("write failed", zap.String("client_id", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(b.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
