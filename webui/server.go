package webui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"crowdview/metrics"
	"crowdview/render"
	"crowdview/stream"
	"crowdview/viewer"
)

// WebUIServer is the dashboard HTTP server. It wires together:
//   - StaticAssetHandler for the dashboard page and its assets
//   - DashboardAPI for the REST endpoints
//   - WebSocketBroadcaster for live view updates on /ws
//   - LoggingMiddleware for request logs and request metrics
//   - the Prometheus handler on /metrics
//
// Every store commit is rendered once and broadcast as a view_update;
// connection changes are additionally broadcast as status messages.
type WebUIServer struct {
	httpServer    *http.Server
	router        *mux.Router
	config        ServerConfig
	logger        *zap.Logger
	store         *viewer.Store
	dashboardAPI  *DashboardAPI
	wsBroadcaster *WebSocketBroadcaster
	staticHandler *StaticAssetHandler
	loggingMw     *LoggingMiddleware

	mu       sync.Mutex
	listener net.Listener
	lastConn stream.ConnState
	seenConn bool
}

// ServerConfig configures the WebUIServer.
type ServerConfig struct {
	// Port to listen on (default: 8080, 0 picks a free port)
	Port int

	// Host to bind to (default: "localhost")
	Host string

	// ReadTimeout for HTTP requests (default: 30s)
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses (default: 30s)
	WriteTimeout time.Duration

	// IdleTimeout for keep-alive connections (default: 120s)
	IdleTimeout time.Duration

	// ShutdownTimeout for graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration

	StaticConfig StaticAssetConfig
	APIConfig    DashboardAPIConfig
	Broadcaster  BroadcasterConfig

	// LogSkipPaths are paths to skip logging
	LogSkipPaths []string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            8080,
		Host:            "localhost",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		StaticConfig:    DefaultStaticAssetConfig(),
		APIConfig:       DefaultDashboardAPIConfig(),
		Broadcaster:     DefaultBroadcasterConfig(),
		LogSkipPaths:    []string{"/health", "/metrics", "/api/status"},
	}
}

// NewServer creates the server and subscribes it to store. reloader and
// collector may be nil.
func NewServer(
	config ServerConfig,
	store *viewer.Store,
	boundary *render.Boundary,
	reloader Reloader,
	collector *metrics.Collector,
	logger *zap.Logger,
) (*WebUIServer, error) {
	if store == nil || boundary == nil {
		return nil, errors.New("webui: store and boundary are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &WebUIServer{
		router: mux.NewRouter(),
		config: config,
		logger: logger,
		store:  store,
	}

	var recorder APIRecorder
	var observer RequestObserver
	if collector != nil {
		recorder = collector
		observer = collector
	}

	wsConfig := config.Broadcaster
	wsConfig.Initial = func() WSMessage { return NewInitialMessage(s.dashboardAPI.Render()) }
	if collector != nil {
		wsConfig.OnClientCountChange = collector.SetDashboardClients
	}
	s.wsBroadcaster = NewWebSocketBroadcaster(wsConfig, logger)

	s.dashboardAPI = NewDashboardAPI(store, boundary, reloader, nil, recorder,
		s.wsBroadcaster.ClientCount, config.APIConfig, logger)
	s.staticHandler = NewStaticAssetHandler(config.StaticConfig, boundary.Failure)
	s.loggingMw = NewLoggingMiddleware(LoggingMiddlewareConfig{
		SkipPaths: config.LogSkipPaths,
		Observer:  observer,
	}, logger)

	s.setupRoutes(collector)
	store.Subscribe(s.onCommit)

	addr := net.JoinHostPort(config.Host, fmt.Sprint(config.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	logger.Info("WebUI server created", zap.String("addr", addr))
	return s, nil
}

func (s *WebUIServer) setupRoutes(collector *metrics.Collector) {
	s.router.Use(s.loggingMw.Handler)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if collector != nil {
		s.router.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)
	}
	s.router.HandleFunc("/ws", s.wsBroadcaster.HandleConnection).Methods(http.MethodGet)

	s.dashboardAPI.RegisterRoutes(s.router)
	s.staticHandler.RegisterRoutes(s.router)
}

// onCommit runs on the session goroutine for every committed state.
func (s *WebUIServer) onCommit(state viewer.ViewState) {
	s.mu.Lock()
	changed := !s.seenConn || state.Connection != s.lastConn
	s.lastConn = state.Connection
	s.seenConn = true
	s.mu.Unlock()

	if changed {
		s.wsBroadcaster.BroadcastMessage(NewStatusMessage(state))
	}
	s.wsBroadcaster.BroadcastMessage(NewViewUpdateMessage(s.dashboardAPI.Render()))
}

// RecordEvent logs a session event for /api/events. Passed to the
// session with viewer.WithEventHandler.
func (s *WebUIServer) RecordEvent(e viewer.Event) {
	s.dashboardAPI.RecordEvent(e)
	if e.Type == viewer.EventSocketError {
		s.wsBroadcaster.BroadcastError(string(e.Type), e.Message)
	}
}

func (s *WebUIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Start listens on the configured address and serves until Shutdown. The
// broadcaster runs until ctx is cancelled.
func (s *WebUIServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go s.wsBroadcaster.Start(ctx)

	s.logger.Info("WebUI server listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server. It satisfies
// core.ShutdownFunc.
func (s *WebUIServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down WebUI server")

	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}

	s.logger.Info("WebUI server stopped")
	return nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *WebUIServer) Handler() http.Handler {
	return s.router
}

// GetBroadcaster returns the WebSocket broadcaster.
func (s *WebUIServer) GetBroadcaster() *WebSocketBroadcaster {
	return s.wsBroadcaster
}

// GetDashboardAPI returns the dashboard API.
func (s *WebUIServer) GetDashboardAPI() *DashboardAPI {
	return s.dashboardAPI
}

// Addr returns the bound address once listening, else the configured one.
func (s *WebUIServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}
