package main

import (
	"context"

	"go.uber.org/zap"

	"crowdview/core"
	"crowdview/logging"
	"crowdview/metrics"
	"crowdview/render"
	"crowdview/shutdown"
	"crowdview/stream"
	"crowdview/viewer"
	"crowdview/webui"
)

// app holds the wired viewer: one session controller feeding the store,
// and the dashboard server rendering it.
type app struct {
	cfg        *core.Config
	logger     *zap.Logger
	collector  *metrics.Collector
	store      *viewer.Store
	boundary   *render.Boundary
	controller *viewer.Controller
	server     *webui.WebUIServer
}

// guardedReloader refuses manual reloads once shutdown has begun.
type guardedReloader struct {
	mgr        *shutdown.Manager
	controller *viewer.Controller
}

func (g guardedReloader) Reload() error {
	return g.mgr.Guard("reload", g.controller.Reload)
}

func sessionConfig(cfg *core.Config) viewer.SessionConfig {
	return viewer.SessionConfig{
		Stream: stream.ClientConfig{
			URL:              cfg.StreamURL,
			HandshakeTimeout: cfg.StreamHandshakeTimeout,
			BufferSize:       cfg.StreamBufferSize,
		},
		Limit:            cfg.MaxDataPoints,
		BatchInterval:    cfg.BatchInterval,
		BatchMax:         cfg.BatchMaxMessages,
		Immediate:        cfg.IsImmediate(),
		AnomalyThreshold: cfg.AnomalyScoreThreshold,
	}
}

func serverConfig(cfg *core.Config) webui.ServerConfig {
	sc := webui.DefaultServerConfig()
	sc.Host = cfg.WebUIHost
	sc.Port = cfg.WebUIPort
	sc.APIConfig.FrameMaxWidth = cfg.FrameMaxWidth
	sc.APIConfig.BuildInfo = core.GetBuildInfo()
	return sc
}

// newApp builds every component and registers its shutdown hook with mgr.
func newApp(cfg *core.Config, logger *logging.Logger, mgr *shutdown.Manager) (*app, error) {
	z := logger.Zap()
	a := &app{
		cfg:       cfg,
		logger:    z,
		collector: metrics.NewCollector(),
		store:     viewer.NewStore(),
	}

	opts := render.DefaultOptions()
	opts.Threshold = cfg.AnomalyScoreThreshold
	a.boundary = render.NewBoundary(opts, z.Named("render"))

	a.controller = viewer.NewController(sessionConfig(cfg), a.store, a.boundary, z.Named("viewer"),
		viewer.WithRecorder(a.collector),
		viewer.WithEventHandler(a.recordEvent),
	)

	server, err := webui.NewServer(serverConfig(cfg), a.store, a.boundary,
		guardedReloader{mgr: mgr, controller: a.controller}, a.collector, z)
	if err != nil {
		return nil, err
	}
	a.server = server

	mgr.Register("session", shutdown.PrioritySession, a.controller.Shutdown)
	mgr.Register("http", shutdown.PriorityHTTP, a.server.Shutdown)
	mgr.Register("logger", shutdown.PriorityLogger, func(context.Context) error {
		return logger.Sync()
	})
	return a, nil
}

// recordEvent runs on session goroutines, which only start after newApp
// has returned.
func (a *app) recordEvent(e viewer.Event) {
	a.server.RecordEvent(e)
}

// start launches the dashboard and the first session. A failed first
// connection is not fatal: the dashboard shows the error state and offers
// a reload. A server error triggers shutdown through onFatal.
func (a *app) start(ctx context.Context, onFatal func()) {
	go func() {
		if err := a.server.Start(ctx); err != nil {
			a.logger.Error("dashboard server failed", zap.Error(err))
			onFatal()
		}
	}()

	a.logger.Info("connecting to stream",
		zap.String("stream_url", logging.RedactURL(a.cfg.StreamURL)),
		zap.String("ingest_mode", a.cfg.IngestMode),
		zap.Int("max_data_points", a.cfg.MaxDataPoints),
	)
	if err := a.controller.Start(ctx); err != nil {
		a.logger.Warn("initial stream connection failed, waiting for reload", zap.Error(err))
	}
}

// runViewer runs until mgr's context is cancelled, then shuts down.
func runViewer(cfg *core.Config, logger *logging.Logger, mgr *shutdown.Manager) error {
	a, err := newApp(cfg, logger, mgr)
	if err != nil {
		return err
	}
	a.start(mgr.Context(), mgr.Trigger)

	logger.Info("crowdview running",
		zap.String("dashboard", "http://"+cfg.WebUIAddr()+"/dashboard"),
		zap.String("version", core.Version),
	)
	<-mgr.Context().Done()
	return mgr.Shutdown()
}
