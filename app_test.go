package main

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"crowdview/core"
	"crowdview/logging"
	"crowdview/shutdown"
	"crowdview/stream"
	"crowdview/viewer"
)

func TestSessionConfig(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.IngestMode = core.IngestImmediate
	cfg.AnomalyScoreThreshold = 0.8

	sc := sessionConfig(&cfg)
	if sc.Stream.URL != cfg.StreamURL || sc.Limit != 50 || sc.BatchMax != 10 {
		t.Errorf("sessionConfig() = %+v", sc)
	}
	if !sc.Immediate || sc.AnomalyThreshold != 0.8 {
		t.Errorf("Immediate = %v threshold = %v", sc.Immediate, sc.AnomalyThreshold)
	}
}

func TestServerConfig(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.WebUIPort = 9123
	cfg.FrameMaxWidth = 640

	sc := serverConfig(&cfg)
	if sc.Port != 9123 || sc.Host != cfg.WebUIHost || sc.APIConfig.FrameMaxWidth != 640 {
		t.Errorf("serverConfig() = %+v", sc)
	}
}

func TestGuardedReloader_RejectsDuringShutdown(t *testing.T) {
	mgr := shutdown.NewManager(nil)
	controller := viewer.NewController(viewer.SessionConfig{}, viewer.NewStore(), nil, nil)
	r := guardedReloader{mgr: mgr, controller: controller}

	if err := r.Reload(); !errors.Is(err, viewer.ErrNotStarted) {
		t.Errorf("Reload() before start = %v, want ErrNotStarted", err)
	}
	mgr.Trigger()
	if err := r.Reload(); !errors.Is(err, shutdown.ErrTrackerClosed) {
		t.Errorf("Reload() during shutdown = %v, want ErrTrackerClosed", err)
	}
}

func TestRunViewer_StartsAndShutsDown(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.StreamURL = "ws://127.0.0.1:1/ui" // nothing listens here
	cfg.StreamHandshakeTimeout = 200 * time.Millisecond
	cfg.WebUIHost = "127.0.0.1"
	cfg.WebUIPort = 0

	logger := logging.NewNop()
	mgr := shutdown.NewManager(logger.Zap(), shutdown.WithTimeout(5*time.Second))

	a, err := newApp(&cfg, logger, mgr)
	if err != nil {
		t.Fatalf("newApp() error: %v", err)
	}
	a.start(mgr.Context(), mgr.Trigger)

	if got := a.store.Get().Connection; got != stream.StateError {
		t.Errorf("connection after failed dial = %v, want error", got)
	}

	var addr string
	deadline := time.Now().Add(2 * time.Second)
	for {
		addr = a.server.Addr()
		if !strings.HasSuffix(addr, ":0") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("dashboard never started listening")
		}
		time.Sleep(10 * time.Millisecond)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("dashboard Dial() error: %v", err)
	}
	conn.Close()

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d", resp.StatusCode)
	}

	if err := mgr.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if _, err := http.Get("http://" + addr + "/health"); err == nil {
		t.Error("dashboard still serving after shutdown")
	}
}
