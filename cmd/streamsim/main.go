// Command streamsim is a synthetic crowd-analytics producer. It serves the
// canonical {frame, analytics} stream on /ui so crowdview can be run and
// demoed without the real detection pipeline.
//
//	streamsim -addr localhost:8765 -fps 10 -anomaly-every 150
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"crowdview/logging"
)

func main() {
	addr := flag.String("addr", "localhost:8765", "listen address")
	fps := flag.Int("fps", 10, "messages per second per client")
	anomalyEvery := flag.Int("anomaly-every", 150, "raise an anomaly every N messages (0 disables)")
	width := flag.Int("width", 320, "frame width in pixels")
	height := flag.Int("height", 180, "frame height in pixels")
	noFrames := flag.Bool("no-frames", false, "send empty frames")
	flag.Parse()

	logger, err := logging.New(logging.Options{Development: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *fps < 1 || *width < 16 || *height < 16 {
		logger.Fatal("invalid flags", zap.Int("fps", *fps), zap.Int("width", *width), zap.Int("height", *height))
	}

	sim := &simulator{
		interval:     time.Second / time.Duration(*fps),
		anomalyEvery: *anomalyEvery,
		width:        *width,
		height:       *height,
		frames:       !*noFrames,
		logger:       logger.Zap(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/ui", sim.handle)
	server := &http.Server{Addr: *addr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sim.ctx = ctx

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("streamsim listening",
		zap.String("url", "ws://"+*addr+"/ui"),
		zap.Int("fps", *fps),
		zap.Int("anomaly_every", *anomalyEvery),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}

type simulator struct {
	ctx          context.Context
	interval     time.Duration
	anomalyEvery int
	width        int
	height       int
	frames       bool
	logger       *zap.Logger
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *simulator) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := s.logger.With(zap.String("remote_addr", r.RemoteAddr))
	log.Info("consumer connected")

	// Detect consumer disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	gen := newGenerator(s.width, s.height, s.anomalyEvery, time.Now())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "producer shutting down"),
				time.Now().Add(time.Second))
			return
		case <-closed:
			log.Info("consumer disconnected", zap.Int("sent", gen.seq))
			return
		case now := <-ticker.C:
			data, err := gen.next(now, s.frames)
			if err != nil {
				log.Error("failed to build message", zap.Error(err))
				return
			}
			conn.SetWriteDeadline(now.Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Info("write failed", zap.Error(err))
				return
			}
		}
	}
}
