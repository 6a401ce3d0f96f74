package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crowdview/ingest"
	"crowdview/series"
	"crowdview/stream"
)

// Session errors
var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrStopped        = errors.New("session stopped")
)

// SessionConfig configures one stream session.
type SessionConfig struct {
	Stream stream.ClientConfig

	Limit         int           // points kept per series
	BatchInterval time.Duration // drain period in batched mode
	BatchMax      int           // messages drained per tick
	Immediate     bool          // commit each message on arrival

	// AnomalyThreshold feeds anomaly_raised/anomaly_cleared events. Zero
	// means only the producer's flag counts.
	AnomalyThreshold float64
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Limit < 1 {
		c.Limit = series.DefaultLimit
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = 100 * time.Millisecond
	}
	if c.BatchMax < 1 {
		c.BatchMax = 10
	}
	return c
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithRecorder sets the counter sink.
func WithRecorder(r Recorder) SessionOption {
	return func(s *Session) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithEventHandler sets the lifecycle event sink.
func WithEventHandler(h EventHandler) SessionOption {
	return func(s *Session) {
		s.onEvent = h
	}
}

// Session owns one upstream connection and the state built from it.
//
// All state mutation happens on a single event-loop goroutine that selects
// over socket messages, the socket error and the drain ticker, so the
// queue and the series need no locking. Committed states are published to
// the Store.
type Session struct {
	id     string
	cfg    SessionConfig
	logger *zap.Logger
	store  *Store

	recorder Recorder
	onEvent  EventHandler

	client *stream.Client
	queue  *ingest.Queue[stream.Message]

	// live is cleared first on Stop; drain checks it so a tick that races
	// teardown does nothing.
	live atomic.Bool

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}

	// afterConnect runs once the dial returns. Tests use it to race Stop.
	afterConnect func()

	// Owned by the event loop after Start.
	state   ViewState
	anomaly bool
}

// NewSession creates a session with a fresh ID and empty series.
func NewSession(cfg SessionConfig, store *Store, logger *zap.Logger, opts ...SessionOption) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	id := uuid.NewString()

	s := &Session{
		id:       id,
		cfg:      cfg,
		logger:   logger.With(zap.String("session_id", id)),
		store:    store,
		recorder: nopRecorder{},
		queue:    ingest.NewQueue[stream.Message](cfg.BatchMax * 2),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.client = stream.NewClient(cfg.Stream, s.logger)
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// IsLive reports whether the session is running and not yet stopped.
func (s *Session) IsLive() bool { return s.live.Load() }

// Done is closed when the event loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start publishes an empty "connecting" state, dials the producer and
// starts the event loop. A failed dial leaves the session in the error
// state and returns the dial error; there is no retry.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	now := time.Now()
	s.state = ViewState{
		SessionID:  s.id,
		Connection: stream.StateConnecting,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	s.publish()

	err := s.client.Connect(ctx)
	if s.afterConnect != nil {
		s.afterConnect()
	}

	// Stop may have run while dialing; it must win over a late success.
	s.mu.Lock()
	stopped := s.stopped
	if err == nil && !stopped {
		s.live.Store(true)
	}
	s.mu.Unlock()

	if stopped {
		_ = s.client.Close()
		close(s.done)
		s.logger.Debug("session stopped while connecting")
		return ErrStopped
	}
	if err != nil {
		s.logger.Error("stream connection failed", zap.Error(err))
		s.setConnection(stream.StateError)
		s.emit(EventSocketError, err.Error())
		close(s.done)
		return fmt.Errorf("session %s: %w", s.id, err)
	}

	s.setConnection(stream.StateConnected)
	s.emit(EventConnected, "")

	go s.run(ctx)
	return nil
}

// Stop clears the liveness flag, closes the socket and waits for the event
// loop to exit. It is safe to call more than once and before Start.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	s.live.Store(false)
	close(s.stop)
	if err := s.client.Close(); err != nil {
		s.logger.Debug("stream close", zap.Error(err))
	}
	if started {
		<-s.done
	}
	s.queue.Close()
	s.logger.Info("session stopped")
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	var tick <-chan time.Time
	if !s.cfg.Immediate {
		ticker := time.NewTicker(s.cfg.BatchInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	messages := s.client.Messages()
	errs := s.client.Errors()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case raw := <-messages:
			s.handleMessage(raw)
		case err := <-errs:
			s.handleSocketError(err)
			errs = nil
		case <-tick:
			s.drain()
		}
	}
}

func (s *Session) handleMessage(raw stream.RawMessage) {
	s.state.Counters.Received++
	s.recorder.MessageReceived()

	msg, err := stream.Decode(raw.Data)
	if err != nil {
		s.state.Counters.DecodeErrors++
		s.recorder.DecodeError()
		s.logger.Error("discarding malformed stream message",
			zap.Error(err),
			zap.Int("bytes", len(raw.Data)),
		)
		s.emit(EventDecodeError, err.Error())
		return
	}
	msg.ReceivedAt = raw.ReceivedAt

	if s.cfg.Immediate {
		s.commit([]stream.Message{msg})
		return
	}
	if err := s.queue.Push(msg); err != nil {
		return
	}
	s.recorder.QueueDepth(s.queue.Len())
}

// drain commits up to BatchMax queued messages as one state update.
func (s *Session) drain() {
	if !s.live.Load() {
		return
	}
	msgs := s.queue.DrainTo(s.cfg.BatchMax)
	if len(msgs) == 0 {
		return
	}
	s.commit(msgs)
}

func (s *Session) commit(msgs []stream.Message) {
	b := ingest.Fold(s.state.Series, msgs, s.cfg.Limit)

	next := s.state
	next.Series = b.Series
	next.Frame = b.Frame
	next.Latest = b.Latest
	next.HasAnalytics = b.HasAnalytics
	next.Counters.Applied += uint64(b.Applied)
	next.Counters.Batches++
	next.Counters.FramesDiscarded += uint64(b.FramesDiscarded)
	next.Counters.Pending = s.queue.Len()
	next.UpdatedAt = time.Now()
	s.state = next
	s.publish()

	s.recorder.BatchCommitted(b.Applied, b.FramesDiscarded)
	s.recorder.QueueDepth(next.Counters.Pending)

	if b.FramesDiscarded > 0 {
		s.logger.Debug("frames superseded within batch", zap.Int("discarded", b.FramesDiscarded))
	}
	s.trackAnomaly(next.Latest)
}

func (s *Session) handleSocketError(err error) {
	state := stream.StateForError(err)
	s.setConnection(state)

	if state == stream.StateDisconnected {
		s.logger.Warn("stream disconnected", zap.Error(err))
		s.emit(EventDisconnected, err.Error())
		return
	}
	s.logger.Error("stream error", zap.Error(err))
	s.emit(EventSocketError, err.Error())
}

func (s *Session) trackAnomaly(latest stream.Sample) {
	now := latest.Anomalous(s.cfg.AnomalyThreshold)
	if now == s.anomaly {
		return
	}
	s.anomaly = now
	if now {
		s.logger.Warn("anomaly raised", zap.Float64("anomaly_score", latest.AnomalyScore))
		s.emit(EventAnomalyRaised, fmt.Sprintf("anomaly score %.3f", latest.AnomalyScore))
		return
	}
	s.logger.Info("anomaly cleared")
	s.emit(EventAnomalyCleared, "")
}

func (s *Session) setConnection(state stream.ConnState) {
	s.state.Connection = state
	s.state.UpdatedAt = time.Now()
	s.publish()
	s.recorder.ConnectionChanged(state)
}

func (s *Session) publish() {
	if s.store != nil {
		s.store.Commit(s.state)
	}
}

func (s *Session) emit(t EventType, msg string) {
	if s.onEvent == nil {
		return
	}
	s.onEvent(Event{Type: t, SessionID: s.id, Message: msg, Time: time.Now()})
}
