package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"crowdview/core"
)

// ErrAlreadyShutdown is returned by every Shutdown call after the first.
var ErrAlreadyShutdown = errors.New("shutdown already performed")

// Manager ties signal handling, operation tracking and the hook registry
// together.
//
//	m := shutdown.NewManager(logger)
//	m.Register("session", shutdown.PrioritySession, controller.Shutdown)
//	m.Start()
//	<-m.Context().Done()
//	err := m.Shutdown()
type Manager struct {
	logger  *zap.Logger
	timeout time.Duration
	signals []os.Signal
	exit    func(code int)

	mu       sync.Mutex
	started  bool
	shutdown bool
	sig      os.Signal

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *OperationTracker
	registry *Registry
	counter  *SignalCounter
	sigChan  chan os.Signal
	done     chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout bounds the whole shutdown sequence. Default 30s.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = timeout }
}

// WithSignals replaces the default SIGINT/SIGTERM set.
func WithSignals(sigs ...os.Signal) ManagerOption {
	return func(m *Manager) { m.signals = sigs }
}

// WithExitFunc replaces os.Exit for the forced exit on a second signal.
func WithExitFunc(exit func(code int)) ManagerOption {
	return func(m *Manager) { m.exit = exit }
}

func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:   logger.Named("shutdown"),
		timeout:  30 * time.Second,
		signals:  []os.Signal{os.Interrupt, syscall.SIGTERM},
		exit:     os.Exit,
		ctx:      ctx,
		cancel:   cancel,
		tracker:  NewOperationTracker(),
		registry: NewRegistry(),
		sigChan:  make(chan os.Signal, 2),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.counter = NewSignalCounter(2, func() {
		m.logger.Warn("second signal received, forcing exit")
		m.exit(m.ExitCode())
	})
	return m
}

// Context is cancelled when shutdown begins.
func (m *Manager) Context() context.Context { return m.ctx }

// Register adds a cleanup hook. Lower priority runs first.
func (m *Manager) Register(name string, priority int, fn core.ShutdownFunc) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("registered shutdown hook", zap.String("name", name), zap.Int("priority", priority))
}

// Start listens for the configured signals. Calling it again is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, m.signals...)
	go m.watch()
}

func (m *Manager) watch() {
	for {
		select {
		case sig := <-m.sigChan:
			if m.counter.Increment() == 1 {
				m.mu.Lock()
				m.sig = sig
				m.mu.Unlock()
				m.logger.Info("signal received, shutting down", zap.String("signal", sig.String()))
				m.cancel()
			}
		case <-m.done:
			return
		}
	}
}

// Trigger begins shutdown without a signal, as a service stop does.
func (m *Manager) Trigger() {
	m.cancel()
}

// Guard runs fn as a tracked operation. It returns ErrTrackerClosed without
// calling fn once shutdown has started.
func (m *Manager) Guard(name string, fn func() error) error {
	if m.ctx.Err() != nil || !m.tracker.Start() {
		m.logger.Debug("operation rejected during shutdown", zap.String("operation", name))
		return ErrTrackerClosed
	}
	defer m.tracker.Done()
	return fn()
}

// Shutdown waits for tracked operations and runs the hooks, all within the
// timeout. It cancels Context if no signal did.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return ErrAlreadyShutdown
	}
	m.shutdown = true
	m.mu.Unlock()

	m.cancel()
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.tracker.Close()
	if err := m.tracker.Wait(m.timeout / 2); err != nil {
		m.logger.Warn("operations still running", zap.Int64("active", m.tracker.ActiveCount()))
	}

	m.logger.Info("running shutdown hooks", zap.Strings("hooks", m.registry.Names()))
	errs := m.registry.Run(ctx)
	for _, err := range errs {
		m.logger.Error("shutdown hook failed", zap.Error(err))
	}
	signal.Stop(m.sigChan)
	close(m.done)

	m.logger.Info("shutdown complete",
		zap.Duration("duration", time.Since(start)),
		zap.Int("errors", len(errs)),
	)
	return errors.Join(errs...)
}

// ExitCode maps the first signal received to its conventional exit code.
func (m *Manager) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.sig {
	case nil:
		return core.ExitCodeSuccess
	case syscall.SIGTERM:
		return core.ExitCodeSIGTERM
	default:
		return core.ExitCodeSIGINT
	}
}

// Hooks returns the registered hook names in run order.
func (m *Manager) Hooks() []string { return m.registry.Names() }
