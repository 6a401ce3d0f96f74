package viewer

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrNotStarted is returned by Reload before Start.
var ErrNotStarted = errors.New("controller not started")

// Resetter clears a latched render failure.
type Resetter interface {
	Reset()
}

// Controller owns the current session and implements manual reload.
type Controller struct {
	cfg      SessionConfig
	store    *Store
	boundary Resetter
	logger   *zap.Logger
	opts     []SessionOption

	// startMu serialises Start and Reload. mu guards the fields below and
	// is never held across a dial.
	startMu sync.Mutex

	mu      sync.Mutex
	ctx     context.Context
	session *Session
	reloads int
}

// NewController creates a controller. boundary may be nil.
func NewController(cfg SessionConfig, store *Store, boundary Resetter, logger *zap.Logger, opts ...SessionOption) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:      cfg,
		store:    store,
		boundary: boundary,
		logger:   logger,
		opts:     opts,
	}
}

// Start runs the first session. ctx bounds every session the controller
// creates, including those started by Reload.
func (c *Controller) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	if c.ctx != nil {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.ctx = ctx
	s := c.newSessionLocked()
	c.mu.Unlock()

	return s.Start(ctx)
}

// Reload stops the current session, resets the render boundary and starts
// a new session with empty series and a new ID. A dial failure is returned
// but the new session still replaces the old one, showing the error state.
func (c *Controller) Reload() error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	if c.ctx == nil {
		c.mu.Unlock()
		return ErrNotStarted
	}
	ctx := c.ctx
	old := c.session
	s := c.newSessionLocked()
	c.reloads++
	reloads := c.reloads
	c.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if c.boundary != nil {
		c.boundary.Reset()
	}

	c.logger.Info("reloading viewer", zap.Int("reload", reloads))
	return s.Start(ctx)
}

func (c *Controller) newSessionLocked() *Session {
	s := NewSession(c.cfg, c.store, c.logger, c.opts...)
	c.session = s
	return s
}

// Session returns the current session, or nil before Start.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Reloads returns how many times Reload has run.
func (c *Controller) Reloads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reloads
}

// Shutdown stops the current session. It satisfies core.ShutdownFunc.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
