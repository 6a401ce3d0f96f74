package render

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"crowdview/viewer"
)

// FailureMessage is shown in place of the dashboard after a render failure.
const FailureMessage = "Something went wrong with the visualization"

// ReloadAction names the recovery action offered by the failure view.
const ReloadAction = "reload"

// Failure is the terminal view shown after a render failure.
type Failure struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Error   string `json:"error,omitempty"`
}

// Result holds exactly one of View or Failure.
type Result struct {
	View    *View    `json:"view,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

// Failed reports whether the result is the failure view.
func (r Result) Failed() bool { return r.Failure != nil }

// RenderFunc builds a view from state.
type RenderFunc func(viewer.ViewState, Options) (View, error)

// Boundary wraps rendering so that an error or panic replaces the whole UI
// with a reload prompt. Once tripped it stays tripped until Reset.
type Boundary struct {
	mu      sync.Mutex
	render  RenderFunc
	opts    Options
	logger  *zap.Logger
	failure *Failure
}

// NewBoundary returns a boundary around Render.
func NewBoundary(opts Options, logger *zap.Logger) *Boundary {
	return NewBoundaryWith(Render, opts, logger)
}

// NewBoundaryWith returns a boundary around fn.
func NewBoundaryWith(fn RenderFunc, opts Options, logger *zap.Logger) *Boundary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Boundary{render: fn, opts: opts, logger: logger}
}

// Render renders state, or returns the latched failure.
func (b *Boundary) Render(state viewer.ViewState) Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failure != nil {
		return Result{Failure: b.failure}
	}

	view, err := b.safeRender(state)
	if err != nil {
		b.failure = &Failure{Message: FailureMessage, Action: ReloadAction, Error: err.Error()}
		b.logger.Error("visualization failed",
			zap.Error(err),
			zap.String("session_id", state.SessionID),
		)
		return Result{Failure: b.failure}
	}
	return Result{View: &view}
}

func (b *Boundary) safeRender(state viewer.ViewState) (view View, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
	}()
	return b.render(state, b.opts)
}

// Failed reports whether the boundary is latched.
func (b *Boundary) Failed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failure != nil
}

// Reset clears a latched failure.
func (b *Boundary) Reset() {
	b.mu.Lock()
	b.failure = nil
	b.mu.Unlock()
}

// Options returns the render options in use.
func (b *Boundary) Options() Options {
	return b.opts
}

// Failure returns the latched failure, or nil.
func (b *Boundary) Failure() *Failure {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failure
}
