package render

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"crowdview/viewer"
)

func TestBoundaryPassesThroughView(t *testing.T) {
	b := NewBoundary(DefaultOptions(), nil)

	res := b.Render(stateWith())
	if res.Failed() || res.View == nil {
		t.Fatalf("Render() = %+v, want view", res)
	}
	if res.View.SessionID != "session-1" {
		t.Errorf("SessionID = %q", res.View.SessionID)
	}
}

func TestBoundaryLatchesUntilReset(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	calls := 0
	var fail bool
	fn := func(s viewer.ViewState, o Options) (View, error) {
		calls++
		if fail {
			panic("chart exploded")
		}
		return Render(s, o)
	}
	b := NewBoundaryWith(fn, DefaultOptions(), zap.New(core))

	fail = true
	res := b.Render(stateWith())
	if !res.Failed() {
		t.Fatal("expected failure view after panic")
	}
	if res.Failure.Message != FailureMessage || res.Failure.Action != ReloadAction {
		t.Errorf("failure = %+v", res.Failure)
	}

	// Latched: the render function is not called again.
	fail = false
	res = b.Render(stateWith())
	if !res.Failed() {
		t.Error("boundary did not latch")
	}
	if calls != 1 {
		t.Errorf("render called %d times while latched, want 1", calls)
	}
	if !b.Failed() {
		t.Error("Failed() = false while latched")
	}

	if logs.Len() != 1 {
		t.Errorf("logged %d errors, want exactly 1", logs.Len())
	}

	b.Reset()
	if b.Failed() {
		t.Error("Failed() = true after Reset")
	}
	if res := b.Render(stateWith()); res.Failed() {
		t.Errorf("Render() after Reset = %+v, want view", res.Failure)
	}
}

func TestBoundaryCatchesErrors(t *testing.T) {
	want := errors.New("bad state")
	b := NewBoundaryWith(func(viewer.ViewState, Options) (View, error) {
		return View{}, want
	}, DefaultOptions(), zap.NewNop())

	res := b.Render(stateWith())
	if !res.Failed() {
		t.Fatal("expected failure view")
	}
	if res.Failure.Error != want.Error() {
		t.Errorf("failure error = %q, want %q", res.Failure.Error, want.Error())
	}
}
