package webui

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"crowdview/render"
	"crowdview/series"
	"crowdview/stream"
	"crowdview/viewer"
)

type fakeReloader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeReloader) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

type fakeAPIRecorder struct {
	mu       sync.Mutex
	reloads  int
	failures int
}

func (f *fakeAPIRecorder) ReloadPerformed() {
	f.mu.Lock()
	f.reloads++
	f.mu.Unlock()
}

func (f *fakeAPIRecorder) RenderFailed() {
	f.mu.Lock()
	f.failures++
	f.mu.Unlock()
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode() error: %v", err)
	}
	return buf.Bytes()
}

// testState returns a connected state holding n samples.
func testState(n int, anomalous bool) viewer.ViewState {
	var set series.Set
	var last stream.Sample
	for i := 1; i <= n; i++ {
		last = stream.Sample{
			Timestamp:    float64(1700000000 + i),
			Count:        float64(10 * i),
			Density:      0.1 * float64(i),
			Velocity:     float64(i),
			AnomalyScore: 0.05 * float64(i),
			IsAnomaly:    anomalous && i == n,
		}
		set = set.Apply(last, 50)
	}
	return viewer.ViewState{
		SessionID:    "session-1",
		Connection:   stream.StateConnected,
		Series:       set,
		Latest:       last,
		HasAnalytics: n > 0,
		Counters:     viewer.Counters{Received: uint64(n), Applied: uint64(n), Batches: 1},
		StartedAt:    time.Now().Add(-time.Minute),
		UpdatedAt:    time.Now(),
	}
}

type apiFixture struct {
	api      *DashboardAPI
	store    *viewer.Store
	boundary *render.Boundary
	reloader *fakeReloader
	recorder *fakeAPIRecorder
	router   *mux.Router
}

func newAPIFixture(t *testing.T, state viewer.ViewState, boundary *render.Boundary) *apiFixture {
	t.Helper()
	if boundary == nil {
		boundary = render.NewBoundary(render.DefaultOptions(), nil)
	}
	f := &apiFixture{
		store:    viewer.NewStore(),
		boundary: boundary,
		reloader: &fakeReloader{},
		recorder: &fakeAPIRecorder{},
		router:   mux.NewRouter(),
	}
	f.store.Commit(state)
	f.api = NewDashboardAPI(f.store, boundary, f.reloader, nil, f.recorder,
		func() int { return 3 }, DashboardAPIConfig{FrameMaxWidth: 64}, nil)
	f.api.RegisterRoutes(f.router)
	return f
}

func (f *apiFixture) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHandleView(t *testing.T) {
	f := newAPIFixture(t, testState(5, true), nil)

	rec := f.do(http.MethodGet, "/api/view")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res render.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if res.View == nil || res.Failure != nil {
		t.Fatalf("result = %+v, want a view", res)
	}
	if len(res.View.Charts) != len(series.Metrics) {
		t.Errorf("charts = %d, want %d", len(res.View.Charts), len(series.Metrics))
	}
	if !res.View.Anomaly || res.View.Banner != render.AnomalyBanner {
		t.Errorf("anomaly = %v banner = %q, want the anomaly banner", res.View.Anomaly, res.View.Banner)
	}
}

func TestHandleView_FailureLatches(t *testing.T) {
	broken := render.NewBoundaryWith(func(viewer.ViewState, render.Options) (render.View, error) {
		return render.View{}, errors.New("bad data")
	}, render.DefaultOptions(), nil)
	f := newAPIFixture(t, testState(2, false), broken)

	for i := 0; i < 2; i++ {
		rec := f.do(http.MethodGet, "/api/view")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		var res render.Result
		json.Unmarshal(rec.Body.Bytes(), &res)
		if res.Failure == nil || res.Failure.Message != render.FailureMessage {
			t.Errorf("failure = %+v", res.Failure)
		}
	}
	if f.recorder.failures != 1 {
		t.Errorf("RenderFailed recorded %d times, want 1", f.recorder.failures)
	}
}

func TestHandleStatus(t *testing.T) {
	f := newAPIFixture(t, testState(4, false), nil)

	var resp StatusResponse
	rec := f.do(http.MethodGet, "/api/status")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Health != "ok" {
		t.Errorf("Health = %q, want ok", resp.Health)
	}
	if resp.SessionID != "session-1" || resp.SeriesLength != 4 || resp.DashboardClients != 3 {
		t.Errorf("status = %+v", resp)
	}

	state := testState(4, false)
	state.Connection = stream.StateDisconnected
	f.store.Commit(state)
	rec = f.do(http.MethodGet, "/api/status")
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Health != "degraded" {
		t.Errorf("Health = %q after disconnect, want degraded", resp.Health)
	}
}

func TestHandleEvents_Limit(t *testing.T) {
	f := newAPIFixture(t, testState(0, false), nil)
	for i := 0; i < 30; i++ {
		f.api.RecordEvent(viewer.Event{Type: viewer.EventDecodeError, Time: time.Now()})
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"?limit=5", 5},
		{"?limit=500", 30},
		{"?limit=-1", 20},
	}
	for _, tt := range tests {
		var resp EventsResponse
		rec := f.do(http.MethodGet, "/api/events"+tt.query)
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Count != tt.want {
			t.Errorf("GET /api/events%s count = %d, want %d", tt.query, resp.Count, tt.want)
		}
	}
}

func TestHandleChartPNG(t *testing.T) {
	f := newAPIFixture(t, testState(6, false), nil)

	rec := f.do(http.MethodGet, "/api/charts/crowd.png?width=320&height=120")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("png.Decode() error: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 120 {
		t.Errorf("size = %v, want 320x120", b.Size())
	}

	if rec := f.do(http.MethodGet, "/api/charts/temperature.png"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown metric status = %d, want 404", rec.Code)
	}
}

func TestHandleFrame(t *testing.T) {
	f := newAPIFixture(t, testState(1, false), nil)

	if rec := f.do(http.MethodGet, "/api/frame"); rec.Code != http.StatusNoContent {
		t.Errorf("no frame status = %d, want 204", rec.Code)
	}

	state := testState(1, false)
	state.Frame = testJPEG(t, 200, 100)
	f.store.Commit(state)
	rec := f.do(http.MethodGet, "/api/frame")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	img, err := jpeg.Decode(rec.Body)
	if err != nil {
		t.Fatalf("jpeg.Decode() error: %v", err)
	}
	if img.Bounds().Dx() != 64 {
		t.Errorf("width = %d, want 64 (FrameMaxWidth)", img.Bounds().Dx())
	}

	state.Frame = []byte("not an image")
	f.store.Commit(state)
	if rec := f.do(http.MethodGet, "/api/frame"); rec.Code != http.StatusBadGateway {
		t.Errorf("invalid frame status = %d, want 502", rec.Code)
	}
}

func TestHandleReload(t *testing.T) {
	f := newAPIFixture(t, testState(1, false), nil)

	rec := f.do(http.MethodPost, "/api/reload")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if f.reloader.calls != 1 || f.recorder.reloads != 1 {
		t.Errorf("calls = %d reloads = %d, want 1/1", f.reloader.calls, f.recorder.reloads)
	}

	f.reloader.err = errors.New("dial refused")
	rec = f.do(http.MethodPost, "/api/reload")
	var resp ReloadResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusOK || resp.Error != "dial refused" {
		t.Errorf("status = %d error = %q, want 200 with the dial error", rec.Code, resp.Error)
	}

	f.reloader.err = viewer.ErrNotStarted
	if rec := f.do(http.MethodPost, "/api/reload"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("not started status = %d, want 503", rec.Code)
	}

	if rec := f.do(http.MethodGet, "/api/reload"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

func TestHandleReload_Unavailable(t *testing.T) {
	store := viewer.NewStore()
	api := NewDashboardAPI(store, render.NewBoundary(render.DefaultOptions(), nil), nil, nil, nil, nil, DashboardAPIConfig{}, nil)

	rec := httptest.NewRecorder()
	api.HandleReload(rec, httptest.NewRequest(http.MethodPost, "/api/reload", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
