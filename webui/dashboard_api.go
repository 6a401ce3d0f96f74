package webui

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"crowdview/core"
	"crowdview/frame"
	"crowdview/render"
	"crowdview/series"
	"crowdview/stream"
	"crowdview/viewer"
)

// Reloader runs the manual reload. Implemented by *viewer.Controller.
type Reloader interface {
	Reload() error
}

// APIRecorder receives dashboard counters. Implemented by *metrics.Collector.
type APIRecorder interface {
	ReloadPerformed()
	RenderFailed()
}

// DashboardAPI serves the JSON, PNG and JPEG endpoints behind the
// dashboard.
//
// Endpoints:
//   - GET  /api/view                 current render result (500 on failure)
//   - GET  /api/status               connection, session and counters
//   - GET  /api/events?limit=N       recent session events
//   - GET  /api/charts/{metric}.png  one chart drawn server-side
//   - GET  /api/frame?width=W        latest frame, optionally downscaled
//   - POST /api/reload               manual reload
type DashboardAPI struct {
	store    *viewer.Store
	boundary *render.Boundary
	reloader Reloader
	events   *CircularBuffer[viewer.Event]
	recorder APIRecorder
	clients  func() int
	logger   *zap.Logger

	defaultLimit  int
	maxLimit      int
	frameMaxWidth int
	buildInfo     core.BuildInfo
	startTime     time.Time
}

// DashboardAPIConfig configures the DashboardAPI.
type DashboardAPIConfig struct {
	// DefaultLimit is the default number of events returned
	DefaultLimit int

	// MaxLimit caps the limit query parameter
	MaxLimit int

	// FrameMaxWidth caps /api/frame output width in pixels
	FrameMaxWidth int

	BuildInfo core.BuildInfo
}

// DefaultDashboardAPIConfig returns a default configuration.
func DefaultDashboardAPIConfig() DashboardAPIConfig {
	return DashboardAPIConfig{
		DefaultLimit:  20,
		MaxLimit:      DefaultEventCapacity,
		FrameMaxWidth: 1280,
		BuildInfo:     core.GetBuildInfo(),
	}
}

// NewDashboardAPI wires the API. reloader, recorder and clients may be nil.
func NewDashboardAPI(
	store *viewer.Store,
	boundary *render.Boundary,
	reloader Reloader,
	events *CircularBuffer[viewer.Event],
	recorder APIRecorder,
	clients func() int,
	config DashboardAPIConfig,
	logger *zap.Logger,
) *DashboardAPI {
	def := DefaultDashboardAPIConfig()
	if config.DefaultLimit < 1 {
		config.DefaultLimit = def.DefaultLimit
	}
	if config.MaxLimit < 1 {
		config.MaxLimit = def.MaxLimit
	}
	if config.FrameMaxWidth < 1 {
		config.FrameMaxWidth = def.FrameMaxWidth
	}
	if events == nil {
		events = NewCircularBuffer[viewer.Event](DefaultEventCapacity)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DashboardAPI{
		store:         store,
		boundary:      boundary,
		reloader:      reloader,
		events:        events,
		recorder:      recorder,
		clients:       clients,
		logger:        logger,
		defaultLimit:  config.DefaultLimit,
		maxLimit:      config.MaxLimit,
		frameMaxWidth: config.FrameMaxWidth,
		buildInfo:     config.BuildInfo,
		startTime:     time.Now(),
	}
}

// RegisterRoutes registers all API routes on r.
func (api *DashboardAPI) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/view", api.HandleView).Methods(http.MethodGet)
	r.HandleFunc("/api/status", api.HandleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/events", api.HandleEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/charts/{metric}.png", api.HandleChartPNG).Methods(http.MethodGet)
	r.HandleFunc("/api/frame", api.HandleFrame).Methods(http.MethodGet)
	r.HandleFunc("/api/reload", api.HandleReload).Methods(http.MethodPost)
}

// Render renders the current state through the boundary and records a
// newly latched failure.
func (api *DashboardAPI) Render() render.Result {
	wasFailed := api.boundary.Failed()
	res := api.boundary.Render(api.store.Get())
	if res.Failed() && !wasFailed && api.recorder != nil {
		api.recorder.RenderFailed()
	}
	return res
}

// HandleView handles GET /api/view.
func (api *DashboardAPI) HandleView(w http.ResponseWriter, r *http.Request) {
	res := api.Render()
	if res.Failed() {
		api.writeJSON(w, http.StatusInternalServerError, res)
		return
	}
	api.writeJSON(w, http.StatusOK, res)
}

// StatusResponse represents the JSON response for /api/status.
type StatusResponse struct {
	Health           string           `json:"health"`
	Connection       stream.ConnState `json:"connection"`
	SessionID        string           `json:"session_id"`
	Counters         viewer.Counters  `json:"counters"`
	SeriesLength     int              `json:"series_length"`
	RenderFailed     bool             `json:"render_failed"`
	DashboardClients int              `json:"dashboard_clients"`
	Uptime           string           `json:"uptime"`
	UptimeSecs       float64          `json:"uptime_secs"`
	LastUpdate       time.Time        `json:"last_update"`
	Version          string           `json:"version"`
	BuildTime        string           `json:"build_time,omitempty"`
	GitCommit        string           `json:"git_commit,omitempty"`
}

// HandleStatus handles GET /api/status. Health is "ok" while connected and
// rendering, "degraded" otherwise.
func (api *DashboardAPI) HandleStatus(w http.ResponseWriter, r *http.Request) {
	state := api.store.Get()
	failed := api.boundary.Failed()
	uptime := time.Since(api.startTime)

	health := "ok"
	if failed || state.Connection != stream.StateConnected {
		health = "degraded"
	}

	resp := StatusResponse{
		Health:       health,
		Connection:   state.Connection,
		SessionID:    state.SessionID,
		Counters:     state.Counters,
		SeriesLength: state.Series.Len(),
		RenderFailed: failed,
		Uptime:       FormatDuration(uptime),
		UptimeSecs:   uptime.Seconds(),
		LastUpdate:   state.UpdatedAt,
		Version:      api.buildInfo.Version,
		BuildTime:    api.buildInfo.BuildTime,
		GitCommit:    api.buildInfo.GitCommit,
	}
	if api.clients != nil {
		resp.DashboardClients = api.clients()
	}
	api.writeJSON(w, http.StatusOK, resp)
}

// EventsResponse represents the JSON response for /api/events.
type EventsResponse struct {
	Events []viewer.Event `json:"events"`
	Count  int            `json:"count"`
	Limit  int            `json:"limit"`
}

// HandleEvents handles GET /api/events.
// Query parameters:
//   - limit: number of events to return (default: 20, max: 100)
func (api *DashboardAPI) HandleEvents(w http.ResponseWriter, r *http.Request) {
	limit := api.defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	limit = min(limit, api.maxLimit)

	events := api.events.GetLast(limit)
	api.writeJSON(w, http.StatusOK, EventsResponse{Events: events, Count: len(events), Limit: limit})
}

// HandleChartPNG handles GET /api/charts/{metric}.png.
// Query parameters:
//   - width, height: image size in pixels (defaults 640x240, max 2000)
func (api *DashboardAPI) HandleChartPNG(w http.ResponseWriter, r *http.Request) {
	metric := series.Metric(mux.Vars(r)["metric"])
	if !metric.Valid() {
		api.writeError(w, http.StatusNotFound, "unknown metric "+strconv.Quote(string(metric)))
		return
	}

	res := api.Render()
	if res.Failed() {
		api.writeJSON(w, http.StatusInternalServerError, res)
		return
	}

	var chart *render.Chart
	for i := range res.View.Charts {
		if res.View.Charts[i].Metric == metric {
			chart = &res.View.Charts[i]
			break
		}
	}
	if chart == nil {
		api.writeError(w, http.StatusNotFound, "no chart for "+string(metric))
		return
	}

	width := queryInt(r, "width", render.DefaultChartWidth, 2000)
	height := queryInt(r, "height", render.DefaultChartHeight, 2000)

	var buf bytes.Buffer
	if err := render.ChartPNG(&buf, *chart, width, height); err != nil {
		api.logger.Error("chart render failed", zap.String("metric", string(metric)), zap.Error(err))
		api.writeError(w, http.StatusInternalServerError, "chart render failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// HandleFrame handles GET /api/frame. It returns 204 when no frame is
// shown.
// Query parameters:
//   - width: maximum width in pixels (default and cap: FRAME_MAX_WIDTH)
func (api *DashboardAPI) HandleFrame(w http.ResponseWriter, r *http.Request) {
	state := api.store.Get()
	if !state.HasFrame() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	width := queryInt(r, "width", api.frameMaxWidth, api.frameMaxWidth)
	data, err := frame.Fit(state.Frame, width)
	if err != nil {
		api.logger.Warn("frame could not be decoded", zap.Error(err))
		api.writeError(w, http.StatusBadGateway, "latest frame is not a valid image")
		return
	}

	w.Header().Set("Content-Type", frame.ContentType(data))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// ReloadResponse represents the JSON response for /api/reload.
type ReloadResponse struct {
	SessionID  string           `json:"session_id"`
	Connection stream.ConnState `json:"connection"`
	Error      string           `json:"error,omitempty"`
}

// HandleReload handles POST /api/reload. A failed dial still starts a new
// session (in the error state) and is reported in the response body.
func (api *DashboardAPI) HandleReload(w http.ResponseWriter, r *http.Request) {
	if api.reloader == nil {
		api.writeError(w, http.StatusServiceUnavailable, "reload not available")
		return
	}

	err := api.reloader.Reload()
	if errors.Is(err, viewer.ErrNotStarted) {
		api.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if api.recorder != nil {
		api.recorder.ReloadPerformed()
	}

	state := api.store.Get()
	resp := ReloadResponse{SessionID: state.SessionID, Connection: state.Connection}
	if err != nil {
		resp.Error = err.Error()
	}
	api.writeJSON(w, http.StatusOK, resp)
}

// RecordEvent appends e to the event log.
func (api *DashboardAPI) RecordEvent(e viewer.Event) {
	api.events.Push(e)
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (api *DashboardAPI) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		api.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (api *DashboardAPI) writeError(w http.ResponseWriter, status int, message string) {
	api.writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// queryInt reads a positive integer parameter, clamped to max.
func queryInt(r *http.Request, name string, def, max int) int {
	v := def
	if s := r.URL.Query().Get(name); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			v = parsed
		}
	}
	if v > max {
		v = max
	}
	return v
}
