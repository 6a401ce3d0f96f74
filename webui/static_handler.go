package webui

import (
	"io/fs"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"crowdview/render"
	"crowdview/webui/static"
)

// StaticAssetHandler serves the embedded dashboard assets and the
// dashboard page itself.
type StaticAssetHandler struct {
	fs          fs.FS
	files       http.Handler
	prefix      string
	enableCache bool
	cacheMaxAge int

	// failure reports a latched render failure; while non-nil the
	// dashboard page is replaced by the fallback page.
	failure func() *render.Failure
}

// StaticAssetConfig configures the StaticAssetHandler.
type StaticAssetConfig struct {
	// Prefix is the URL prefix for static assets (default: "/static")
	Prefix string

	// EnableCache enables cache headers (default: false)
	EnableCache bool

	// CacheMaxAge is the max-age in seconds for cache headers (default: 3600)
	CacheMaxAge int
}

// DefaultStaticAssetConfig returns a default configuration.
func DefaultStaticAssetConfig() StaticAssetConfig {
	return StaticAssetConfig{
		Prefix:      "/static",
		CacheMaxAge: 3600,
	}
}

// NewStaticAssetHandler serves the embedded filesystem. failure may be nil.
func NewStaticAssetHandler(config StaticAssetConfig, failure func() *render.Failure) *StaticAssetHandler {
	return NewStaticAssetHandlerWithFS(static.GetFS(), config, failure)
}

// NewStaticAssetHandlerWithFS serves fsys instead of the embedded assets.
func NewStaticAssetHandlerWithFS(fsys fs.FS, config StaticAssetConfig, failure func() *render.Failure) *StaticAssetHandler {
	if config.Prefix == "" {
		config.Prefix = "/static"
	}
	if config.CacheMaxAge <= 0 {
		config.CacheMaxAge = 3600
	}
	return &StaticAssetHandler{
		fs:          fsys,
		files:       http.FileServerFS(fsys),
		prefix:      config.Prefix,
		enableCache: config.EnableCache,
		cacheMaxAge: config.CacheMaxAge,
		failure:     failure,
	}
}

// ServeHTTP serves one asset. The request path must already have the
// prefix stripped.
func (h *StaticAssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.setCacheHeaders(w)
	h.files.ServeHTTP(w, r)
}

// ServeDashboard serves index.html, or the fallback page with HTTP 500
// while the render boundary is latched.
func (h *StaticAssetHandler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if h.failure != nil {
		if f := h.failure(); f != nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			RenderFallbackPage(w, *f)
			return
		}
	}

	data, err := fs.ReadFile(h.fs, "index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// RegisterRoutes mounts the assets under the prefix and the dashboard at
// / and /dashboard.
func (h *StaticAssetHandler) RegisterRoutes(r *mux.Router) {
	r.PathPrefix(h.prefix + "/").Handler(http.StripPrefix(h.prefix, h)).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/dashboard", h.ServeDashboard).Methods(http.MethodGet)
	r.Handle("/", http.RedirectHandler("/dashboard", http.StatusFound)).Methods(http.MethodGet)
}

func (h *StaticAssetHandler) setCacheHeaders(w http.ResponseWriter) {
	if h.enableCache {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(h.cacheMaxAge))
		return
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
}
