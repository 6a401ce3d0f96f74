// Package metrics exposes the viewer's Prometheus metrics on a private
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crowdview/stream"
)

const namespace = "crowdview"

var connStates = []stream.ConnState{
	stream.StateConnecting,
	stream.StateConnected,
	stream.StateDisconnected,
	stream.StateError,
}

// Collector holds every viewer metric. It implements viewer.Recorder.
type Collector struct {
	registry *prometheus.Registry

	messagesReceived prometheus.Counter
	messagesApplied  prometheus.Counter
	decodeErrors     prometheus.Counter
	batchesCommitted prometheus.Counter
	framesDiscarded  prometheus.Counter
	queueDepth       prometheus.Gauge
	connectionState  *prometheus.GaugeVec

	dashboardClients prometheus.Gauge
	reloads          prometheus.Counter
	renderFailures   prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector registers all metrics, plus the Go runtime and process
// collectors, on a new registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Stream messages received from the producer.",
		}),
		messagesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_applied_total",
			Help:      "Decoded messages folded into the chart series.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Malformed stream messages discarded.",
		}),
		batchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_committed_total",
			Help:      "State updates committed to the dashboard.",
		}),
		framesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_discarded_total",
			Help:      "Frames superseded by a later frame in the same batch.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Decoded messages waiting for the next drain.",
		}),
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connection_state",
			Help:      "Upstream connection state; 1 for the current state.",
		}, []string{"state"}),
		dashboardClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dashboard_clients",
			Help:      "Browsers connected to the dashboard WebSocket.",
		}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Manual reloads performed.",
		}),
		renderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_failures_total",
			Help:      "Render failures caught by the error boundary.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Dashboard HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Dashboard HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.messagesReceived,
		c.messagesApplied,
		c.decodeErrors,
		c.batchesCommitted,
		c.framesDiscarded,
		c.queueDepth,
		c.connectionState,
		c.dashboardClients,
		c.reloads,
		c.renderFailures,
		c.httpRequests,
		c.httpDuration,
	)
	for _, s := range connStates {
		c.connectionState.WithLabelValues(s.String()).Set(0)
	}
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) MessageReceived() { c.messagesReceived.Inc() }

func (c *Collector) DecodeError() { c.decodeErrors.Inc() }

func (c *Collector) BatchCommitted(applied, framesDiscarded int) {
	c.batchesCommitted.Inc()
	c.messagesApplied.Add(float64(applied))
	c.framesDiscarded.Add(float64(framesDiscarded))
}

func (c *Collector) QueueDepth(n int) { c.queueDepth.Set(float64(n)) }

// ConnectionChanged marks state as the only current connection state.
func (c *Collector) ConnectionChanged(state stream.ConnState) {
	for _, s := range connStates {
		v := 0.0
		if s == state {
			v = 1
		}
		c.connectionState.WithLabelValues(s.String()).Set(v)
	}
}

func (c *Collector) SetDashboardClients(n int) { c.dashboardClients.Set(float64(n)) }

func (c *Collector) ReloadPerformed() { c.reloads.Inc() }

func (c *Collector) RenderFailed() { c.renderFailures.Inc() }

// ObserveHTTP records one dashboard request. route is the mux route
// template, not the raw path, to keep label cardinality bounded.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
