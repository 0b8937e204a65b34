package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Render outcome labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics collects the Prometheus metrics of the document service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	rendered       *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	pages          *prometheus.HistogramVec
	assetFallbacks prometheus.Counter
}

// NewMetrics initialises the registry with HTTP and render metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	rendered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_documents_rendered_total",
		Help: "Document renders by variant, delivery mode and status.",
	}, []string{"variant", "mode", "status"})
	renderDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_document_render_duration_seconds",
		Help:    "Time spent laying out and encoding a document.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"variant"})
	pages := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_document_pages",
		Help:    "Pages per rendered document.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
	}, []string{"variant"})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odyssey_document_asset_fallbacks_total",
		Help: "Images replaced by a placeholder because they could not be loaded.",
	})
	registry.MustRegister(requests, duration, rendered, renderDuration, pages, fallbacks)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		rendered:        rendered,
		renderDuration:  renderDuration,
		pages:           pages,
		assetFallbacks:  fallbacks,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveRender records one render attempt. pages is ignored for failures.
func (m *Metrics) ObserveRender(variant, mode string, err error, elapsed time.Duration, pages int) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	m.rendered.WithLabelValues(variant, mode, status).Inc()
	m.renderDuration.WithLabelValues(variant).Observe(elapsed.Seconds())
	if err == nil && pages > 0 {
		m.pages.WithLabelValues(variant).Observe(float64(pages))
	}
}

// AssetFallback counts an image that rendered as a placeholder. Its signature
// matches asset.WithFallbackHook.
func (m *Metrics) AssetFallback(string) {
	if m == nil {
		return
	}
	m.assetFallbacks.Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
