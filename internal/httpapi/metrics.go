package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/John-Robertt/subforge/internal/fetch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so independent handlers (and tests) never
// share counters.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	appErrors        *prometheus.CounterVec
	fetchFailures    *prometheus.CounterVec
	synthDuration    prometheus.Histogram
	generatedProxies prometheus.Histogram
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "subforge_http_requests_total",
			Help: "HTTP requests by route pattern and status.",
		}, []string{"pattern", "status"}),
		appErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "subforge_app_errors_total",
			Help: "Application errors returned to clients.",
		}, []string{"stage", "code"}),
		fetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "subforge_remote_fetch_failures_total",
			Help: "Remote subscription fetches that degraded to an empty document.",
		}, []string{"code"}),
		synthDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "subforge_synthesis_duration_seconds",
			Help:    "Time spent synthesizing one configuration, remote fetch included.",
			Buckets: prometheus.DefBuckets,
		}),
		generatedProxies: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "subforge_generated_proxies",
			Help:    "Proxy entries in each generated configuration.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

func (m *Metrics) IncRequest(pattern string, status int) {
	if status == 0 {
		status = http.StatusOK
	}
	if pattern == "" {
		pattern = "(unknown)"
	}
	m.httpRequests.WithLabelValues(pattern, strconv.Itoa(status)).Inc()
}

func (m *Metrics) IncAppError(stage, code string) {
	stage = strings.TrimSpace(stage)
	code = strings.TrimSpace(code)
	if stage == "" {
		stage = "(unknown)"
	}
	if code == "" {
		code = "(unknown)"
	}
	m.appErrors.WithLabelValues(stage, code).Inc()
}

// ObserveFetchError counts a swallowed remote fetch error by its code. It is
// meant for fetch.SoftFetcher.OnError.
func (m *Metrics) ObserveFetchError(err error) {
	code := "UNKNOWN"
	var fe *fetch.FetchError
	if errors.As(err, &fe) && fe.AppError.Code != "" {
		code = fe.AppError.Code
	}
	m.fetchFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveSynthesis(d time.Duration, proxies int) {
	m.synthDuration.Observe(d.Seconds())
	m.generatedProxies.Observe(float64(proxies))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
