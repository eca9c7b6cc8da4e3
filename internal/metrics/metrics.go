// Package metrics exposes Prometheus metrics for transfers and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jmylchreest/soundrelay/internal/streaming"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "soundrelay"

// TransferCounter reports the number of in-flight transfers.
type TransferCounter interface {
	ActiveStreamCount() int
	DownloadCount() int
}

// Metrics holds every collector of the server.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	TransfersTotal      *prometheus.CounterVec
	TransferBytesTotal  *prometheus.CounterVec
	PaddingBytesTotal   prometheus.Counter
	TranscodesTotal     *prometheus.CounterVec
	StatusesPrunedTotal prometheus.Counter
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry. transfers may be nil.
func New(transfers TransferCounter) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds. Streams last as long as playback.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600, 3600},
		}, []string{"method", "route"}),

		TransfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Finished transfers by kind and stop reason.",
		}, []string{"kind", "reason"}),

		TransferBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_bytes_total",
			Help:      "Bytes delivered to clients by transfer kind.",
		}, []string{"kind"}),

		PaddingBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "padding_bytes_total",
			Help:      "Zero bytes appended to reach a declared content length.",
		}),

		TranscodesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcodes_total",
			Help:      "Transcoder pipelines started by target format.",
		}, []string{"format"}),

		StatusesPrunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statuses_pruned_total",
			Help:      "Inactive transfer statuses removed by housekeeping.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TransfersTotal,
		m.TransferBytesTotal,
		m.PaddingBytesTotal,
		m.TranscodesTotal,
		m.StatusesPrunedTotal,
	)

	if transfers != nil {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_streams",
				Help:      "Number of streams currently being delivered.",
			}, func() float64 { return float64(transfers.ActiveStreamCount()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_downloads",
				Help:      "Number of downloads currently being delivered.",
			}, func() float64 { return float64(transfers.DownloadCount()) }),
		)
	}

	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveTransfer records the outcome of a finished transfer.
func (m *Metrics) ObserveTransfer(kind streaming.TransferKind, res streaming.Result) {
	if m == nil {
		return
	}
	m.TransfersTotal.WithLabelValues(string(kind), string(res.Reason)).Inc()
	m.TransferBytesTotal.WithLabelValues(string(kind)).Add(float64(res.Written))
	if res.Padded > 0 {
		m.PaddingBytesTotal.Add(float64(res.Padded))
	}
}

// ObserveTranscode records a started transcoder pipeline.
func (m *Metrics) ObserveTranscode(format string) {
	if m == nil {
		return
	}
	m.TranscodesTotal.WithLabelValues(format).Inc()
}

// ObservePruned records statuses removed by housekeeping.
func (m *Metrics) ObservePruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StatusesPrunedTotal.Add(float64(n))
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
