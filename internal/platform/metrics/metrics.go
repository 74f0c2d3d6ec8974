package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the livecast platform.
type Metrics struct {
	registry             *prometheus.Registry
	requestsTotal        prometheus.Counter
	errorsTotal          prometheus.Counter
	eventsCreatedTotal   prometheus.Counter
	streamWebhooksTotal  prometheus.Counter
	recordingsReadyTotal prometheus.Counter
	liveEvents           prometheus.Gauge
}

// New creates and registers Prometheus metrics for the platform server.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livecast_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livecast_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	eventsCreatedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livecast_events_created_total",
		Help: "Total number of events created",
	})
	streamWebhooksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livecast_stream_webhooks_total",
		Help: "Total number of stream lifecycle webhooks applied",
	})
	recordingsReadyTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livecast_recordings_ready_total",
		Help: "Total number of recordings that became ready to stream",
	})
	liveEvents := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "livecast_live_events",
		Help: "Number of events currently live",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		eventsCreatedTotal,
		streamWebhooksTotal,
		recordingsReadyTotal,
		liveEvents,
	)

	return &Metrics{
		registry:             registry,
		requestsTotal:        requestsTotal,
		errorsTotal:          errorsTotal,
		eventsCreatedTotal:   eventsCreatedTotal,
		streamWebhooksTotal:  streamWebhooksTotal,
		recordingsReadyTotal: recordingsReadyTotal,
		liveEvents:           liveEvents,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncEventsCreated increments the events created counter.
func (m *Metrics) IncEventsCreated() {
	m.eventsCreatedTotal.Inc()
}

// IncStreamWebhooks increments the stream webhooks counter.
func (m *Metrics) IncStreamWebhooks() {
	m.streamWebhooksTotal.Inc()
}

// IncRecordingsReady increments the recordings ready counter.
func (m *Metrics) IncRecordingsReady() {
	m.recordingsReadyTotal.Inc()
}

// SetLiveEvents sets the live events gauge.
func (m *Metrics) SetLiveEvents(n int) {
	m.liveEvents.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. live events).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
