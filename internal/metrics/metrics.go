// Package metrics holds the Prometheus registry of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for players and their trackers
type Metrics struct {
	registry           *prometheus.Registry
	monitoringMessages *prometheus.CounterVec
	activePlayers      prometheus.Gauge
	blockedRangeSkips  prometheus.Counter
	chapterChanges     prometheus.Counter
	creditChanges      prometheus.Counter
	httpRequests       *prometheus.CounterVec
	monitoringDropped  prometheus.Counter
}

// New creates and registers the metrics on a dedicated registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		monitoringMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pillarbox_monitoring_messages_total",
			Help: "Total number of monitoring messages by event name",
		}, []string{"event"}),
		activePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pillarbox_active_players",
			Help: "Number of player sessions currently alive",
		}),
		blockedRangeSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pillarbox_blocked_range_skips_total",
			Help: "Total number of blocked time ranges skipped",
		}),
		chapterChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pillarbox_chapter_changes_total",
			Help: "Total number of current chapter changes",
		}),
		creditChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pillarbox_credit_changes_total",
			Help: "Total number of current credit changes",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pillarbox_http_requests_total",
			Help: "Total number of HTTP requests by method and status",
		}, []string{"method", "status"}),
		monitoringDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pillarbox_monitoring_store_dropped_total",
			Help: "Total number of monitoring events dropped by the store queue",
		}),
	}

	m.registry = registry
	registry.MustRegister(
		m.monitoringMessages,
		m.activePlayers,
		m.blockedRangeSkips,
		m.chapterChanges,
		m.creditChanges,
		m.httpRequests,
		m.monitoringDropped,
	)

	return m
}

// MonitoringMessages returns the counter fed by monitoring.MetricsHandler
func (m *Metrics) MonitoringMessages() *prometheus.CounterVec {
	return m.monitoringMessages
}

// SetActivePlayers sets the active players gauge
func (m *Metrics) SetActivePlayers(n int) {
	m.activePlayers.Set(float64(n))
}

// IncBlockedRangeSkips increments the blocked range skip counter
func (m *Metrics) IncBlockedRangeSkips() {
	m.blockedRangeSkips.Inc()
}

// IncChapterChanges increments the chapter change counter
func (m *Metrics) IncChapterChanges() {
	m.chapterChanges.Inc()
}

// IncCreditChanges increments the credit change counter
func (m *Metrics) IncCreditChanges() {
	m.creditChanges.Inc()
}

// IncHTTPRequests counts one HTTP request
func (m *Metrics) IncHTTPRequests(method, status string) {
	m.httpRequests.WithLabelValues(method, status).Inc()
}

// AddMonitoringDropped adds events dropped by the monitoring store
func (m *Metrics) AddMonitoringDropped(n int64) {
	if n > 0 {
		m.monitoringDropped.Add(float64(n))
	}
}

// Handler returns an http.Handler that serves the registry.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
