package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"profmon/internal/structures"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits(namespace string)
	IncCacheMisses(namespace string)
	ObservePersistenceDuration(duration time.Duration)
	IncPolls(target, outcome string)
	ObserveFetchDuration(target string, duration time.Duration)
	IncChanges(target, kind string)
	IncSinkFailures(sink string)
	SetNextCheck(target string, at time.Time)
	SetLastHeartbeat(target string, at time.Time)
	SetActiveTargets(count int)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           *prometheus.CounterVec
	cacheMisses         *prometheus.CounterVec
	persistenceDuration prometheus.Histogram
	pollsTotal          *prometheus.CounterVec
	fetchDuration       *prometheus.HistogramVec
	changesTotal        *prometheus.CounterVec
	sinkFailures        *prometheus.CounterVec
	nextCheck           *prometheus.GaugeVec
	lastHeartbeat       *prometheus.GaugeVec
	activeTargets       prometheus.Gauge
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits(namespace string) {
	m.cacheHits.WithLabelValues(namespace).Inc()
}

func (m *MetricsProvider) IncCacheMisses(namespace string) {
	m.cacheMisses.WithLabelValues(namespace).Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncPolls(target, outcome string) {
	m.pollsTotal.WithLabelValues(target, outcome).Inc()
}

func (m *MetricsProvider) ObserveFetchDuration(target string, duration time.Duration) {
	m.fetchDuration.WithLabelValues(target).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncChanges(target, kind string) {
	m.changesTotal.WithLabelValues(target, kind).Inc()
}

func (m *MetricsProvider) IncSinkFailures(sink string) {
	m.sinkFailures.WithLabelValues(sink).Inc()
}

func (m *MetricsProvider) SetNextCheck(target string, at time.Time) {
	m.nextCheck.WithLabelValues(target).Set(float64(at.Unix()))
}

func (m *MetricsProvider) SetLastHeartbeat(target string, at time.Time) {
	m.lastHeartbeat.WithLabelValues(target).Set(float64(at.Unix()))
}

func (m *MetricsProvider) SetActiveTargets(count int) {
	m.activeTargets.Set(float64(count))
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "profmon_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profmon_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "profmon_cache_hits_total",
			Help: "Cache hits by key namespace (pic, targets, target)",
		}, []string{"namespace"}),

		cacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "profmon_cache_misses_total",
			Help: "Cache misses by key namespace (pic, targets, target)",
		}, []string{"namespace"}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "profmon_persistence_duration_seconds",
			Help:    "Duration of state store writes in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		pollsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "profmon_polls_total",
			Help: "Total number of polls per target and outcome",
		}, []string{"target", "outcome"}),

		fetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profmon_fetch_duration_seconds",
			Help:    "Duration of profile fetches in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"target"}),

		changesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "profmon_changes_total",
			Help: "Total number of detected changes per target and kind",
		}, []string{"target", "kind"}),

		sinkFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "profmon_sink_failures_total",
			Help: "Total number of failed notification deliveries per sink",
		}, []string{"sink"}),

		nextCheck: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "profmon_next_check_timestamp_seconds",
			Help: "Unix time of the next scheduled poll per target",
		}, []string{"target"}),

		lastHeartbeat: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "profmon_last_heartbeat_timestamp_seconds",
			Help: "Unix time of the last liveness beat per target",
		}, []string{"target"}),

		activeTargets: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "profmon_active_targets",
			Help: "Number of targets whose runner has not terminated",
		}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits(_ string)                            {}
func (n *noopMetrics) IncCacheMisses(_ string)                          {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) IncPolls(_, _ string)                             {}
func (n *noopMetrics) ObserveFetchDuration(_ string, _ time.Duration)   {}
func (n *noopMetrics) IncChanges(_, _ string)                           {}
func (n *noopMetrics) IncSinkFailures(_ string)                         {}
func (n *noopMetrics) SetNextCheck(_ string, _ time.Time)               {}
func (n *noopMetrics) SetLastHeartbeat(_ string, _ time.Time)           {}
func (n *noopMetrics) SetActiveTargets(_ int)                           {}
