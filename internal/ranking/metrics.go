package ranking

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRankRequests        = "ranking_requests_total"
	MetricCandidatesText      = "ranking_candidates_text_total"
	MetricCandidatesCategory  = "ranking_candidates_categorial_total"
	MetricInvalidRecords      = "ranking_invalid_records_total"
	MetricRankDuration        = "ranking_rank_duration_seconds"
	MetricCalibrationLoaded   = "ranking_calibration_loaded"
)

// Metrics contains Prometheus metrics for candidate scoring.
// All operations are thread-safe.
type Metrics struct {
	requests          prometheus.Counter
	candidatesText    prometheus.Counter
	candidatesCat     prometheus.Counter
	invalidRecords    prometheus.Counter
	rankDuration      prometheus.Histogram
	calibrationLoaded prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRankRequests,
			Help: "Total number of candidate lists ranked",
		}),
		candidatesText: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCandidatesText,
			Help: "Total number of candidates scored for free-text queries",
		}),
		candidatesCat: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCandidatesCategory,
			Help: "Total number of candidates scored for category browse queries",
		}),
		invalidRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricInvalidRecords,
			Help: "Total number of candidate records rejected before scoring",
		}),
		rankDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankDuration,
			Help:    "Histogram of time spent scoring and sorting one candidate list",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		calibrationLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricCalibrationLoaded,
			Help: "1 if a calibration file overrides the default weights, 0 otherwise",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRank records one ranked list and its duration.
func (m *Metrics) ObserveRank(candidates []Candidate, d time.Duration) {
	m.requests.Inc()
	for i := range candidates {
		if candidates[i].Info.CategorialRequest {
			m.candidatesCat.Inc()
		} else {
			m.candidatesText.Inc()
		}
	}
	m.rankDuration.Observe(d.Seconds())
}

// IncInvalidRecords increments the rejected record counter.
func (m *Metrics) IncInvalidRecords() {
	m.invalidRecords.Inc()
}

// SetCalibrationLoaded records whether custom weights are in use.
func (m *Metrics) SetCalibrationLoaded(custom bool) {
	m.calibrationLoaded.Set(boolToFloat(custom))
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.candidatesText,
		m.candidatesCat,
		m.invalidRecords,
		m.rankDuration,
		m.calibrationLoaded,
	}
}
