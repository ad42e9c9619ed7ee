package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TrustScores     prometheus.Histogram
	ColdStarts      prometheus.Counter
	Adaptations     prometheus.Counter
	LowTrust        prometheus.Counter
	BaselineRaces   prometheus.Counter
	ScoringDuration prometheus.Histogram
	EventsPerBatch  prometheus.Histogram
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on reg; tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TrustScores: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ghostauth_trust_score",
			Help:    "Distribution of returned trust scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		ColdStarts: f.NewCounter(prometheus.CounterOpts{
			Name: "ghostauth_trust_cold_starts_total",
			Help: "Sessions that created a user's first baseline",
		}),
		Adaptations: f.NewCounter(prometheus.CounterOpts{
			Name: "ghostauth_trust_baseline_adaptations_total",
			Help: "Baselines replaced after a high-trust session",
		}),
		LowTrust: f.NewCounter(prometheus.CounterOpts{
			Name: "ghostauth_trust_low_scores_total",
			Help: "Sessions scored at or below the low-trust threshold",
		}),
		BaselineRaces: f.NewCounter(prometheus.CounterOpts{
			Name: "ghostauth_trust_baseline_races_total",
			Help: "Baseline writes lost to a concurrent writer and recomputed",
		}),
		ScoringDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ghostauth_trust_scoring_duration_seconds",
			Help:    "Time spent scoring one batch, storage included",
			Buckets: prometheus.DefBuckets,
		}),
		EventsPerBatch: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ghostauth_trust_events_per_batch",
			Help:    "Number of telemetry events per scored batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

func (m *Metrics) ObserveScore(score int, events int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TrustScores.Observe(float64(score))
	m.EventsPerBatch.Observe(float64(events))
	m.ScoringDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncrementColdStarts() {
	if m == nil {
		return
	}
	m.ColdStarts.Inc()
}

func (m *Metrics) IncrementAdaptations() {
	if m == nil {
		return
	}
	m.Adaptations.Inc()
}

func (m *Metrics) IncrementLowTrust() {
	if m == nil {
		return
	}
	m.LowTrust.Inc()
}

func (m *Metrics) IncrementBaselineRaces() {
	if m == nil {
		return
	}
	m.BaselineRaces.Inc()
}
