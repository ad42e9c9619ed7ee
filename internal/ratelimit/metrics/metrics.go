package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions *prometheus.CounterVec
	Degraded  prometheus.Gauge
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the collectors on reg; tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ghostauth_ratelimit_decisions_total",
			Help: "Rate limit decisions by outcome",
		}, []string{"outcome"}),
		Degraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "ghostauth_ratelimit_degraded",
			Help: "1 while the shared limiter is bypassed for the in-memory fallback",
		}),
	}
}

func (m *Metrics) IncrementAllowed() {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues("allowed").Inc()
}

func (m *Metrics) IncrementDenied() {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues("denied").Inc()
}

func (m *Metrics) IncrementFailOpen() {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues("fail_open").Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.Degraded.Set(1)
		return
	}
	m.Degraded.Set(0)
}
