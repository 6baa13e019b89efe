package launcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stacksampler"

// Metrics are the Prometheus collectors updated by a launcher.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Samples  prometheus.Counter
	Failures prometheus.Counter
	Stacks   prometheus.Counter
	Interval prometheus.Gauge
	Paused   prometheus.Gauge
}

// NewMetrics creates the launcher collectors and registers them with reg,
// unless reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Number of sampling passes completed.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_failures_total",
			Help:      "Number of sampling passes skipped because the stack snapshot failed.",
		}),
		Stacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stacks_recorded_total",
			Help:      "Number of stack signatures recorded.",
		}),
		Interval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interval_seconds",
			Help:      "Configured sleep between two samples.",
		}),
		Paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "paused",
			Help:      "Whether sampling is paused (1) or active (0).",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Samples, m.Failures, m.Stacks, m.Interval, m.Paused)
	}

	return m
}

func (m *Metrics) sampled(stacks int) {
	if m == nil {
		return
	}
	m.Samples.Inc()
	m.Stacks.Add(float64(stacks))
}

func (m *Metrics) failed() {
	if m == nil {
		return
	}
	m.Failures.Inc()
}

func (m *Metrics) setInterval(d time.Duration) {
	if m == nil {
		return
	}
	m.Interval.Set(d.Seconds())
}

func (m *Metrics) setPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.Paused.Set(1)
	} else {
		m.Paused.Set(0)
	}
}
