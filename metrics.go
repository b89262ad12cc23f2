package yangbind

import (
	"time"

	"github.com/lukeod/yangbind/internal/ly"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of one or more contexts. A nil
// *Metrics records nothing.
type Metrics struct {
	NativeCalls    *prometheus.CounterVec
	NativeDuration *prometheus.HistogramVec
	LogRecords     *prometheus.CounterVec
	CacheLookups   *prometheus.CounterVec
	LiveWrappers   prometheus.Gauge
	OpenContexts   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		NativeCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "yangbind",
				Name:      "native_calls_total",
				Help:      "Native library calls by operation and status",
			},
			[]string{"op", "status"},
		),
		NativeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "yangbind",
				Name:      "native_call_duration_seconds",
				Help:      "Duration of native library calls in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"op"},
		),
		LogRecords: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "yangbind",
				Name:      "log_records_total",
				Help:      "Native log records by level",
			},
			[]string{"level"},
		),
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "yangbind",
				Name:      "identity_cache_lookups_total",
				Help:      "Wrapper identity cache lookups by result",
			},
			[]string{"result"},
		),
		LiveWrappers: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "yangbind",
				Name:      "live_wrappers",
				Help:      "Wrappers currently held in identity caches",
			},
		),
		OpenContexts: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "yangbind",
				Name:      "open_contexts",
				Help:      "Contexts currently open",
			},
		),
	}
}

func (m *Metrics) observeCall(op string, st ly.Status, d time.Duration) {
	if m == nil {
		return
	}
	m.NativeCalls.WithLabelValues(op, st.String()).Inc()
	m.NativeDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) observeRecord(l Level) {
	if m == nil {
		return
	}
	m.LogRecords.WithLabelValues(l.String()).Inc()
}

func (m *Metrics) cacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) wrappers(delta int) {
	if m == nil {
		return
	}
	m.LiveWrappers.Add(float64(delta))
}

func (m *Metrics) contexts(delta int) {
	if m == nil {
		return
	}
	m.OpenContexts.Add(float64(delta))
}
