package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	modeRead  = "read"
	modeWrite = "write"
)

// Metrics holds the Prometheus collectors of a cache. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	LockRequests   *prometheus.CounterVec
	LockQueued     *prometheus.CounterVec
	LockPromotions *prometheus.CounterVec
	LockCancelled  *prometheus.CounterVec
	LockWait       *prometheus.HistogramVec

	LockManagers prometheus.Gauge

	Diagnostics *prometheus.CounterVec
}

// NewMetrics creates and registers the cache collectors on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LockRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_requests_total",
			Help:      "Total number of lock requests",
		}, []string{"mode"}),
		LockQueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_queued_total",
			Help:      "Total number of lock requests that had to wait",
		}, []string{"mode"}),
		LockPromotions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_promotions_total",
			Help:      "Total number of waiting locks promoted on release",
		}, []string{"mode"}),
		LockCancelled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_cancelled_total",
			Help:      "Total number of lock requests abandoned while waiting",
		}, []string{"mode"}),
		LockWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time from lock request to activation in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"mode"}),
		LockManagers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lock_managers",
			Help:      "Number of keys with a lock manager",
		}),
		Diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Total number of lock protocol violations reported",
		}, []string{"kind"}),
	}
}

func mode(isWrite bool) string {
	if isWrite {
		return modeWrite
	}
	return modeRead
}

func (m *Metrics) requested(isWrite bool) {
	if m == nil {
		return
	}
	m.LockRequests.WithLabelValues(mode(isWrite)).Inc()
}

func (m *Metrics) queued(isWrite bool) {
	if m == nil {
		return
	}
	m.LockQueued.WithLabelValues(mode(isWrite)).Inc()
}

func (m *Metrics) promoted(isWrite bool) {
	if m == nil {
		return
	}
	m.LockPromotions.WithLabelValues(mode(isWrite)).Inc()
}

func (m *Metrics) cancelled(isWrite bool) {
	if m == nil {
		return
	}
	m.LockCancelled.WithLabelValues(mode(isWrite)).Inc()
}

func (m *Metrics) waited(isWrite bool, d time.Duration) {
	if m == nil {
		return
	}
	m.LockWait.WithLabelValues(mode(isWrite)).Observe(d.Seconds())
}

func (m *Metrics) managerAdded() {
	if m == nil {
		return
	}
	m.LockManagers.Inc()
}

func (m *Metrics) managersRemoved(n int) {
	if m == nil {
		return
	}
	m.LockManagers.Sub(float64(n))
}

func (m *Metrics) diagnosed(kind string) {
	if m == nil {
		return
	}
	m.Diagnostics.WithLabelValues(kind).Inc()
}
