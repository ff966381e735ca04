package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the mandate workflow.
// Tracks write outcomes, overlap rejections and cache invalidations.
type Metrics struct {
	MandateWrites        *prometheus.CounterVec
	OverlapRejected      prometheus.Counter
	CacheKeysInvalidated prometheus.Counter
	InvalidationFailures prometheus.Counter
	WorkflowDuration     *prometheus.HistogramVec
}

// New registers the mandate metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		MandateWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bureau_mandate_writes_total",
			Help: "Committed mandate writes by operation",
		}, []string{"operation"}),
		OverlapRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "bureau_mandate_overlap_rejected_total",
			Help: "Mandate writes rolled back because of an overlapping active mandate",
		}),
		CacheKeysInvalidated: factory.NewCounter(prometheus.CounterOpts{
			Name: "bureau_mandate_cache_keys_invalidated_total",
			Help: "Cached list responses removed after mandate writes",
		}),
		InvalidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "bureau_mandate_cache_invalidation_failures_total",
			Help: "Cache invalidations that failed after a committed write",
		}),
		WorkflowDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bureau_mandate_workflow_duration_seconds",
			Help:    "Duration of mandate workflow operations including the transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// IncrementWrite records a committed write for operation (create, update, delete).
func (m *Metrics) IncrementWrite(operation string) {
	m.MandateWrites.WithLabelValues(operation).Inc()
}

// IncrementOverlapRejected records a write rejected by the overlap check.
func (m *Metrics) IncrementOverlapRejected() {
	m.OverlapRejected.Inc()
}

// AddInvalidated records how many cache keys an invalidation removed.
func (m *Metrics) AddInvalidated(n int) {
	m.CacheKeysInvalidated.Add(float64(n))
}

// IncrementInvalidationFailure records a failed cache invalidation.
func (m *Metrics) IncrementInvalidationFailure() {
	m.InvalidationFailures.Inc()
}

// ObserveWorkflow records the duration of operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveWorkflow(operation string, start time.Time) {
	m.WorkflowDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
