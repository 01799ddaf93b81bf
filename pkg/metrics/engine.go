package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
)

const outcomeOK = "ok"

// EngineMetrics records order and inventory operations.
type EngineMetrics struct {
	duration     *prometheus.HistogramVec
	outcomes     *prometheus.CounterVec
	insufficient *prometheus.CounterVec
}

// NewEngineMetrics registers the engine metrics on reg. A nil registerer
// yields a no-op recorder.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_engine_operation_duration_seconds",
		Help:    "Duration of engine operations including the transaction.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_engine_operations_total",
		Help: "Engine operations by outcome code.",
	}, []string{"operation", "outcome"})
	insufficient := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_engine_insufficient_stock_total",
		Help: "Operations rejected because stock would go negative.",
	}, []string{"operation"})
	reg.MustRegister(duration, outcomes, insufficient)
	return &EngineMetrics{
		duration:     duration,
		outcomes:     outcomes,
		insufficient: insufficient,
	}
}

// Observe records one finished operation. err decides the outcome label.
func (m *EngineMetrics) Observe(operation string, started time.Time, err error) {
	if m == nil || m.duration == nil {
		return
	}
	operation = normalizeLabel(operation)
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())

	outcome := outcomeOK
	if err != nil {
		outcome = string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(err); typed != nil {
			outcome = string(typed.Code())
		}
	}
	m.outcomes.WithLabelValues(operation, outcome).Inc()
	if outcome == string(pkgerrors.CodeInsufficientStock) {
		m.insufficient.WithLabelValues(operation).Inc()
	}
}
