package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xela07ax/retention-registry/internal/domain"
)

type Metrics struct {
	// Traffic + Errors: число операций по виду сущности, операции и исходу
	Operations *prometheus.CounterVec

	// Latency: длительность операции, включая транзакцию хранилища
	Duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		Operations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "retention_engine_operations_total",
			Help: "Total number of versioned engine operations by outcome.",
		}, []string{"kind", "op", "outcome"}), // outcome: ok, not_found, reference_conflict, dangling_reference, validation, storage

		Duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "retention_engine_operation_duration_seconds",
			Help:    "Histogram of versioned engine operation latencies.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"kind", "op"}),
	}
}

// observe вызывается через defer; nil-приемник допустим.
func (m *Metrics) observe(kind domain.EntityKind, op string, start time.Time, err *error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(string(kind), op, domain.Outcome(*err)).Inc()
	m.Duration.WithLabelValues(string(kind), op).Observe(time.Since(start).Seconds())
}
