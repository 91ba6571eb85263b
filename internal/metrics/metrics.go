// file: internal/metrics/metrics.go

package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides centralized metrics collection for the condition engine
type Metrics struct {
	registry *prometheus.Registry

	evaluationsTotal  *prometheus.CounterVec
	definitionErrors  *prometheus.CounterVec
	messagesTotal     *prometheus.CounterVec
	unsupportedTotal  *prometheus.CounterVec
	passDuration      *prometheus.HistogramVec
	definitionsActive *prometheus.GaugeVec

	// Internal counters for atomic operations
	stats struct {
		evaluations uint64
		failures    uint64
	}
}

// NewMetrics creates a new metrics instance with all collectors registered
func NewMetrics(registry *prometheus.Registry, namespace string) (*Metrics, error) {
	m := &Metrics{
		registry: registry,

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of definition evaluations by kind and result",
			},
			[]string{"kind", "result"},
		),
		definitionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "definition_errors_total",
				Help:      "Total number of definitions skipped because of structural or resolution errors",
			},
			[]string{"kind"},
		),
		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Total number of validation messages written by type",
			},
			[]string{"type"},
		),
		unsupportedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unsupported_total",
				Help:      "Total number of permissive results from unknown operators or unsupported control types",
			},
			[]string{"op"},
		),
		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Duration of orchestration passes",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pass"},
		),
		definitionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "definitions_active",
				Help:      "Number of indexed definitions by kind",
			},
			[]string{"kind"},
		),
	}

	collectors := []prometheus.Collector{
		m.evaluationsTotal,
		m.definitionErrors,
		m.messagesTotal,
		m.unsupportedTotal,
		m.passDuration,
		m.definitionsActive,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// GetRegistry returns the Prometheus registry
func (m *Metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncEvaluations(kind, result string) {
	m.evaluationsTotal.WithLabelValues(kind, result).Inc()
	atomic.AddUint64(&m.stats.evaluations, 1)
	if result == "failure" {
		atomic.AddUint64(&m.stats.failures, 1)
	}
}

func (m *Metrics) IncDefinitionErrors(kind string) {
	m.definitionErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncMessages(msgType string) {
	m.messagesTotal.WithLabelValues(msgType).Inc()
}

func (m *Metrics) IncUnsupported(op string) {
	m.unsupportedTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) ObservePassDuration(pass string, d time.Duration) {
	m.passDuration.WithLabelValues(pass).Observe(d.Seconds())
}

func (m *Metrics) SetDefinitionsActive(kind string, count float64) {
	m.definitionsActive.WithLabelValues(kind).Set(count)
}

// GetStats returns current statistics
func (m *Metrics) GetStats() (evaluations, failures uint64) {
	return atomic.LoadUint64(&m.stats.evaluations),
		atomic.LoadUint64(&m.stats.failures)
}
