// Package evalmetrics records default evaluations as Prometheus metrics.
package evalmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goliatone/go-optfactory"
)

const namespace = "optfactory"

// Collector holds the evaluation metrics and implements
// optfactory.EvaluatorLogger.
type Collector struct {
	Evaluations        *prometheus.CounterVec
	EvaluationErrors   *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		Evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of default evaluations",
			},
			[]string{"engine"},
		),
		EvaluationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluation_errors_total",
				Help:      "Total number of failed default evaluations",
			},
			[]string{"engine"},
		),
		EvaluationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Default evaluation duration in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"engine"},
		),
	}
}

// LogEvaluation implements optfactory.EvaluatorLogger.
func (c *Collector) LogEvaluation(event optfactory.EvaluatorLogEvent) {
	engine := event.Engine
	if engine == "" {
		engine = "unknown"
	}
	c.Evaluations.WithLabelValues(engine).Inc()
	c.EvaluationDuration.WithLabelValues(engine).Observe(event.Duration.Seconds())
	if event.Err != nil {
		c.EvaluationErrors.WithLabelValues(engine).Inc()
	}
}

// Tee fans events out to several loggers, so metrics can sit next to a
// structured logger.
func Tee(loggers ...optfactory.EvaluatorLogger) optfactory.EvaluatorLogger {
	return optfactory.EvaluatorLoggerFunc(func(event optfactory.EvaluatorLogEvent) {
		for _, logger := range loggers {
			if logger != nil {
				logger.LogEvaluation(event)
			}
		}
	})
}
