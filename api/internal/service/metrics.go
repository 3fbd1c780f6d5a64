package service

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeOK       = "ok"
	outcomeEmpty    = "empty_input"
	outcomeNotReady = "not_loaded"
	outcomeFailed   = "failed"
	outcomeAborted  = "aborted"
)

type Metrics struct {
	Predictions *prometheus.CounterVec
	Duration    prometheus.Histogram
	QueueDepth  prometheus.Gauge
}

// NewMetrics регистрирует метрики в reg; nil reg — метрики без регистрации (тесты, CLI).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viral_predictions_total",
			Help: "Predictions by outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "viral_prediction_duration_seconds",
			Help:    "Time spent in the inference engine.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "viral_pool_queue_depth",
			Help: "Jobs waiting for a prediction worker.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Predictions, m.Duration, m.QueueDepth)
	}
	return m
}
