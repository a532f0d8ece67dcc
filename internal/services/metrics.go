package services

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// RecommendationMetrics counts pipeline outcomes and fallback usage.
type RecommendationMetrics struct {
	outcomes  *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	results   prometheus.Histogram
}

// NewRecommendationMetrics registers the collectors on reg. A collector that
// is already registered is reused.
func NewRecommendationMetrics(reg prometheus.Registerer, logger *logrus.Logger) *RecommendationMetrics {
	m := &RecommendationMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_outcomes_total",
			Help: "Recommendation pipeline outcomes",
		}, []string{"outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_fallbacks_total",
			Help: "Fallback strategies that produced the served list",
		}, []string{"strategy"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "Time spent computing recommendations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"operation"}),
		results: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recommendation_result_size",
			Help:    "Number of products returned per recommendation",
			Buckets: []float64{0, 1, 5, 10, 15, 25, 50},
		}),
	}

	m.outcomes = register(reg, logger, m.outcomes)
	m.fallbacks = register(reg, logger, m.fallbacks)
	m.duration = register(reg, logger, m.duration)
	m.results = register(reg, logger, m.results)

	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, logger *logrus.Logger, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
			return c
		}
		logger.WithError(err).Warn("Failed to register recommendation metric")
	}
	return c
}

func (m *RecommendationMetrics) ObserveOutcome(outcome, strategy string, size int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
	if strategy != "" && strategy != StrategyCollaborative {
		m.fallbacks.WithLabelValues(strategy).Inc()
	}
	m.results.Observe(float64(size))
	m.duration.WithLabelValues("recommend").Observe(elapsed.Seconds())
}

func (m *RecommendationMetrics) ObserveDuration(operation string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
