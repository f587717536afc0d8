package executor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipekit_step_duration_seconds",
			Help:    "Duration of recipe step execution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step_type", "status"},
	)

	stepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipekit_steps_total",
			Help: "Total recipe steps executed by type",
		},
		[]string{"step_type"},
	)

	stepFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipekit_step_failures_total",
			Help: "Total recipe step failures by type",
		},
		[]string{"step_type"},
	)
)

// observeStep records metrics for one step execution.
func observeStep(stepType string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		stepFailures.WithLabelValues(stepType).Inc()
	}
	stepDuration.WithLabelValues(stepType, status).Observe(duration.Seconds())
	stepsTotal.WithLabelValues(stepType).Inc()
}
