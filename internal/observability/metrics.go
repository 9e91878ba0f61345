package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Statement outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeFailure = "failure"
)

var (
	statementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kqlpad_statements_total",
			Help: "Total number of executed statements by outcome.",
		},
		[]string{"outcome"},
	)

	statementErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kqlpad_statement_errors_total",
			Help: "Total number of failed statements by error category.",
		},
		[]string{"category"},
	)

	statementDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kqlpad_statement_duration_seconds",
			Help:    "Statement execution latency by connection kind.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(statementsTotal, statementErrorsTotal, statementDurationSeconds)
}

// ObserveStatement records one completed execution. category is empty for
// successful statements.
func ObserveStatement(kind, outcome, category string, elapsed time.Duration) {
	statementsTotal.WithLabelValues(outcome).Inc()
	if category != "" {
		statementErrorsTotal.WithLabelValues(category).Inc()
	}
	statementDurationSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
}
