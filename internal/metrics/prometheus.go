package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Execution outcomes used as the "outcome" label.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeTimeout    = "timeout"
	OutcomeInfraError = "infra_error"
)

var (
	// ExecutionsTotal counts interpreter runs by outcome.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyshala_executions_total",
			Help: "Total number of code executions",
		},
		[]string{"outcome"},
	)

	// ExecutionDuration tracks the wall-clock duration of interpreter runs in seconds.
	ExecutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pyshala_execution_duration_seconds",
			Help:    "Duration of code executions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	// TestCasesTotal counts graded test cases by verdict.
	TestCasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyshala_test_cases_total",
			Help: "Total number of graded test cases",
		},
		[]string{"verdict"},
	)

	// WorkspaceCleanupFailures counts workspaces that could not be removed.
	WorkspaceCleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pyshala_workspace_cleanup_failures_total",
			Help: "Total number of workspace directories that failed to be removed",
		},
	)

	// WorkersActive tracks the number of currently busy grading workers.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pyshala_workers_active",
			Help: "Number of currently active worker goroutines",
		},
	)

	// SubmissionsTotal counts asynchronous submissions processed by the worker by final status.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyshala_submissions_total",
			Help: "Total number of grading submissions processed",
		},
		[]string{"status"},
	)
)
