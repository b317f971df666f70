package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Subsystem: "import",
		Name:      "records_total",
		Help:      "Total number of imported employee-days broken down by outcome.",
	}, []string{"result"})

	importEmployees = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Subsystem: "import",
		Name:      "employees_total",
		Help:      "Total number of employees processed broken down by outcome.",
	}, []string{"result"})

	importDayIssues = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Subsystem: "import",
		Name:      "day_issues_total",
		Help:      "Total number of skipped employee-days broken down by kind.",
	}, []string{"kind"})

	importWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Subsystem: "write",
		Name:      "failures_total",
		Help:      "Total number of attendance store write failures broken down by kind.",
	}, []string{"kind"})

	importRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attendance",
		Subsystem: "import",
		Name:      "run_duration_seconds",
		Help:      "Duration of import runs broken down by final status.",
		Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"status"})
)

func recordRecord(result string) {
	if result == "" {
		result = "other"
	}
	importRecords.WithLabelValues(result).Inc()
}

func recordEmployee(ok bool) {
	result := "error"
	if ok {
		result = "imported"
	}
	importEmployees.WithLabelValues(result).Inc()
}

func recordDayIssue(kind IssueKind) {
	if kind == "" {
		kind = "other"
	}
	importDayIssues.WithLabelValues(string(kind)).Inc()
}

func recordWriteFailure(kind PersistenceKind) {
	if kind == "" {
		kind = PersistenceOther
	}
	importWriteFailures.WithLabelValues(string(kind)).Inc()
}

func observeRun(status string, seconds float64) {
	importRunDuration.WithLabelValues(status).Observe(seconds)
}
