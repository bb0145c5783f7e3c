// Package metrics holds the process's Prometheus collectors, registered at
// import time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksProcessed counts completed workflow submissions by type and
	// terminal state.
	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctp_tasks_processed_total",
		Help: "Total number of workflow submissions that reached a terminal state",
	}, []string{"type", "state"})

	// TaskPollDuration measures one PollDue sweep's wall-clock cost.
	TaskPollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ctp_task_poll_duration_seconds",
		Help:    "Duration of a single due-task poll sweep",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// CRUDRequests counts generic dispatcher requests by entity and verb.
	CRUDRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctp_crud_requests_total",
		Help: "Total number of generic CRUD dispatcher requests",
	}, []string{"resource", "action", "status"})
)
