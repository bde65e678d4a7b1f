// Package metrics registers the engine's prometheus collectors. The API
// binary exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts sessions created by professors.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_sessions_created_total",
		Help: "Number of sessions created.",
	})

	// MarksTotal counts successful attendance marks by path.
	MarksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classtrack_attendance_marks_total",
		Help: "Successful attendance marks.",
	}, []string{"method"})

	// MarkRejections counts refused marks by reason.
	MarkRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classtrack_attendance_rejections_total",
		Help: "Rejected attendance marks.",
	}, []string{"reason"})
)
