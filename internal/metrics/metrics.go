package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atrium_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})
)

// Moderation metrics
var (
	ReportsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_reports_submitted_total",
		Help: "Total number of reports submitted, by category and entity kind",
	}, []string{"reason", "entity_kind"})

	ActionsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_moderation_actions_total",
		Help: "Total number of enforcement actions applied successfully",
	}, []string{"action", "entity_kind"})

	ActionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atrium_moderation_action_conflicts_total",
		Help: "Total number of enforcement actions rejected due to concurrent modification",
	})

	InvalidTransitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atrium_moderation_invalid_transitions_total",
		Help: "Total number of enforcement actions rejected by the transition table",
	})

	ReportsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atrium_reports_pending",
		Help: "Number of reports currently awaiting a decision",
	})
)

// NormalizePath converts request paths with dynamic segments into
// parameterized patterns to keep metric cardinality bounded.
func NormalizePath(path string) string {
	segments := splitPath(path)
	if len(segments) < 3 || segments[0] != "api" {
		return path
	}

	switch segments[1] {
	case "users", "projects":
		if len(segments) == 3 {
			return "/api/" + segments[1] + "/:id"
		}
	case "admin":
		if segments[2] == "entities" && len(segments) >= 5 {
			rest := ""
			if len(segments) > 5 {
				for _, s := range segments[5:] {
					rest += "/" + s
				}
			}
			return "/api/admin/entities/:kind/:id" + rest
		}
	}

	return path
}

func splitPath(path string) []string {
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i > start {
				segments = append(segments, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		segments = append(segments, path[start:])
	}
	return segments
}
