package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"atrium/internal/moderation"

	"github.com/rs/zerolog/log"
)

const (
	// ReportRateLimitPerHour is the maximum reports a user can submit per hour
	ReportRateLimitPerHour = 10
	// MaxReportDetailsLength is the maximum length of the free-form details text
	MaxReportDetailsLength = 500
)

// ReportRequest represents the JSON request for submitting a report
type ReportRequest struct {
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Reason     string `json:"reason"`
	Details    string `json:"details,omitempty"`
}

// ReportResponse represents the JSON response from report submission
type ReportResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleSubmitReport handles POST /api/reports.
// Requires an identified caller, validates input, checks the rate limit,
// and persists the report together with the entity status flip.
func (h *Handler) HandleSubmitReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reporterID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}

	kind := moderation.EntityKind(req.EntityKind)
	if !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Unknown entity kind", Field: "entity_kind"})
		return
	}
	if req.EntityID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "entity_id is required", Field: "entity_id"})
		return
	}

	// Sanitize details, capped to a reasonable length
	details := strings.TrimSpace(req.Details)
	if len(details) > MaxReportDetailsLength {
		details = details[:MaxReportDetailsLength]
	}

	// Check rate limit (10 reports per hour per user)
	oneHourAgo := time.Now().Add(-1 * time.Hour)
	recentCount, err := h.store.CountReportsByReporterSince(ctx, reporterID, oneHourAgo)
	if err != nil {
		log.Error().Err(err).Str("reporter", reporterID).Msg("Failed to check report rate limit")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to process report"})
		return
	}
	if recentCount >= ReportRateLimitPerHour {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Rate limit exceeded. Please try again later."})
		return
	}

	report, err := h.engine.SubmitReport(ctx, kind, req.EntityID, reporterID, moderation.Reason(req.Reason), details)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ReportResponse{
		ID:      report.ID,
		Status:  string(report.Status),
		Message: "Report submitted",
	})
}

// HandleListReportReasons handles GET /api/reports/reasons, returning the
// accepted report categories so clients can build their report forms.
func (h *Handler) HandleListReportReasons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]moderation.Reason{"reasons": moderation.Reasons()})
}
