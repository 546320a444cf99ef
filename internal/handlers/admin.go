package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"atrium/internal/metrics"
	"atrium/internal/moderation"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// actionRequest is the request body for applying an enforcement action
type actionRequest struct {
	Action        string `json:"action"`
	Reason        string `json:"reason,omitempty"`
	DurationHours *int   `json:"duration_hours,omitempty"`
}

// HandleModerationQueue handles GET /api/admin/queue
func (h *Handler) HandleModerationQueue(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requirePermission(w, r, moderation.PermissionViewQueue); !ok {
		return
	}

	kind := moderation.EntityKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Unknown entity kind", Field: "kind"})
		return
	}

	kinds := []moderation.EntityKind{kind}
	if kind == "" {
		kinds = []moderation.EntityKind{moderation.KindUser, moderation.KindProject}
	}

	queue := make([]moderation.QueueEntry, 0)
	for _, k := range kinds {
		entries, err := h.engine.ListReportQueue(r.Context(), k)
		if err != nil {
			writeError(w, err)
			return
		}
		queue = append(queue, entries...)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"queue": queue,
		"count": len(queue),
	})
}

// HandleApplyAction handles POST /api/admin/entities/{kind}/{id}/actions
func (h *Handler) HandleApplyAction(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.requirePermission(w, r, moderation.PermissionSubmitAction)
	if !ok {
		return
	}

	kind, id, ok := parseEntityRef(w, r)
	if !ok {
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}

	action, err := moderation.ParseAction(req.Action, req.Reason, req.DurationHours)
	if err != nil {
		writeError(w, err)
		return
	}

	entity, err := h.engine.ApplyAction(r.Context(), kind, id, action, adminID)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info().
		Str("action", req.Action).
		Str("entity", entity.Key()).
		Str("by", adminID).
		Msg("Enforcement action applied")

	writeJSON(w, http.StatusOK, entityView(entity))
}

// HandleDismissReports handles POST /api/admin/entities/{kind}/{id}/dismiss
func (h *Handler) HandleDismissReports(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.requirePermission(w, r, moderation.PermissionDismissReport)
	if !ok {
		return
	}

	kind, id, ok := parseEntityRef(w, r)
	if !ok {
		return
	}

	entity, err := h.engine.DismissReports(r.Context(), kind, id, adminID)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info().
		Str("entity", entity.Key()).
		Str("by", adminID).
		Msg("Reports dismissed")

	writeJSON(w, http.StatusOK, entityView(entity))
}

// HandleEntityReports handles GET /api/admin/entities/{kind}/{id}/reports
func (h *Handler) HandleEntityReports(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requirePermission(w, r, moderation.PermissionViewQueue); !ok {
		return
	}

	kind, id, ok := parseEntityRef(w, r)
	if !ok {
		return
	}

	reports, err := h.engine.ListReports(r.Context(), kind, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"count":   len(reports),
	})
}

// HandleAuditLog handles GET /api/admin/audit
func (h *Handler) HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requirePermission(w, r, moderation.PermissionViewAuditLog); !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer", Field: "limit"})
			return
		}
		limit = n
	}

	entries, err := h.engine.AuditLog(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// HandleListStaff handles GET /api/admin/staff
func (h *Handler) HandleListStaff(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if h.staff == nil || !h.staff.IsAdmin(actor) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Access denied"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"staff": h.staff.ListStaff(),
	})
}

// HandleAdminStats handles GET /api/admin/stats
func (h *Handler) HandleAdminStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if h.staff == nil || !h.staff.IsAdmin(actor) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Access denied"})
		return
	}

	pending, err := h.store.CountPendingReports(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pending_reports":       pending,
		"pending_reports_gauge": getGaugeValue(metrics.ReportsPending),
	})
}

// getGaugeValue reads the current value of a prometheus.Gauge.
func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	if m.Gauge != nil {
		return m.GetGauge().GetValue()
	}
	return 0
}
