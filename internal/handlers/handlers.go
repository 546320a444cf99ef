package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"atrium/internal/middleware"
	"atrium/internal/moderation"

	"github.com/rs/zerolog/log"
)

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	engine *moderation.Engine
	staff  *moderation.Staff
	store  moderation.Store
}

// New creates a Handler wired to the moderation engine, the staff roster
// and the backing store.
func New(engine *moderation.Engine, staff *moderation.Staff, store moderation.Store) *Handler {
	return &Handler{
		engine: engine,
		staff:  staff,
		store:  store,
	}
}

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Error         string `json:"error"`
	Field         string `json:"field,omitempty"`
	CurrentStatus string `json:"current_status,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps domain errors onto HTTP status codes. Anything the
// moderation package does not classify becomes a 500.
func writeError(w http.ResponseWriter, err error) {
	var validationErr *moderation.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Message, Field: validationErr.Field})
		return
	}

	var notFoundErr *moderation.NotFoundError
	if errors.As(err, &notFoundErr) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: notFoundErr.Error()})
		return
	}

	var transitionErr *moderation.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:         transitionErr.Error(),
			CurrentStatus: string(transitionErr.Current),
		})
		return
	}

	var stateErr *moderation.InvalidStateError
	if errors.As(err, &stateErr) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: stateErr.Error()})
		return
	}

	var conflictErr *moderation.ConcurrencyConflictError
	if errors.As(err, &conflictErr) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: conflictErr.Error()})
		return
	}

	log.Error().Err(err).Msg("Unhandled error in request")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
}

// requireActor returns the caller identity from the request context or
// writes a 401 and returns false.
func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := middleware.GetActor(r.Context())
	if actor == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
		return "", false
	}
	return actor, true
}

// requirePermission checks the staff roster for the given permission and
// writes a 403 on failure.
func (h *Handler) requirePermission(w http.ResponseWriter, r *http.Request, perm moderation.Permission) (string, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return "", false
	}
	if h.staff == nil || !h.staff.HasPermission(actor, perm) {
		log.Warn().Str("actor", actor).Str("path", r.URL.Path).Msg("Denied: insufficient permissions")
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Permission denied"})
		return "", false
	}
	return actor, true
}

// parseEntityRef reads the {kind} and {id} path values and validates the kind.
func parseEntityRef(w http.ResponseWriter, r *http.Request) (moderation.EntityKind, string, bool) {
	kind := moderation.EntityKind(r.PathValue("kind"))
	if !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Unknown entity kind", Field: "kind"})
		return "", "", false
	}
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Entity ID is required", Field: "id"})
		return "", "", false
	}
	return kind, id, true
}
