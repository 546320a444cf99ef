package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"atrium/internal/middleware"
	"atrium/internal/moderation"

	"github.com/rs/zerolog/log"
)

// registerEntityRequest is the request body for registering an entity
type registerEntityRequest struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	OwnerID string `json:"owner_id,omitempty"`
}

// EntityView is the staff-facing JSON shape of a moderated entity.
type EntityView struct {
	ID                string                  `json:"id"`
	Kind              moderation.EntityKind   `json:"kind"`
	OwnerID           string                  `json:"owner_id"`
	Status            moderation.Status       `json:"status"`
	Warnings          []moderation.Warning    `json:"warnings,omitempty"`
	SanctionRemaining *moderation.Remaining   `json:"sanction_remaining,omitempty"`
	AllowedActions    []moderation.ActionKind `json:"allowed_actions"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

func entityView(e *moderation.Entity) EntityView {
	return EntityView{
		ID:                e.ID,
		Kind:              e.Kind,
		OwnerID:           e.OwnerID,
		Status:            e.Status,
		Warnings:          e.Warnings,
		SanctionRemaining: moderation.SanctionRemaining(e.Sanction, time.Now()),
		AllowedActions:    moderation.AllowedActions(e.Kind, e.Status),
		UpdatedAt:         e.UpdatedAt,
	}
}

// publicEntityView is what anonymous and unrelated callers see.
type publicEntityView struct {
	ID      string                `json:"id"`
	Kind    moderation.EntityKind `json:"kind"`
	Visible bool                  `json:"visible"`
}

// ownerEntityView adds the fields an owner may see about their own entity.
type ownerEntityView struct {
	publicEntityView
	Status            moderation.Status     `json:"status"`
	Warnings          []moderation.Warning  `json:"warnings,omitempty"`
	SanctionRemaining *moderation.Remaining `json:"sanction_remaining,omitempty"`
}

// HandleRegisterEntity handles POST /api/entities.
// The wider platform calls this when a user signs up or a project is created.
func (h *Handler) HandleRegisterEntity(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}

	var req registerEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}

	kind := moderation.EntityKind(req.Kind)
	if !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Unknown entity kind", Field: "kind"})
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id is required", Field: "id"})
		return
	}

	entity, err := h.engine.RegisterEntity(r.Context(), kind, req.ID, req.OwnerID)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info().Str("entity", entity.Key()).Msg("Entity registered for moderation tracking")
	writeJSON(w, http.StatusCreated, entityView(entity))
}

// HandleGetUser handles GET /api/users/{id}
func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	h.serveEntity(w, r, moderation.KindUser)
}

// HandleGetProject handles GET /api/projects/{id}
func (h *Handler) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	h.serveEntity(w, r, moderation.KindProject)
}

// serveEntity applies the visibility gate: anyone sees active entities,
// owners additionally see their own non-deleted ones with status and
// sanction clock attached. Everything else reads as not visible.
func (h *Handler) serveEntity(w http.ResponseWriter, r *http.Request, kind moderation.EntityKind) {
	id := r.PathValue("id")

	entity, err := h.engine.GetEntity(r.Context(), kind, id)
	if err != nil {
		writeError(w, err)
		return
	}

	actor := middleware.GetActor(r.Context())
	if actor != "" && actor == entity.OwnerID {
		if !moderation.VisibleToOwner(entity) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "Entity not found"})
			return
		}
		writeJSON(w, http.StatusOK, ownerEntityView{
			publicEntityView: publicEntityView{
				ID:      entity.ID,
				Kind:    entity.Kind,
				Visible: moderation.PubliclyVisible(entity),
			},
			Status:            entity.Status,
			Warnings:          entity.Warnings,
			SanctionRemaining: moderation.SanctionRemaining(entity.Sanction, time.Now()),
		})
		return
	}

	if !moderation.PubliclyVisible(entity) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Entity not found"})
		return
	}

	writeJSON(w, http.StatusOK, publicEntityView{
		ID:      entity.ID,
		Kind:    entity.Kind,
		Visible: true,
	})
}
