package handler

import (
	"encoding/json"
	"net/http"

	"atelier-sync-core/internal/domain"
	"atelier-sync-core/internal/service"
	"atelier-sync-core/pkg/response"

	"github.com/go-playground/validator/v10"
)

type SyncHandler struct {
	orchestrator  *service.SyncOrchestrator
	changeService *service.ChangeService
	validate      *validator.Validate
}

func NewSyncHandler(orchestrator *service.SyncOrchestrator, changeService *service.ChangeService) *SyncHandler {
	return &SyncHandler{
		orchestrator:  orchestrator,
		changeService: changeService,
		validate:      validator.New(),
	}
}

// Trigger runs one sync cycle. A cycle already in flight is not queued; the
// current state comes back either way.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	state := h.orchestrator.Sync(r.Context())
	response.JSON(w, http.StatusOK, state)
}

func (h *SyncHandler) State(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.orchestrator.State())
}

type recordChangeRequest struct {
	EntityType string            `json:"entity_type" validate:"required"`
	EntityID   string            `json:"entity_id" validate:"required"`
	ChangeType domain.ChangeType `json:"change_type" validate:"required,oneof=create update delete"`
	Before     map[string]any    `json:"before"`
	After      map[string]any    `json:"after"`
}

// RecordChange appends a local mutation to the change log on behalf of an
// entity store.
func (h *SyncHandler) RecordChange(w http.ResponseWriter, r *http.Request) {
	var req recordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	change, err := h.changeService.Record(req.EntityType, req.EntityID, req.ChangeType, req.Before, req.After)
	if err != nil {
		response.InternalError(w, "failed to record change")
		return
	}

	response.JSON(w, http.StatusCreated, change)
}

func (h *SyncHandler) ChangeHistory(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	entityID := r.URL.Query().Get("entity_id")
	if entityType == "" || entityID == "" {
		response.BadRequest(w, "entity_type and entity_id are required")
		return
	}

	changes, err := h.changeService.History(entityType, entityID)
	if err != nil {
		response.InternalError(w, "failed to list changes")
		return
	}

	response.JSON(w, http.StatusOK, changes)
}
