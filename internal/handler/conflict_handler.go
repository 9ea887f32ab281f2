package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"atelier-sync-core/internal/domain"
	"atelier-sync-core/internal/service"
	"atelier-sync-core/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type ConflictHandler struct {
	conflicts   *service.ConflictService
	suggestions *service.SuggestionService
	validate    *validator.Validate
}

func NewConflictHandler(conflicts *service.ConflictService, suggestions *service.SuggestionService) *ConflictHandler {
	return &ConflictHandler{
		conflicts:   conflicts,
		suggestions: suggestions,
		validate:    validator.New(),
	}
}

func (h *ConflictHandler) List(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	entityID := r.URL.Query().Get("entity_id")

	var (
		conflicts []*domain.SyncConflict
		err       error
	)
	if entityType != "" && entityID != "" {
		conflicts, err = h.conflicts.ListByEntity(entityType, entityID)
	} else {
		conflicts, err = h.conflicts.ListUnresolved()
	}
	if err != nil {
		response.InternalError(w, "failed to list conflicts")
		return
	}

	response.JSON(w, http.StatusOK, conflicts)
}

func (h *ConflictHandler) Get(w http.ResponseWriter, r *http.Request) {
	conflictID := mux.Vars(r)["id"]

	conflict, err := h.conflicts.Get(conflictID)
	if err != nil {
		if errors.Is(err, service.ErrConflictNotFound) {
			response.NotFound(w, "conflict not found")
			return
		}
		response.InternalError(w, "failed to load conflict")
		return
	}

	response.JSON(w, http.StatusOK, conflict)
}

func (h *ConflictHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	conflictID := mux.Vars(r)["id"]

	var req domain.ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	conflict, err := h.conflicts.Resolve(conflictID, req.Strategy, req.ResolvedBy)
	if err != nil {
		var unknownStrategy *service.UnknownStrategyError
		var mergeFailed *service.MergeConflictError
		switch {
		case errors.Is(err, service.ErrConflictNotFound):
			response.NotFound(w, "conflict not found")
		case errors.As(err, &unknownStrategy):
			response.BadRequest(w, err.Error())
		case errors.As(err, &mergeFailed):
			response.Conflict(w, err.Error())
		default:
			response.InternalError(w, "failed to resolve conflict")
		}
		return
	}

	response.JSON(w, http.StatusOK, conflict)
}

func (h *ConflictHandler) Suggestion(w http.ResponseWriter, r *http.Request) {
	conflictID := mux.Vars(r)["id"]

	conflict, err := h.conflicts.Get(conflictID)
	if err != nil {
		if errors.Is(err, service.ErrConflictNotFound) {
			response.NotFound(w, "conflict not found")
			return
		}
		response.InternalError(w, "failed to load conflict")
		return
	}

	response.JSON(w, http.StatusOK, h.suggestions.Suggest(conflict))
}
