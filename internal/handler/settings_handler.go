package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"atelier-sync-core/internal/domain"
	"atelier-sync-core/internal/repository"
	"atelier-sync-core/pkg/response"

	"github.com/go-playground/validator/v10"
)

type SettingsHandler struct {
	settings repository.SettingsRepository
	defaults *domain.SyncSettings
	validate *validator.Validate
}

func NewSettingsHandler(settings repository.SettingsRepository, defaults *domain.SyncSettings) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		defaults: defaults,
		validate: validator.New(),
	}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.GetOrCreate(h.defaults)
	if err != nil {
		response.InternalError(w, "failed to load settings")
		return
	}

	response.JSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	settings := &domain.SyncSettings{
		Backend:          req.Backend,
		AutoSync:         req.AutoSync,
		SyncIntervalSecs: req.SyncIntervalSecs,
		UpdatedAt:        time.Now().UTC(),
	}

	if err := h.settings.Update(settings); err != nil {
		response.InternalError(w, "failed to update settings")
		return
	}

	response.JSON(w, http.StatusOK, settings)
}
