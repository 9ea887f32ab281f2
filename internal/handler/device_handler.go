package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"atelier-sync-core/internal/domain"
	"atelier-sync-core/internal/repository"
	"atelier-sync-core/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type DeviceHandler struct {
	devices       repository.DeviceRepository
	localDeviceID string
	validate      *validator.Validate
}

func NewDeviceHandler(devices repository.DeviceRepository, localDeviceID string) *DeviceHandler {
	return &DeviceHandler{
		devices:       devices,
		localDeviceID: localDeviceID,
		validate:      validator.New(),
	}
}

func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	device := &domain.DeviceInfo{
		DeviceID:    req.DeviceID,
		Name:        req.Name,
		OS:          req.OS,
		LastAddress: req.LastAddress,
		IsCurrent:   req.DeviceID == h.localDeviceID,
		SyncEnabled: req.SyncEnabled,
		LastSeenAt:  time.Now().UTC(),
	}

	if err := h.devices.Register(device); err != nil {
		response.InternalError(w, "failed to register device")
		return
	}

	response.JSON(w, http.StatusCreated, device)
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.List()
	if err != nil {
		response.InternalError(w, "failed to list devices")
		return
	}

	response.JSON(w, http.StatusOK, devices)
}

func (h *DeviceHandler) Remove(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]

	if deviceID == h.localDeviceID {
		response.BadRequest(w, "cannot remove the local device")
		return
	}

	if err := h.devices.Remove(deviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "device not found")
			return
		}
		response.InternalError(w, "failed to remove device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
