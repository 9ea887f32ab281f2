package domain

import "time"

// DeviceInfo is one participant in the sync mesh. ClockValue is this device's
// component of the distributed logical clock; only the sync orchestrator
// advances it, and only for the local device.
type DeviceInfo struct {
	DeviceID    string    `json:"device_id"`
	Name        string    `json:"name"`
	OS          string    `json:"os"`
	LastAddress string    `json:"last_address,omitempty"`
	IsCurrent   bool      `json:"is_current"`
	SyncEnabled bool      `json:"sync_enabled"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	ClockValue  int64     `json:"clock_value"`
}

type RegisterDeviceRequest struct {
	DeviceID    string `json:"device_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	OS          string `json:"os" validate:"required"`
	LastAddress string `json:"last_address"`
	SyncEnabled bool   `json:"sync_enabled"`
}
