package domain

import "time"

type SyncBackend string

const (
	BackendCloud      SyncBackend = "cloud"
	BackendFilesystem SyncBackend = "filesystem"
	BackendPeer       SyncBackend = "peer"
)

// SyncSettings is the persisted sync configuration for this installation.
type SyncSettings struct {
	Backend          SyncBackend `json:"backend"`
	AutoSync         bool        `json:"auto_sync"`
	SyncIntervalSecs int         `json:"sync_interval_secs"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

type UpdateSettingsRequest struct {
	Backend          SyncBackend `json:"backend" validate:"required,oneof=cloud filesystem peer"`
	AutoSync         bool        `json:"auto_sync"`
	SyncIntervalSecs int         `json:"sync_interval_secs" validate:"min=10"`
}
