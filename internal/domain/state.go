package domain

type SyncStatus string

const (
	SyncStatusIdle     SyncStatus = "idle"
	SyncStatusSyncing  SyncStatus = "syncing"
	SyncStatusConflict SyncStatus = "conflict"
	SyncStatusOffline  SyncStatus = "offline"
	SyncStatusError    SyncStatus = "error"
)

// SyncState is a derived, read-only projection of the device's sync health.
// It is recomputed at the end of every cycle and never persisted.
type SyncState struct {
	DeviceID            string           `json:"device_id"`
	Status              SyncStatus       `json:"status"`
	PendingChanges      int              `json:"pending_changes"`
	UnresolvedConflicts int              `json:"unresolved_conflicts"`
	VectorClock         map[string]int64 `json:"vector_clock"`
	Error               string           `json:"error,omitempty"`
}
