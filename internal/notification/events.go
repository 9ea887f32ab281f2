package notification

import "time"

// Event types emitted by the sync core. Names carry meaning downstream; do
// not rename without coordinating with UI consumers.
const (
	EventSyncStarted        = "sync-started"
	EventSyncCompleted      = "sync-completed"
	EventConflictDetected   = "conflict-detected"
	EventConflictResolved   = "conflict-resolved"
	EventDeviceConnected    = "device-connected"
	EventDeviceDisconnected = "device-disconnected"
	EventSystemError        = "system-error"
)

// Event is one notification delivered to bus subscribers.
type Event struct {
	Type   string         `json:"type"`
	Source string         `json:"source"`
	Data   map[string]any `json:"data,omitempty"`
	At     time.Time      `json:"at"`
}
