package domain

import "time"

type ChangeType string

const (
	ChangeTypeCreate ChangeType = "create"
	ChangeTypeUpdate ChangeType = "update"
	ChangeTypeDelete ChangeType = "delete"
)

// SyncChange is one append-only change-log entry. SequenceNumber is monotonic
// per device, and Synced only ever transitions false to true.
type SyncChange struct {
	ID             string     `json:"id"`
	EntityType     string     `json:"entity_type"`
	EntityID       string     `json:"entity_id"`
	ChangeType     ChangeType `json:"change_type"`
	DeviceID       string     `json:"device_id"`
	BeforeHash     string     `json:"before_hash"`
	AfterHash      string     `json:"after_hash"`
	Patch          string     `json:"patch"`
	SequenceNumber int64      `json:"sequence_number"`
	Synced         bool       `json:"synced"`
	CreatedAt      time.Time  `json:"created_at"`
}
