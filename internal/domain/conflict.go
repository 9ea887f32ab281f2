package domain

import "time"

type ResolutionStrategy string

const (
	ResolutionKeepLocal     ResolutionStrategy = "keep_local"
	ResolutionKeepRemote    ResolutionStrategy = "keep_remote"
	ResolutionMerge         ResolutionStrategy = "merge"
	ResolutionLastWriteWins ResolutionStrategy = "last_write_wins"
	ResolutionUserChoice    ResolutionStrategy = "user_choice"
)

// IsValid returns true if the strategy is one of the five recognized values.
func (s ResolutionStrategy) IsValid() bool {
	switch s {
	case ResolutionKeepLocal, ResolutionKeepRemote, ResolutionMerge, ResolutionLastWriteWins, ResolutionUserChoice:
		return true
	default:
		return false
	}
}

func (s ResolutionStrategy) String() string {
	return string(s)
}

// SyncConflict records one divergence between a local and a remote version of
// an entity. Resolution stays empty until the conflict is resolved; once set
// it is never changed, and the record is kept for audit.
type SyncConflict struct {
	ID                string             `json:"id"`
	EntityType        string             `json:"entity_type"`
	EntityID          string             `json:"entity_id"`
	LocalVersion      string             `json:"local_version"`
	RemoteVersion     string             `json:"remote_version"`
	RemoteDeviceID    string             `json:"remote_device_id"`
	LocalChangedAt    time.Time          `json:"local_changed_at"`
	RemoteChangedAt   time.Time          `json:"remote_changed_at"`
	ConflictingFields []string           `json:"conflicting_fields"`
	Resolution        ResolutionStrategy `json:"resolution,omitempty"`
	ResolvedBy        string             `json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time         `json:"resolved_at,omitempty"`
	DetectedAt        time.Time          `json:"detected_at"`
}

// Resolved reports whether the conflict has reached its terminal state.
func (c *SyncConflict) Resolved() bool {
	return c.Resolution != ""
}

type ResolveConflictRequest struct {
	Strategy   ResolutionStrategy `json:"strategy" validate:"required,oneof=keep_local keep_remote merge last_write_wins user_choice"`
	ResolvedBy string             `json:"resolved_by" validate:"required"`
}

// Suggestion is a read-only recommendation for resolving a conflict.
type Suggestion struct {
	Strategy   ResolutionStrategy `json:"strategy"`
	Confidence float64            `json:"confidence"`
	Reason     string             `json:"reason"`
	Preview    string             `json:"preview"`
}
