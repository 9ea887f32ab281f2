package service

import (
	"encoding/json"
	"fmt"
	"time"

	"atelier-sync-core/internal/domain"
	"atelier-sync-core/internal/logging"
	"atelier-sync-core/internal/notification"
	"atelier-sync-core/internal/repository"

	"github.com/google/uuid"
)

// ConflictService detects conflicts between entity versions and drives each
// conflict through its single Unresolved -> Resolved transition.
type ConflictService struct {
	conflicts repository.ConflictRepository
	merger    *Merger
	notifier  notification.Notifier
}

func NewConflictService(
	conflicts repository.ConflictRepository,
	merger *Merger,
	notifier notification.Notifier,
) *ConflictService {
	if notifier == nil {
		notifier = notification.NoopNotifier{}
	}
	return &ConflictService{
		conflicts: conflicts,
		merger:    merger,
		notifier:  notifier,
	}
}

// Detect compares two snapshots of one entity and persists a conflict record
// when they meaningfully diverge. The fingerprint comparison is the fast
// reject path; field comparison only runs on true divergence. Returns nil
// when the versions match or differ only in metadata fields.
func (s *ConflictService) Detect(
	entityType, entityID string,
	local, remote map[string]any,
	localChangedAt, remoteChangedAt time.Time,
	remoteDeviceID string,
) (*domain.SyncConflict, error) {
	if Fingerprint(local) == Fingerprint(remote) {
		return nil, nil
	}

	diff := CompareFields(local, remote)
	conflicting := diff.changedFields()
	if len(conflicting) == 0 {
		return nil, nil
	}

	localJSON, err := json.Marshal(local)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize local version: %w", err)
	}
	remoteJSON, err := json.Marshal(remote)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize remote version: %w", err)
	}

	conflict := &domain.SyncConflict{
		ID:                uuid.New().String(),
		EntityType:        entityType,
		EntityID:          entityID,
		LocalVersion:      string(localJSON),
		RemoteVersion:     string(remoteJSON),
		RemoteDeviceID:    remoteDeviceID,
		LocalChangedAt:    localChangedAt,
		RemoteChangedAt:   remoteChangedAt,
		ConflictingFields: conflicting,
		DetectedAt:        time.Now(),
	}

	if err := s.conflicts.Create(conflict); err != nil {
		return nil, fmt.Errorf("failed to persist conflict: %w", err)
	}

	logging.Info("conflict detected",
		logging.Conflict(conflict.ID),
		logging.Entity(entityType, entityID),
		logging.Device(remoteDeviceID),
		logging.Count(len(conflicting)),
	)

	s.notifier.Emit(notification.EventConflictDetected, "conflict-service", map[string]any{
		"conflict_id":        conflict.ID,
		"entity_type":        entityType,
		"entity_id":          entityID,
		"conflicting_fields": conflicting,
	})

	return conflict, nil
}

// Resolve applies a strategy to an unresolved conflict. The transition fires
// exactly once per conflict id: resolving an already-resolved conflict is a
// logged no-op, never an error. Merge failures leave the conflict unresolved
// and surface the overlapping fields to the caller.
func (s *ConflictService) Resolve(conflictID string, strategy domain.ResolutionStrategy, resolvedBy string) (*domain.SyncConflict, error) {
	if !strategy.IsValid() {
		return nil, &UnknownStrategyError{Strategy: string(strategy)}
	}

	conflict, err := s.conflicts.Get(conflictID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrConflictNotFound
		}
		return nil, err
	}

	if conflict.Resolved() {
		logging.Info("conflict already resolved, ignoring",
			logging.Conflict(conflictID),
			logging.Strategy(string(conflict.Resolution)),
		)
		return conflict, nil
	}

	if strategy == domain.ResolutionMerge {
		result := s.merger.Merge(conflict)
		if !result.Success {
			return nil, &MergeConflictError{
				ConflictID: conflictID,
				Fields:     result.ConflictingFields,
			}
		}
	}

	now := time.Now()
	if err := s.conflicts.MarkResolved(conflictID, strategy, resolvedBy, now); err != nil {
		return nil, fmt.Errorf("failed to record resolution: %w", err)
	}

	conflict.Resolution = strategy
	conflict.ResolvedBy = resolvedBy
	conflict.ResolvedAt = &now

	logging.Info("conflict resolved",
		logging.Conflict(conflictID),
		logging.Strategy(string(strategy)),
	)

	s.notifier.Emit(notification.EventConflictResolved, "conflict-service", map[string]any{
		"conflict_id": conflictID,
		"strategy":    string(strategy),
		"resolved_by": resolvedBy,
	})

	return conflict, nil
}

// GetLastWriteWinner reports which side a LastWriteWins resolution selects.
// The strictly newer side wins; ties favor local so data does not move
// without cause.
func (s *ConflictService) GetLastWriteWinner(conflict *domain.SyncConflict) string {
	if conflict.RemoteChangedAt.After(conflict.LocalChangedAt) {
		return "remote"
	}
	return "local"
}

// Merge exposes the auto-merger for callers that want the combined entity
// after (or before) resolving with the Merge strategy.
func (s *ConflictService) Merge(conflictID string) (MergeResult, error) {
	conflict, err := s.conflicts.Get(conflictID)
	if err != nil {
		if err == repository.ErrNotFound {
			return MergeResult{}, ErrConflictNotFound
		}
		return MergeResult{}, err
	}
	return s.merger.Merge(conflict), nil
}

func (s *ConflictService) Get(conflictID string) (*domain.SyncConflict, error) {
	conflict, err := s.conflicts.Get(conflictID)
	if err == repository.ErrNotFound {
		return nil, ErrConflictNotFound
	}
	return conflict, err
}

func (s *ConflictService) ListUnresolved() ([]*domain.SyncConflict, error) {
	return s.conflicts.ListUnresolved()
}

func (s *ConflictService) ListByEntity(entityType, entityID string) ([]*domain.SyncConflict, error) {
	return s.conflicts.ListByEntity(entityType, entityID)
}
