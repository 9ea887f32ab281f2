package service

import (
	"encoding/json"
	"fmt"
	"time"

	"atelier-sync-core/internal/domain"
	"atelier-sync-core/internal/repository"

	"github.com/google/uuid"
)

// ChangeService appends local mutations to the change log. The platform's
// entity stores call Record after every write; the orchestrator picks the
// entries up on the next cycle.
type ChangeService struct {
	changes  repository.ChangeRepository
	deviceID string
}

func NewChangeService(changes repository.ChangeRepository, deviceID string) *ChangeService {
	return &ChangeService{
		changes:  changes,
		deviceID: deviceID,
	}
}

// Record writes one change-log entry with the next sequence number for this
// device. before may be nil for creates; after may be nil for deletes.
func (s *ChangeService) Record(entityType, entityID string, changeType domain.ChangeType, before, after map[string]any) (*domain.SyncChange, error) {
	latest, err := s.changes.LatestSequence(s.deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate sequence number: %w", err)
	}

	afterJSON, err := json.Marshal(after)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize entity snapshot: %w", err)
	}

	change := &domain.SyncChange{
		ID:             uuid.New().String(),
		EntityType:     entityType,
		EntityID:       entityID,
		ChangeType:     changeType,
		DeviceID:       s.deviceID,
		Patch:          string(afterJSON),
		SequenceNumber: latest + 1,
		CreatedAt:      time.Now(),
	}
	if before != nil {
		change.BeforeHash = Fingerprint(before)
	}
	if after != nil {
		change.AfterHash = Fingerprint(after)
	}

	if err := s.changes.Create(change); err != nil {
		return nil, fmt.Errorf("failed to append change: %w", err)
	}

	return change, nil
}

// History returns every recorded change for one entity.
func (s *ChangeService) History(entityType, entityID string) ([]*domain.SyncChange, error) {
	return s.changes.ListByEntity(entityType, entityID)
}
