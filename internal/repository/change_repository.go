package repository

import (
	"context"
	"fmt"

	"atelier-sync-core/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type ChangeRepository interface {
	Create(change *domain.SyncChange) error
	ListUnsynced(deviceID string) ([]*domain.SyncChange, error)
	MarkSynced(changeIDs []string) error
	LatestSequence(deviceID string) (int64, error)
	ListByEntity(entityType, entityID string) ([]*domain.SyncChange, error)
}

type changeRepository struct {
	client *kivik.Client
	dbName string
}

func NewChangeRepository(client *kivik.Client, dbName string) ChangeRepository {
	return &changeRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *changeRepository) Create(change *domain.SyncChange) error {
	db := r.client.DB(r.dbName)

	doc := map[string]interface{}{
		"doc_type":        "change",
		"id":              change.ID,
		"entity_type":     change.EntityType,
		"entity_id":       change.EntityID,
		"change_type":     change.ChangeType,
		"device_id":       change.DeviceID,
		"before_hash":     change.BeforeHash,
		"after_hash":      change.AfterHash,
		"patch":           change.Patch,
		"sequence_number": change.SequenceNumber,
		"synced":          change.Synced,
		"created_at":      change.CreatedAt,
	}

	docID := fmt.Sprintf("change:%s", change.ID)
	if _, err := db.Put(context.Background(), docID, doc); err != nil {
		return fmt.Errorf("failed to create change: %w", err)
	}

	return nil
}

func (r *changeRepository) ListUnsynced(deviceID string) ([]*domain.SyncChange, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type":  "change",
			"device_id": deviceID,
			"synced":    false,
		},
	}
	return r.find(query)
}

func (r *changeRepository) ListByEntity(entityType, entityID string) ([]*domain.SyncChange, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type":    "change",
			"entity_type": entityType,
			"entity_id":   entityID,
		},
	}
	return r.find(query)
}

func (r *changeRepository) find(query map[string]interface{}) ([]*domain.SyncChange, error) {
	db := r.client.DB(r.dbName)

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
	}
	defer rows.Close()

	var changes []*domain.SyncChange
	for rows.Next() {
		var change domain.SyncChange
		if err := rows.ScanDoc(&change); err != nil {
			continue // Skip malformed docs
		}
		changes = append(changes, &change)
	}

	return changes, nil
}

// MarkSynced flips the synced flag on each change. The transition is one-way;
// already-synced entries are left untouched.
func (r *changeRepository) MarkSynced(changeIDs []string) error {
	db := r.client.DB(r.dbName)

	for _, id := range changeIDs {
		docID := fmt.Sprintf("change:%s", id)

		var rawDoc map[string]interface{}
		row := db.Get(context.Background(), docID)
		if err := row.ScanDoc(&rawDoc); err != nil {
			return fmt.Errorf("failed to load change %s: %w", id, err)
		}

		if synced, ok := rawDoc["synced"].(bool); ok && synced {
			continue
		}
		rawDoc["synced"] = true

		if _, err := db.Put(context.Background(), docID, rawDoc); err != nil {
			return fmt.Errorf("failed to mark change %s synced: %w", id, err)
		}
	}

	return nil
}

// LatestSequence returns the highest sequence number recorded for remote
// changes pulled from the given device, or 0 when none exist.
func (r *changeRepository) LatestSequence(deviceID string) (int64, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type":  "change",
			"device_id": deviceID,
		},
		"fields": []string{"sequence_number"},
	}

	db := r.client.DB(r.dbName)
	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to query latest sequence: %w", err)
	}
	defer rows.Close()

	var latest int64
	for rows.Next() {
		var doc struct {
			SequenceNumber int64 `json:"sequence_number"`
		}
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		if doc.SequenceNumber > latest {
			latest = doc.SequenceNumber
		}
	}

	return latest, nil
}
