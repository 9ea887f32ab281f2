package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"atelier-sync-core/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

type ConflictRepository interface {
	Create(conflict *domain.SyncConflict) error
	Get(conflictID string) (*domain.SyncConflict, error)
	ListUnresolved() ([]*domain.SyncConflict, error)
	ListByEntity(entityType, entityID string) ([]*domain.SyncConflict, error)
	MarkResolved(conflictID string, strategy domain.ResolutionStrategy, resolvedBy string, resolvedAt time.Time) error
}

type conflictRepository struct {
	client *kivik.Client
	dbName string
}

func NewConflictRepository(client *kivik.Client, dbName string) ConflictRepository {
	return &conflictRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *conflictRepository) Create(conflict *domain.SyncConflict) error {
	db := r.client.DB(r.dbName)

	doc := map[string]interface{}{
		"doc_type":           "conflict",
		"id":                 conflict.ID,
		"entity_type":        conflict.EntityType,
		"entity_id":          conflict.EntityID,
		"local_version":      conflict.LocalVersion,
		"remote_version":     conflict.RemoteVersion,
		"remote_device_id":   conflict.RemoteDeviceID,
		"local_changed_at":   conflict.LocalChangedAt,
		"remote_changed_at":  conflict.RemoteChangedAt,
		"conflicting_fields": conflict.ConflictingFields,
		"detected_at":        conflict.DetectedAt,
	}

	docID := fmt.Sprintf("conflict:%s", conflict.ID)
	if _, err := db.Put(context.Background(), docID, doc); err != nil {
		return fmt.Errorf("failed to create conflict: %w", err)
	}

	return nil
}

func (r *conflictRepository) Get(conflictID string) (*domain.SyncConflict, error) {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("conflict:%s", conflictID)
	row := db.Get(context.Background(), docID)

	var conflict domain.SyncConflict
	if err := row.ScanDoc(&conflict); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}

	return &conflict, nil
}

func (r *conflictRepository) ListUnresolved() ([]*domain.SyncConflict, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type":   "conflict",
			"resolution": map[string]interface{}{"$exists": false},
		},
	}
	return r.find(query)
}

func (r *conflictRepository) ListByEntity(entityType, entityID string) ([]*domain.SyncConflict, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type":    "conflict",
			"entity_type": entityType,
			"entity_id":   entityID,
		},
	}
	return r.find(query)
}

func (r *conflictRepository) find(query map[string]interface{}) ([]*domain.SyncConflict, error) {
	db := r.client.DB(r.dbName)

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []*domain.SyncConflict
	for rows.Next() {
		var conflict domain.SyncConflict
		if err := rows.ScanDoc(&conflict); err != nil {
			continue // Skip malformed docs
		}
		conflicts = append(conflicts, &conflict)
	}

	return conflicts, nil
}

func (r *conflictRepository) MarkResolved(conflictID string, strategy domain.ResolutionStrategy, resolvedBy string, resolvedAt time.Time) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("conflict:%s", conflictID)

	var rawDoc map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&rawDoc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load conflict for resolution: %w", err)
	}

	rawDoc["resolution"] = string(strategy)
	rawDoc["resolved_by"] = resolvedBy
	rawDoc["resolved_at"] = resolvedAt

	if _, err := db.Put(context.Background(), docID, rawDoc); err != nil {
		return fmt.Errorf("failed to mark conflict resolved: %w", err)
	}

	return nil
}
