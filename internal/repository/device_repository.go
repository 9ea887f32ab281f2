package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"atelier-sync-core/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type DeviceRepository interface {
	Register(device *domain.DeviceInfo) error
	Get(deviceID string) (*domain.DeviceInfo, error)
	List() ([]*domain.DeviceInfo, error)
	Remove(deviceID string) error
	IncrementClock(deviceID string) (int64, error)
	UpdateLastSeen(deviceID string, at time.Time) error
}

type deviceRepository struct {
	client *kivik.Client
	dbName string
}

func NewDeviceRepository(client *kivik.Client, dbName string) DeviceRepository {
	return &deviceRepository{
		client: client,
		dbName: dbName,
	}
}

// Register upserts the device document, preserving the stored clock value on
// re-registration.
func (r *deviceRepository) Register(device *domain.DeviceInfo) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("device:%s", device.DeviceID)

	doc := map[string]interface{}{
		"doc_type":     "device",
		"device_id":    device.DeviceID,
		"name":         device.Name,
		"os":           device.OS,
		"last_address": device.LastAddress,
		"is_current":   device.IsCurrent,
		"sync_enabled": device.SyncEnabled,
		"last_seen_at": device.LastSeenAt,
		"clock_value":  device.ClockValue,
	}

	var existing map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&existing); err == nil {
		doc["_rev"] = existing["_rev"]
		if clock, ok := existing["clock_value"].(float64); ok && int64(clock) > device.ClockValue {
			doc["clock_value"] = int64(clock)
		}
	}

	if _, err := db.Put(context.Background(), docID, doc); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}

	return nil
}

func (r *deviceRepository) Get(deviceID string) (*domain.DeviceInfo, error) {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("device:%s", deviceID)
	row := db.Get(context.Background(), docID)

	var device domain.DeviceInfo
	if err := row.ScanDoc(&device); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return &device, nil
}

func (r *deviceRepository) List() ([]*domain.DeviceInfo, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": "device",
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*domain.DeviceInfo
	for rows.Next() {
		var device domain.DeviceInfo
		if err := rows.ScanDoc(&device); err != nil {
			continue // Skip malformed docs
		}
		devices = append(devices, &device)
	}

	return devices, nil
}

func (r *deviceRepository) Remove(deviceID string) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("device:%s", deviceID)

	var rawDoc map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&rawDoc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load device for removal: %w", err)
	}

	rev, _ := rawDoc["_rev"].(string)
	if _, err := db.Delete(context.Background(), docID, rev); err != nil {
		return fmt.Errorf("failed to remove device: %w", err)
	}

	return nil
}

// IncrementClock advances the device's logical clock component by one and
// returns the new value.
func (r *deviceRepository) IncrementClock(deviceID string) (int64, error) {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("device:%s", deviceID)

	var rawDoc map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&rawDoc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to load device clock: %w", err)
	}

	var clock int64
	if v, ok := rawDoc["clock_value"].(float64); ok {
		clock = int64(v)
	}
	clock++
	rawDoc["clock_value"] = clock

	if _, err := db.Put(context.Background(), docID, rawDoc); err != nil {
		return 0, fmt.Errorf("failed to advance device clock: %w", err)
	}

	return clock, nil
}

func (r *deviceRepository) UpdateLastSeen(deviceID string, at time.Time) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("device:%s", deviceID)

	var rawDoc map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&rawDoc); err != nil {
		return fmt.Errorf("failed to load device: %w", err)
	}

	rawDoc["last_seen_at"] = at

	if _, err := db.Put(context.Background(), docID, rawDoc); err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}

	return nil
}
