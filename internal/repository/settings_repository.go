package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"atelier-sync-core/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

const settingsDocID = "settings:sync"

type SettingsRepository interface {
	Get() (*domain.SyncSettings, error)
	GetOrCreate(defaults *domain.SyncSettings) (*domain.SyncSettings, error)
	Update(settings *domain.SyncSettings) error
}

type settingsRepository struct {
	client *kivik.Client
	dbName string
}

func NewSettingsRepository(client *kivik.Client, dbName string) SettingsRepository {
	return &settingsRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *settingsRepository) Get() (*domain.SyncSettings, error) {
	db := r.client.DB(r.dbName)

	row := db.Get(context.Background(), settingsDocID)

	var settings domain.SyncSettings
	if err := row.ScanDoc(&settings); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sync settings: %w", err)
	}

	return &settings, nil
}

func (r *settingsRepository) GetOrCreate(defaults *domain.SyncSettings) (*domain.SyncSettings, error) {
	settings, err := r.Get()
	if err == nil {
		return settings, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	if err := r.put(defaults, ""); err != nil {
		return nil, err
	}
	return defaults, nil
}

func (r *settingsRepository) Update(settings *domain.SyncSettings) error {
	db := r.client.DB(r.dbName)

	var rawDoc map[string]interface{}
	row := db.Get(context.Background(), settingsDocID)
	if err := row.ScanDoc(&rawDoc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return r.put(settings, "")
		}
		return fmt.Errorf("failed to load sync settings: %w", err)
	}

	rev, _ := rawDoc["_rev"].(string)
	return r.put(settings, rev)
}

func (r *settingsRepository) put(settings *domain.SyncSettings, rev string) error {
	db := r.client.DB(r.dbName)

	doc := map[string]interface{}{
		"doc_type":           "settings",
		"backend":            settings.Backend,
		"auto_sync":          settings.AutoSync,
		"sync_interval_secs": settings.SyncIntervalSecs,
		"updated_at":         time.Now(),
	}
	if rev != "" {
		doc["_rev"] = rev
	}

	if _, err := db.Put(context.Background(), settingsDocID, doc); err != nil {
		return fmt.Errorf("failed to store sync settings: %w", err)
	}

	return nil
}
