package service

import (
	"time"

	"atelier-sync-core/internal/domain"
	"atelier-sync-core/internal/logging"
	"atelier-sync-core/internal/repository"
)

// MinSyncInterval is the floor for the auto-sync timer.
const MinSyncInterval = 10 * time.Second

// SettingsProvider supplies the sync configuration. It replaces the old
// best-effort probe of the host application's settings store: implementations
// are injected explicitly, and the no-op default keeps the core functional
// without one.
type SettingsProvider interface {
	Settings() (*domain.SyncSettings, error)
}

// NoopSettings returns fixed defaults.
type NoopSettings struct{}

func (NoopSettings) Settings() (*domain.SyncSettings, error) {
	return &domain.SyncSettings{
		Backend:          domain.BackendCloud,
		AutoSync:         false,
		SyncIntervalSecs: int(MinSyncInterval / time.Second),
	}, nil
}

// StoredSettings reads settings from the settings repository, creating the
// document with defaults on first access.
type StoredSettings struct {
	repo     repository.SettingsRepository
	defaults domain.SyncSettings
}

func NewStoredSettings(repo repository.SettingsRepository, defaults domain.SyncSettings) *StoredSettings {
	return &StoredSettings{repo: repo, defaults: defaults}
}

func (s *StoredSettings) Settings() (*domain.SyncSettings, error) {
	defaults := s.defaults
	settings, err := s.repo.GetOrCreate(&defaults)
	if err != nil {
		logging.Warn("failed to load stored sync settings, using defaults", logging.Err(err))
		return &defaults, nil
	}
	return settings, nil
}
