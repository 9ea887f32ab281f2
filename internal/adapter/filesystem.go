package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"atelier-sync-core/internal/domain"

	"atelier-sync-core/internal/logging"
)

// FilesystemAdapter syncs through a shared directory (typically a NAS mount).
// Each change is one JSON file named <sequence>-<device>.json; pushing writes
// atomically via temp file + rename so a concurrent reader never sees a
// partial change.
type FilesystemAdapter struct {
	dir       string
	deviceID  string
	connected bool
}

func NewFilesystemAdapter(dir, deviceID string) *FilesystemAdapter {
	return &FilesystemAdapter{
		dir:      dir,
		deviceID: deviceID,
	}
}

func (a *FilesystemAdapter) Connect(ctx context.Context) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("shared directory unavailable: %w", err)
	}
	a.connected = true
	return nil
}

func (a *FilesystemAdapter) Disconnect() error {
	a.connected = false
	return nil
}

func (a *FilesystemAdapter) IsConnected() bool {
	return a.connected
}

func (a *FilesystemAdapter) PushChanges(ctx context.Context, changes []*domain.SyncChange) (*PushResult, error) {
	if !a.connected {
		return nil, ErrNotConnected
	}

	result := &PushResult{}
	for _, change := range changes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := a.writeChange(change); err != nil {
			logging.Warn("failed to write change file",
				logging.Entity(change.EntityType, change.EntityID),
				logging.Err(err),
			)
			result.Rejected = append(result.Rejected, change.ID)
			continue
		}
		result.Accepted = append(result.Accepted, change.ID)
	}

	return result, nil
}

func (a *FilesystemAdapter) writeChange(change *domain.SyncChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}

	name := changeFileName(change.SequenceNumber, change.DeviceID)
	tmp, err := os.CreateTemp(a.dir, name+".tmp-")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(a.dir, name))
}

func (a *FilesystemAdapter) PullChanges(ctx context.Context, sinceSequence int64) ([]*domain.SyncChange, error) {
	if !a.connected {
		return nil, ErrNotConnected
	}

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan shared directory: %w", err)
	}

	var changes []*domain.SyncChange
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(a.dir, entry.Name()))
		if err != nil {
			logging.Warn("failed to read change file", logging.Err(err))
			continue
		}

		var change domain.SyncChange
		if err := json.Unmarshal(data, &change); err != nil {
			logging.Warn("skipping malformed change file", logging.Err(err))
			continue
		}

		if change.DeviceID == a.deviceID || change.SequenceNumber <= sinceSequence {
			continue
		}
		changes = append(changes, &change)
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].SequenceNumber < changes[j].SequenceNumber
	})

	return changes, nil
}

func changeFileName(sequence int64, deviceID string) string {
	return fmt.Sprintf("%020d-%s.json", sequence, deviceID)
}
