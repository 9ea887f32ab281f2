package service

import (
	"sync"
	"time"

	"atelier-sync-core/internal/logging"
)

// DefaultLockTTL is how long an advisory lock lives before any device may
// reclaim it.
const DefaultLockTTL = 5 * time.Minute

type lockEntry struct {
	deviceID   string
	acquiredAt time.Time
	expiresAt  time.Time
}

// LockManager hands out cooperative per-resource locks across devices. Locks
// are advisory and ephemeral: they live only in this process, and a holder
// past the staleness threshold is treated as gone rather than blocking
// everyone else.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	ttl   time.Duration

	// now is swappable for tests.
	now func() time.Time
}

func NewLockManager(ttl time.Duration) *LockManager {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &LockManager{
		locks: make(map[string]lockEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Acquire takes the lock for deviceID. A live lock held by another device
// means false; a stale lock is silently reclaimed; re-acquisition by the
// current holder refreshes the expiry.
func (m *LockManager) Acquire(resourceID, deviceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, held := m.locks[resourceID]

	if held && now.Before(entry.expiresAt) && entry.deviceID != deviceID {
		return false
	}

	if held && !now.Before(entry.expiresAt) && entry.deviceID != deviceID {
		logging.Warn("reclaiming stale advisory lock",
			logging.Operation("stale-lock-recovery"),
			logging.Device(entry.deviceID),
		)
	}

	m.locks[resourceID] = lockEntry{
		deviceID:   deviceID,
		acquiredAt: now,
		expiresAt:  now.Add(m.ttl),
	}
	return true
}

// Release drops the lock if deviceID is the current live holder. Releasing an
// unheld or expired lock is a harmless no-op returning true.
func (m *LockManager) Release(resourceID, deviceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, held := m.locks[resourceID]
	if !held || !m.now().Before(entry.expiresAt) {
		return true
	}
	if entry.deviceID != deviceID {
		return false
	}

	delete(m.locks, resourceID)
	return true
}

// Holder returns the device holding a live lock on the resource, or "" when
// the resource is unlocked or the lock has gone stale.
func (m *LockManager) Holder(resourceID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, held := m.locks[resourceID]
	if !held || !m.now().Before(entry.expiresAt) {
		return ""
	}
	return entry.deviceID
}

// Clear drops every lock. Called on dispose.
func (m *LockManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = make(map[string]lockEntry)
}
