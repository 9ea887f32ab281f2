package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"atelier-sync-core/internal/adapter"
	"atelier-sync-core/internal/domain"
	"atelier-sync-core/internal/logging"
	"atelier-sync-core/internal/notification"
	"atelier-sync-core/internal/repository"
)

// SyncOrchestrator drives one push/pull/detect/apply cycle per Sync call and
// owns the device's component of the logical clock. Sync is single-flight: a
// call that arrives while a cycle runs returns the current state unchanged.
type SyncOrchestrator struct {
	deviceID  string
	changes   repository.ChangeRepository
	devices   repository.DeviceRepository
	conflicts *ConflictService
	transport adapter.Adapter
	retry     *RetryPolicy
	locks     *LockManager
	notifier  notification.Notifier
	settings  SettingsProvider

	mu        sync.Mutex
	busy      bool
	lastState domain.SyncState

	timerStop chan struct{}
	timerOnce sync.Once
}

func NewSyncOrchestrator(
	deviceID string,
	changes repository.ChangeRepository,
	devices repository.DeviceRepository,
	conflicts *ConflictService,
	transport adapter.Adapter,
	retry *RetryPolicy,
	locks *LockManager,
	notifier notification.Notifier,
	settings SettingsProvider,
) *SyncOrchestrator {
	if notifier == nil {
		notifier = notification.NoopNotifier{}
	}
	if settings == nil {
		settings = NoopSettings{}
	}
	if retry == nil {
		retry = NewRetryPolicy()
	}
	return &SyncOrchestrator{
		deviceID:  deviceID,
		changes:   changes,
		devices:   devices,
		conflicts: conflicts,
		transport: transport,
		retry:     retry,
		locks:     locks,
		notifier:  notifier,
		settings:  settings,
		lastState: domain.SyncState{DeviceID: deviceID, Status: domain.SyncStatusIdle},
	}
}

// Sync runs one full cycle and returns the resulting state. It never returns
// an error: every failure is caught, emitted as a system-error notification,
// and reported through SyncState.Status.
func (o *SyncOrchestrator) Sync(ctx context.Context) domain.SyncState {
	o.mu.Lock()
	if o.busy {
		state := o.lastState
		o.mu.Unlock()
		logging.Debug("sync already in progress, skipping", logging.Device(o.deviceID))
		return state
	}
	o.busy = true
	o.lastState.Status = domain.SyncStatusSyncing
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	o.notifier.Emit(notification.EventSyncStarted, "sync-orchestrator", map[string]any{
		"device_id": o.deviceID,
	})

	state := o.runCycle(ctx)

	o.mu.Lock()
	o.lastState = state
	o.mu.Unlock()

	if state.Status != domain.SyncStatusError && state.Status != domain.SyncStatusOffline {
		o.notifier.Emit(notification.EventSyncCompleted, "sync-orchestrator", map[string]any{
			"device_id":            o.deviceID,
			"pending_changes":      state.PendingChanges,
			"unresolved_conflicts": state.UnresolvedConflicts,
		})
	}

	return state
}

func (o *SyncOrchestrator) runCycle(ctx context.Context) domain.SyncState {
	if !o.transport.IsConnected() {
		err := o.retry.Do(ctx, "adapter-connect", func() error {
			return o.transport.Connect(ctx)
		})
		if err != nil {
			o.reportError("adapter connect failed", err)
			state := o.bestEffortState()
			state.Status = domain.SyncStatusOffline
			state.Error = err.Error()
			return state
		}
		o.notifier.Emit(notification.EventDeviceConnected, "sync-orchestrator", map[string]any{
			"device_id": o.deviceID,
		})
	}

	if err := o.pushLocalChanges(ctx); err != nil {
		return o.errorState("push failed", err)
	}

	watermarks, since, err := o.remoteWatermarks()
	if err != nil {
		return o.errorState("pull failed", err)
	}

	pulled, err := o.pullRemoteChanges(ctx, since)
	if err != nil {
		return o.errorState("pull failed", err)
	}

	conflictCount, err := o.applyRemoteChanges(pulled, watermarks)
	if err != nil {
		return o.errorState("apply failed", err)
	}
	if conflictCount > 0 {
		logging.Warn("sync cycle detected conflicts",
			logging.Device(o.deviceID),
			logging.Count(conflictCount),
		)
	}

	if _, err := o.devices.IncrementClock(o.deviceID); err != nil {
		return o.errorState("clock advance failed", err)
	}

	state, err := o.projectState()
	if err != nil {
		return o.errorState("state projection failed", err)
	}
	return state
}

// pushLocalChanges sends every unsynced local entry and marks the accepted
// ones synced. Rejected entries stay unsynced for the next cycle.
func (o *SyncOrchestrator) pushLocalChanges(ctx context.Context) error {
	unsynced, err := o.changes.ListUnsynced(o.deviceID)
	if err != nil {
		return fmt.Errorf("failed to list unsynced changes: %w", err)
	}
	if len(unsynced) == 0 {
		return nil
	}

	var result *adapter.PushResult
	err = o.retry.Do(ctx, "push-changes", func() error {
		var pushErr error
		result, pushErr = o.transport.PushChanges(ctx, unsynced)
		return pushErr
	})
	if err != nil {
		return err
	}

	if len(result.Accepted) > 0 {
		if err := o.changes.MarkSynced(result.Accepted); err != nil {
			return fmt.Errorf("failed to mark changes synced: %w", err)
		}
	}

	logging.Info("pushed local changes",
		logging.Device(o.deviceID),
		logging.Count(len(result.Accepted)),
	)
	return nil
}

func (o *SyncOrchestrator) pullRemoteChanges(ctx context.Context, since int64) ([]*domain.SyncChange, error) {
	var pulled []*domain.SyncChange
	err := o.retry.Do(ctx, "pull-changes", func() error {
		var pullErr error
		pulled, pullErr = o.transport.PullChanges(ctx, since)
		return pullErr
	})
	if err != nil {
		return nil, err
	}

	return pulled, nil
}

// remoteWatermarks returns, per remote device, the highest sequence number
// already recorded from it, plus the lowest of those watermarks to use as
// the transport's since cursor. Sequence numbers are per-device, so pulling
// from the minimum guarantees no device's unseen changes fall below the
// cursor; changes the pull re-delivers are filtered against the per-device
// watermark in applyRemoteChanges.
func (o *SyncOrchestrator) remoteWatermarks() (map[string]int64, int64, error) {
	devices, err := o.devices.List()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list devices: %w", err)
	}

	watermarks := make(map[string]int64, len(devices))
	since := int64(-1)
	for _, device := range devices {
		if device.DeviceID == o.deviceID {
			continue
		}
		seq, err := o.changes.LatestSequence(device.DeviceID)
		if err != nil {
			return nil, 0, err
		}
		watermarks[device.DeviceID] = seq
		if since < 0 || seq < since {
			since = seq
		}
	}
	if since < 0 {
		since = 0
	}
	return watermarks, since, nil
}

// applyRemoteChanges runs conflict detection for every pulled change that
// competes with a still-unsynced local change, then records each remote
// change in the local log as already synced. Detection happens before the
// change is recorded. Changes at or below the sender's watermark were
// recorded by an earlier cycle and are skipped.
func (o *SyncOrchestrator) applyRemoteChanges(pulled []*domain.SyncChange, watermarks map[string]int64) (int, error) {
	if len(pulled) == 0 {
		return 0, nil
	}

	unsynced, err := o.changes.ListUnsynced(o.deviceID)
	if err != nil {
		return 0, fmt.Errorf("failed to list unsynced changes: %w", err)
	}
	competing := make(map[string]*domain.SyncChange, len(unsynced))
	for _, change := range unsynced {
		competing[change.EntityType+"/"+change.EntityID] = change
	}

	conflictCount := 0
	for _, remote := range pulled {
		if remote.DeviceID == o.deviceID {
			continue
		}
		if remote.SequenceNumber <= watermarks[remote.DeviceID] {
			continue
		}

		if local, ok := competing[remote.EntityType+"/"+remote.EntityID]; ok {
			if o.detectConflict(local, remote) {
				conflictCount++
			}
		}

		recorded := *remote
		recorded.Synced = true
		if err := o.changes.Create(&recorded); err != nil {
			return conflictCount, fmt.Errorf("failed to record remote change: %w", err)
		}

		if err := o.devices.UpdateLastSeen(remote.DeviceID, time.Now()); err != nil {
			logging.Debug("failed to update device last seen",
				logging.Device(remote.DeviceID),
				logging.Err(err),
			)
		}
	}

	return conflictCount, nil
}

func (o *SyncOrchestrator) detectConflict(local, remote *domain.SyncChange) bool {
	localEntity, err := parseSnapshot(local.Patch)
	if err != nil {
		logging.Warn("cannot parse local snapshot, skipping conflict detection",
			logging.Entity(local.EntityType, local.EntityID),
			logging.Err(err),
		)
		return false
	}
	remoteEntity, err := parseSnapshot(remote.Patch)
	if err != nil {
		logging.Warn("cannot parse remote snapshot, skipping conflict detection",
			logging.Entity(remote.EntityType, remote.EntityID),
			logging.Err(err),
		)
		return false
	}

	conflict, err := o.conflicts.Detect(
		remote.EntityType, remote.EntityID,
		localEntity, remoteEntity,
		local.CreatedAt, remote.CreatedAt,
		remote.DeviceID,
	)
	if err != nil {
		logging.Error("conflict detection failed",
			logging.Entity(remote.EntityType, remote.EntityID),
			logging.Err(err),
		)
		return false
	}

	return conflict != nil
}

// projectState computes the aggregate sync state from live counts. A failing
// count is an error, not a zero: a cycle must never report Idle with made-up
// numbers because the store stopped answering.
func (o *SyncOrchestrator) projectState() (domain.SyncState, error) {
	state := domain.SyncState{
		DeviceID:    o.deviceID,
		Status:      domain.SyncStatusIdle,
		VectorClock: map[string]int64{},
	}

	unsynced, err := o.changes.ListUnsynced(o.deviceID)
	if err != nil {
		return state, fmt.Errorf("failed to count pending changes: %w", err)
	}
	state.PendingChanges = len(unsynced)

	unresolved, err := o.conflicts.ListUnresolved()
	if err != nil {
		return state, fmt.Errorf("failed to count unresolved conflicts: %w", err)
	}
	state.UnresolvedConflicts = len(unresolved)
	if state.UnresolvedConflicts > 0 {
		state.Status = domain.SyncStatusConflict
	}

	devices, err := o.devices.List()
	if err != nil {
		return state, fmt.Errorf("failed to read device clocks: %w", err)
	}
	for _, device := range devices {
		state.VectorClock[device.DeviceID] = device.ClockValue
	}

	return state, nil
}

// bestEffortState projects current counts for a state that already carries a
// failure; a projection error at that point is logged, not surfaced over the
// original failure.
func (o *SyncOrchestrator) bestEffortState() domain.SyncState {
	state, err := o.projectState()
	if err != nil {
		logging.Warn("state projection degraded", logging.Err(err))
	}
	return state
}

func (o *SyncOrchestrator) errorState(stage string, err error) domain.SyncState {
	o.reportError(stage, err)
	state := o.bestEffortState()
	state.Status = domain.SyncStatusError
	state.Error = fmt.Sprintf("%s: %v", stage, err)
	return state
}

func (o *SyncOrchestrator) reportError(stage string, err error) {
	logging.Error("sync cycle failed",
		logging.Device(o.deviceID),
		logging.Operation(stage),
		logging.Err(err),
	)
	o.notifier.Emit(notification.EventSystemError, "sync-orchestrator", map[string]any{
		"device_id": o.deviceID,
		"stage":     stage,
		"error":     err.Error(),
	})
}

// State returns the most recently computed sync state.
func (o *SyncOrchestrator) State() domain.SyncState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastState
}

// Locks exposes the advisory lock manager for callers coordinating edits.
func (o *SyncOrchestrator) Locks() *LockManager {
	return o.locks
}

// StartAutoSync runs Sync on a fixed interval until Dispose. The interval is
// clamped to MinSyncInterval; a failing cycle never stops the timer.
func (o *SyncOrchestrator) StartAutoSync(interval time.Duration) {
	if interval < MinSyncInterval {
		interval = MinSyncInterval
	}

	o.mu.Lock()
	if o.timerStop != nil {
		o.mu.Unlock()
		return
	}
	o.timerStop = make(chan struct{})
	stop := o.timerStop
	o.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				o.runTimerCycle()
			}
		}
	}()

	logging.Info("auto-sync started",
		logging.Device(o.deviceID),
		slog.Duration("interval", interval),
	)
}

// AutoSyncFromSettings starts the timer when the stored configuration has
// auto-sync enabled.
func (o *SyncOrchestrator) AutoSyncFromSettings() {
	settings, err := o.settings.Settings()
	if err != nil {
		logging.Warn("failed to read sync settings", logging.Err(err))
		return
	}
	if !settings.AutoSync {
		return
	}
	o.StartAutoSync(time.Duration(settings.SyncIntervalSecs) * time.Second)
}

func (o *SyncOrchestrator) runTimerCycle() {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("auto-sync cycle panicked", logging.Operation("auto-sync"))
			o.notifier.Emit(notification.EventSystemError, "sync-orchestrator", map[string]any{
				"device_id": o.deviceID,
				"stage":     "auto-sync",
				"error":     fmt.Sprint(r),
			})
		}
	}()
	o.Sync(context.Background())
}

// Dispose stops the auto-sync timer, disconnects the adapter and clears all
// advisory locks. In-flight retries finish or fail on their own.
func (o *SyncOrchestrator) Dispose() {
	o.timerOnce.Do(func() {
		o.mu.Lock()
		if o.timerStop != nil {
			close(o.timerStop)
			o.timerStop = nil
		}
		o.mu.Unlock()
	})

	if err := o.transport.Disconnect(); err != nil {
		logging.Warn("adapter disconnect failed", logging.Err(err))
	}
	o.notifier.Emit(notification.EventDeviceDisconnected, "sync-orchestrator", map[string]any{
		"device_id": o.deviceID,
	})

	if o.locks != nil {
		o.locks.Clear()
	}
}

func parseSnapshot(payload string) (map[string]any, error) {
	var entity map[string]any
	if err := json.Unmarshal([]byte(payload), &entity); err != nil {
		return nil, err
	}
	return entity, nil
}
