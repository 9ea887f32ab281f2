package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"atelier-sync-core/internal/adapter"
	"atelier-sync-core/internal/domain"
	"atelier-sync-core/internal/notification"
	"atelier-sync-core/internal/repository"
)

type mockChangeRepo struct {
	mu      sync.Mutex
	changes []*domain.SyncChange
	listErr error

	// failListFrom makes ListUnsynced fail starting at that call number;
	// zero fails every call once listErr is set.
	listCalls    int
	failListFrom int
}

func newMockChangeRepo() *mockChangeRepo {
	return &mockChangeRepo{}
}

func (m *mockChangeRepo) Create(change *domain.SyncChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, change)
	return nil
}

func (m *mockChangeRepo) ListUnsynced(deviceID string) ([]*domain.SyncChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil && m.listCalls >= m.failListFrom {
		return nil, m.listErr
	}
	var out []*domain.SyncChange
	for _, c := range m.changes {
		if c.DeviceID == deviceID && !c.Synced {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockChangeRepo) MarkSynced(changeIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make(map[string]bool, len(changeIDs))
	for _, id := range changeIDs {
		ids[id] = true
	}
	for _, c := range m.changes {
		if ids[c.ID] {
			c.Synced = true
		}
	}
	return nil
}

func (m *mockChangeRepo) LatestSequence(deviceID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for _, c := range m.changes {
		if c.DeviceID == deviceID && c.SequenceNumber > max {
			max = c.SequenceNumber
		}
	}
	return max, nil
}

func (m *mockChangeRepo) ListByEntity(entityType, entityID string) ([]*domain.SyncChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.SyncChange
	for _, c := range m.changes {
		if c.EntityType == entityType && c.EntityID == entityID {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockDeviceRepo struct {
	mu       sync.Mutex
	devices  map[string]*domain.DeviceInfo
	clockErr error
}

func newMockDeviceRepo() *mockDeviceRepo {
	return &mockDeviceRepo{devices: make(map[string]*domain.DeviceInfo)}
}

func (m *mockDeviceRepo) Register(device *domain.DeviceInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[device.DeviceID] = device
	return nil
}

func (m *mockDeviceRepo) Get(deviceID string) (*domain.DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[deviceID]; ok {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockDeviceRepo) List() ([]*domain.DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.DeviceInfo
	for _, d := range m.devices {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDeviceRepo) Remove(deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[deviceID]; !ok {
		return repository.ErrNotFound
	}
	delete(m.devices, deviceID)
	return nil
}

func (m *mockDeviceRepo) IncrementClock(deviceID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clockErr != nil {
		return 0, m.clockErr
	}
	d, ok := m.devices[deviceID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	d.ClockValue++
	return d.ClockValue, nil
}

func (m *mockDeviceRepo) UpdateLastSeen(deviceID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[deviceID]; ok {
		d.LastSeenAt = at
	}
	return nil
}

type mockAdapter struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	pushErr    error
	pullErr    error
	pulled     []*domain.SyncChange
	pushed     []*domain.SyncChange
	rejectIDs  map[string]bool
}

func newMockAdapter() *mockAdapter {
	return &mockAdapter{}
}

func (m *mockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *mockAdapter) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *mockAdapter) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockAdapter) PushChanges(ctx context.Context, changes []*domain.SyncChange) (*adapter.PushResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pushErr != nil {
		return nil, m.pushErr
	}
	result := &adapter.PushResult{}
	for _, c := range changes {
		if m.rejectIDs[c.ID] {
			result.Rejected = append(result.Rejected, c.ID)
			continue
		}
		result.Accepted = append(result.Accepted, c.ID)
		m.pushed = append(m.pushed, c)
	}
	return result, nil
}

func (m *mockAdapter) PullChanges(ctx context.Context, sinceSequence int64) ([]*domain.SyncChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pullErr != nil {
		return nil, m.pullErr
	}
	var out []*domain.SyncChange
	for _, c := range m.pulled {
		if c.SequenceNumber > sinceSequence {
			out = append(out, c)
		}
	}
	return out, nil
}

type orchestratorFixture struct {
	orchestrator *SyncOrchestrator
	changes      *mockChangeRepo
	devices      *mockDeviceRepo
	conflicts    *mockConflictRepo
	transport    *mockAdapter
	notifier     *recordingNotifier
}

func newOrchestratorFixture(deviceID string) *orchestratorFixture {
	changes := newMockChangeRepo()
	devices := newMockDeviceRepo()
	conflicts := newMockConflictRepo()
	transport := newMockAdapter()
	notifier := &recordingNotifier{}

	devices.Register(&domain.DeviceInfo{DeviceID: deviceID, IsCurrent: true})

	retry := NewRetryPolicy()
	retry.sleep = func(time.Duration) {}

	return &orchestratorFixture{
		orchestrator: NewSyncOrchestrator(
			deviceID,
			changes,
			devices,
			NewConflictService(conflicts, NewMerger(), notifier),
			transport,
			retry,
			NewLockManager(DefaultLockTTL),
			notifier,
			nil,
		),
		changes:   changes,
		devices:   devices,
		conflicts: conflicts,
		transport: transport,
		notifier:  notifier,
	}
}

func localChange(id, entityType, entityID, deviceID, patch string, seq int64) *domain.SyncChange {
	return &domain.SyncChange{
		ID:             id,
		EntityType:     entityType,
		EntityID:       entityID,
		ChangeType:     domain.ChangeTypeUpdate,
		DeviceID:       deviceID,
		Patch:          patch,
		SequenceNumber: seq,
		CreatedAt:      time.Now(),
	}
}

func TestSyncOrchestrator_CleanCycle(t *testing.T) {
	f := newOrchestratorFixture("device-a")
	f.changes.Create(localChange("ch1", "plan", "p1", "device-a", `{"title":"Plan"}`, 1))

	state := f.orchestrator.Sync(context.Background())

	if state.Status != domain.SyncStatusIdle {
		t.Fatalf("Status = %s, want idle (error: %s)", state.Status, state.Error)
	}
	if state.PendingChanges != 0 {
		t.Errorf("PendingChanges = %d, want 0", state.PendingChanges)
	}
	if len(f.transport.pushed) != 1 {
		t.Errorf("pushed = %d changes, want 1", len(f.transport.pushed))
	}
	if got := state.VectorClock["device-a"]; got != 1 {
		t.Errorf("local clock = %d, want 1 after one cycle", got)
	}
	if f.notifier.count(notification.EventSyncStarted) != 1 || f.notifier.count(notification.EventSyncCompleted) != 1 {
		t.Errorf("events = %v, want one sync-started and one sync-completed", f.notifier.events)
	}
}

func TestSyncOrchestrator_DetectsConflictOnCompetingChange(t *testing.T) {
	f := newOrchestratorFixture("device-a")
	f.devices.Register(&domain.DeviceInfo{DeviceID: "device-b"})

	// Reject the local push so the change is still unsynced when the
	// competing remote change arrives.
	f.transport.rejectIDs = map[string]bool{"ch1": true}
	f.changes.Create(localChange("ch1", "plan", "p1", "device-a", `{"title":"Local title"}`, 1))
	f.transport.pulled = []*domain.SyncChange{
		localChange("ch2", "plan", "p1", "device-b", `{"title":"Remote title"}`, 1),
	}

	state := f.orchestrator.Sync(context.Background())

	if state.Status != domain.SyncStatusConflict {
		t.Fatalf("Status = %s, want conflict (error: %s)", state.Status, state.Error)
	}
	if state.UnresolvedConflicts != 1 {
		t.Errorf("UnresolvedConflicts = %d, want 1", state.UnresolvedConflicts)
	}
	if f.notifier.count(notification.EventConflictDetected) != 1 {
		t.Errorf("events = %v, want one conflict-detected", f.notifier.events)
	}
}

func TestSyncOrchestrator_RemoteChangeRecordedAsSynced(t *testing.T) {
	f := newOrchestratorFixture("device-a")
	f.devices.Register(&domain.DeviceInfo{DeviceID: "device-b"})
	f.transport.pulled = []*domain.SyncChange{
		localChange("ch2", "plan", "p1", "device-b", `{"title":"Remote"}`, 3),
	}

	f.orchestrator.Sync(context.Background())

	recorded, err := f.changes.ListByEntity("plan", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recorded) != 1 {
		t.Fatalf("recorded = %d changes, want 1", len(recorded))
	}
	if !recorded[0].Synced {
		t.Error("expected the remote change recorded as already synced")
	}
}

func TestSyncOrchestrator_ConnectFailureGoesOffline(t *testing.T) {
	f := newOrchestratorFixture("device-a")
	f.transport.connectErr = errors.New("relay unreachable")

	state := f.orchestrator.Sync(context.Background())

	if state.Status != domain.SyncStatusOffline {
		t.Fatalf("Status = %s, want offline", state.Status)
	}
	if state.Error == "" {
		t.Error("expected the error message surfaced in state")
	}
	if f.notifier.count(notification.EventSystemError) != 1 {
		t.Errorf("events = %v, want one system-error", f.notifier.events)
	}
	if f.notifier.count(notification.EventSyncCompleted) != 0 {
		t.Error("expected no sync-completed on failure")
	}
}

func TestSyncOrchestrator_PushFailureReportsError(t *testing.T) {
	f := newOrchestratorFixture("device-a")
	f.changes.Create(localChange("ch1", "plan", "p1", "device-a", `{"title":"Plan"}`, 1))
	f.transport.connected = true
	f.transport.pushErr = errors.New("relay rejected batch")

	state := f.orchestrator.Sync(context.Background())

	if state.Status != domain.SyncStatusError {
		t.Fatalf("Status = %s, want error", state.Status)
	}
	if state.PendingChanges != 1 {
		t.Errorf("PendingChanges = %d, want 1 (nothing marked synced)", state.PendingChanges)
	}
}

func TestSyncOrchestrator_StateProjectionFailureReportsError(t *testing.T) {
	f := newOrchestratorFixture("device-a")
	f.transport.connected = true

	// Let the push-stage count succeed, then fail the store when the final
	// state is computed.
	f.changes.listErr = errors.New("store unavailable")
	f.changes.failListFrom = 2

	state := f.orchestrator.Sync(context.Background())

	if state.Status != domain.SyncStatusError {
		t.Fatalf("Status = %s, want error", state.Status)
	}
	if !strings.Contains(state.Error, "state projection failed") {
		t.Errorf("Error = %q, want the projection failure surfaced", state.Error)
	}
	if f.notifier.count(notification.EventSystemError) != 1 {
		t.Errorf("events = %v, want one system-error", f.notifier.events)
	}
	if f.notifier.count(notification.EventSyncCompleted) != 0 {
		t.Error("expected no sync-completed when the state cannot be computed")
	}
}

func TestSyncOrchestrator_SingleFlight(t *testing.T) {
	f := newOrchestratorFixture("device-a")

	started := make(chan struct{})
	release := make(chan struct{})
	blockingConnect := func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}
	blocking := &blockingAdapter{inner: f.transport, connect: blockingConnect}
	f.orchestrator.transport = blocking

	done := make(chan domain.SyncState)
	go func() {
		done <- f.orchestrator.Sync(context.Background())
	}()

	<-started
	state := f.orchestrator.Sync(context.Background())
	if state.Status != domain.SyncStatusSyncing {
		t.Errorf("Status = %s, want syncing while a cycle is in flight", state.Status)
	}

	close(release)
	final := <-done
	if final.Status != domain.SyncStatusIdle {
		t.Errorf("final Status = %s, want idle (error: %s)", final.Status, final.Error)
	}
}

type blockingAdapter struct {
	inner   *mockAdapter
	connect func(ctx context.Context) error
}

func (b *blockingAdapter) Connect(ctx context.Context) error { return b.connect(ctx) }
func (b *blockingAdapter) Disconnect() error                 { return b.inner.Disconnect() }
func (b *blockingAdapter) IsConnected() bool                 { return b.inner.IsConnected() }
func (b *blockingAdapter) PushChanges(ctx context.Context, changes []*domain.SyncChange) (*adapter.PushResult, error) {
	return b.inner.PushChanges(ctx, changes)
}
func (b *blockingAdapter) PullChanges(ctx context.Context, since int64) ([]*domain.SyncChange, error) {
	return b.inner.PullChanges(ctx, since)
}

func TestSyncOrchestrator_Dispose(t *testing.T) {
	f := newOrchestratorFixture("device-a")
	f.transport.connected = true
	f.orchestrator.Locks().Acquire("plan/p1", "device-a")

	f.orchestrator.Dispose()

	if f.transport.IsConnected() {
		t.Error("expected adapter disconnected")
	}
	if f.orchestrator.Locks().Holder("plan/p1") != "" {
		t.Error("expected locks cleared")
	}
	if f.notifier.count(notification.EventDeviceDisconnected) != 1 {
		t.Errorf("events = %v, want one device-disconnected", f.notifier.events)
	}
}

func TestSyncOrchestrator_PullSkipsAlreadyRecordedChanges(t *testing.T) {
	f := newOrchestratorFixture("device-a")
	f.devices.Register(&domain.DeviceInfo{DeviceID: "device-b"})

	// A previously recorded remote change at sequence 2.
	old := localChange("old", "plan", "p0", "device-b", `{"title":"Old"}`, 2)
	old.Synced = true
	f.changes.Create(old)

	f.transport.pulled = []*domain.SyncChange{
		localChange("stale", "plan", "p0", "device-b", `{"title":"Old"}`, 2),
		localChange("fresh", "plan", "p2", "device-b", `{"title":"New"}`, 5),
	}

	f.orchestrator.Sync(context.Background())

	fresh, _ := f.changes.ListByEntity("plan", "p2")
	if len(fresh) != 1 {
		t.Errorf("expected the new change recorded, got %d", len(fresh))
	}
	stale, _ := f.changes.ListByEntity("plan", "p0")
	if len(stale) != 1 {
		t.Errorf("expected the already-seen change not re-recorded, got %d entries", len(stale))
	}
}

func TestSyncOrchestrator_SlowDeviceChangesNotDroppedByFasterPeer(t *testing.T) {
	f := newOrchestratorFixture("device-a")
	f.devices.Register(&domain.DeviceInfo{DeviceID: "device-b"})
	f.devices.Register(&domain.DeviceInfo{DeviceID: "device-c"})

	// device-b has been seen up to sequence 100, device-c only to 5.
	seen := func(id, deviceID string, seq int64) {
		c := localChange(id, "plan", "seen", deviceID, `{"title":"Seen"}`, seq)
		c.Synced = true
		f.changes.Create(c)
	}
	seen("b100", "device-b", 100)
	seen("c5", "device-c", 5)

	f.transport.pulled = []*domain.SyncChange{
		localChange("c6", "plan", "p1", "device-c", `{"title":"From slow device"}`, 6),
	}

	state := f.orchestrator.Sync(context.Background())

	if state.Status != domain.SyncStatusIdle {
		t.Fatalf("Status = %s, want idle (error: %s)", state.Status, state.Error)
	}
	recorded, _ := f.changes.ListByEntity("plan", "p1")
	if len(recorded) != 1 {
		t.Fatalf("slow device's change was dropped; recorded = %d entries, want 1", len(recorded))
	}
	if !recorded[0].Synced {
		t.Error("expected the pulled change recorded as synced")
	}
}
