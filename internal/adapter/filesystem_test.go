package adapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"atelier-sync-core/internal/domain"
)

func testChange(id, deviceID string, seq int64) *domain.SyncChange {
	return &domain.SyncChange{
		ID:             id,
		EntityType:     "plan",
		EntityID:       "p1",
		ChangeType:     domain.ChangeTypeUpdate,
		DeviceID:       deviceID,
		Patch:          `{"title":"Plan"}`,
		SequenceNumber: seq,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestFilesystemAdapter_PushPullRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	writer := NewFilesystemAdapter(dir, "device-a")
	if err := writer.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	result, err := writer.PushChanges(ctx, []*domain.SyncChange{
		testChange("ch1", "device-a", 1),
		testChange("ch2", "device-a", 2),
	})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if len(result.Accepted) != 2 || len(result.Rejected) != 0 {
		t.Fatalf("accepted=%v rejected=%v, want 2 accepted", result.Accepted, result.Rejected)
	}

	reader := NewFilesystemAdapter(dir, "device-b")
	if err := reader.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	pulled, err := reader.PullChanges(ctx, 0)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pulled) != 2 {
		t.Fatalf("pulled = %d changes, want 2", len(pulled))
	}
	if pulled[0].SequenceNumber != 1 || pulled[1].SequenceNumber != 2 {
		t.Errorf("expected changes ordered by sequence, got %d then %d",
			pulled[0].SequenceNumber, pulled[1].SequenceNumber)
	}
}

func TestFilesystemAdapter_PullSkipsOwnChanges(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a := NewFilesystemAdapter(dir, "device-a")
	a.Connect(ctx)
	a.PushChanges(ctx, []*domain.SyncChange{testChange("ch1", "device-a", 1)})

	pulled, err := a.PullChanges(ctx, 0)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pulled) != 0 {
		t.Errorf("expected own changes skipped, got %d", len(pulled))
	}
}

func TestFilesystemAdapter_PullHonorsSince(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	writer := NewFilesystemAdapter(dir, "device-a")
	writer.Connect(ctx)
	writer.PushChanges(ctx, []*domain.SyncChange{
		testChange("ch1", "device-a", 1),
		testChange("ch2", "device-a", 2),
		testChange("ch3", "device-a", 3),
	})

	reader := NewFilesystemAdapter(dir, "device-b")
	reader.Connect(ctx)

	pulled, err := reader.PullChanges(ctx, 2)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pulled) != 1 || pulled[0].SequenceNumber != 3 {
		t.Errorf("expected only sequence 3, got %v", pulled)
	}
}

func TestFilesystemAdapter_PullSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	writer := NewFilesystemAdapter(dir, "device-a")
	writer.Connect(ctx)
	writer.PushChanges(ctx, []*domain.SyncChange{testChange("ch1", "device-a", 1)})

	if err := os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	reader := NewFilesystemAdapter(dir, "device-b")
	reader.Connect(ctx)

	pulled, err := reader.PullChanges(ctx, 0)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pulled) != 1 {
		t.Errorf("expected the malformed file skipped, got %d changes", len(pulled))
	}
}

func TestFilesystemAdapter_RequiresConnect(t *testing.T) {
	a := NewFilesystemAdapter(t.TempDir(), "device-a")

	if _, err := a.PushChanges(context.Background(), nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("push err = %v, want ErrNotConnected", err)
	}
	if _, err := a.PullChanges(context.Background(), 0); !errors.Is(err, ErrNotConnected) {
		t.Errorf("pull err = %v, want ErrNotConnected", err)
	}
}

func TestFilesystemAdapter_NoPartialFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a := NewFilesystemAdapter(dir, "device-a")
	a.Connect(ctx)
	a.PushChanges(ctx, []*domain.SyncChange{testChange("ch1", "device-a", 1)})

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".json" {
			t.Errorf("unexpected leftover file %s", entry.Name())
		}
	}
}
