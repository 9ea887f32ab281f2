package service

import (
	"reflect"
	"testing"
)

func TestCompareFields_Partition(t *testing.T) {
	local := map[string]any{
		"title":      "Draft plan",
		"status":     "active",
		"owner":      "ana",
		"updated_at": "2026-08-01T10:00:00Z",
	}
	remote := map[string]any{
		"title":      "Draft plan",
		"status":     "archived",
		"tags":       []any{"q3"},
		"updated_at": "2026-08-02T09:00:00Z",
	}

	diff := CompareFields(local, remote)

	if want := []string{"status", "updated_at"}; !reflect.DeepEqual(diff.Both, want) {
		t.Errorf("Both = %v, want %v", diff.Both, want)
	}
	if want := []string{"owner"}; !reflect.DeepEqual(diff.LocalOnly, want) {
		t.Errorf("LocalOnly = %v, want %v", diff.LocalOnly, want)
	}
	if want := []string{"tags"}; !reflect.DeepEqual(diff.RemoteOnly, want) {
		t.Errorf("RemoteOnly = %v, want %v", diff.RemoteOnly, want)
	}
	if want := []string{"title"}; !reflect.DeepEqual(diff.Unchanged, want) {
		t.Errorf("Unchanged = %v, want %v", diff.Unchanged, want)
	}
}

func TestCompareFields_StructuralEquality(t *testing.T) {
	local := map[string]any{"layout": map[string]any{"x": 1, "y": 2}}
	remote := map[string]any{"layout": map[string]any{"x": 1, "y": 2}}

	diff := CompareFields(local, remote)
	if len(diff.Both) != 0 || len(diff.Unchanged) != 1 {
		t.Errorf("expected nested maps with equal content to be unchanged, got %+v", diff)
	}
}

func TestCompareFields_NumericEncodingMatters(t *testing.T) {
	// 1 and 1.0 encode identically in JSON, so they compare equal.
	diff := CompareFields(map[string]any{"n": 1.0}, map[string]any{"n": float64(1)})
	if len(diff.Unchanged) != 1 {
		t.Errorf("expected equal numbers to be unchanged, got %+v", diff)
	}
}

func TestChangedFields_ExcludesMetadata(t *testing.T) {
	diff := CompareFields(
		map[string]any{"title": "a", "updated_at": "t1", "synced_at": "s1"},
		map[string]any{"title": "b", "updated_at": "t2", "last_sync_at": "s2"},
	)

	if want := []string{"title"}; !reflect.DeepEqual(diff.changedFields(), want) {
		t.Errorf("changedFields = %v, want %v", diff.changedFields(), want)
	}
}

func TestChangedFields_CollectsAllThreeBuckets(t *testing.T) {
	diff := CompareFields(
		map[string]any{"title": "a", "owner": "ana"},
		map[string]any{"title": "b", "tags": []any{"q3"}},
	)

	if want := []string{"owner", "tags", "title"}; !reflect.DeepEqual(diff.changedFields(), want) {
		t.Errorf("changedFields = %v, want %v", diff.changedFields(), want)
	}
}

func TestChangedFields_MetadataOnlyDivergence(t *testing.T) {
	diff := CompareFields(
		map[string]any{"title": "a", "updated_at": "t1"},
		map[string]any{"title": "a", "updated_at": "t2"},
	)

	if got := diff.changedFields(); len(got) != 0 {
		t.Errorf("expected no changed fields, got %v", got)
	}
}

func TestIsMetadataField(t *testing.T) {
	for _, name := range []string{"updated_at", "created_at", "synced_at", "last_sync_at"} {
		if !IsMetadataField(name) {
			t.Errorf("expected %s to be metadata", name)
		}
	}
	if IsMetadataField("title") {
		t.Error("expected title not to be metadata")
	}
}
