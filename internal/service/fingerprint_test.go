package service

import "testing"

func TestFingerprint_Deterministic(t *testing.T) {
	entity := map[string]any{
		"title":  "Kitchen remodel",
		"status": "active",
		"budget": 12500,
	}

	first := Fingerprint(entity)
	second := Fingerprint(entity)

	if first != second {
		t.Errorf("expected identical hashes, got %s and %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(first))
	}
}

func TestFingerprint_KeyOrderIndependent(t *testing.T) {
	a := map[string]any{"title": "Sofa", "color": "green", "width": 210}
	b := map[string]any{"width": 210, "color": "green", "title": "Sofa"}

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("expected equal hashes for the same fields in different insertion order")
	}
}

func TestFingerprint_ValueChangesHash(t *testing.T) {
	a := map[string]any{"title": "Sofa", "color": "green"}
	b := map[string]any{"title": "Sofa", "color": "blue"}

	if Fingerprint(a) == Fingerprint(b) {
		t.Error("expected different hashes for different values")
	}
}

func TestFingerprint_FieldPresenceChangesHash(t *testing.T) {
	a := map[string]any{"title": "Sofa"}
	b := map[string]any{"title": "Sofa", "notes": nil}

	if Fingerprint(a) == Fingerprint(b) {
		t.Error("expected a present-but-nil field to change the hash")
	}
}

func TestFingerprint_EmptyEntity(t *testing.T) {
	if got := Fingerprint(map[string]any{}); len(got) != 64 {
		t.Errorf("expected a valid hash for an empty entity, got %q", got)
	}
}
