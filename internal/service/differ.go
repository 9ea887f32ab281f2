package service

import (
	"bytes"
	"sort"
)

// metadataFields change on every write and carry no semantic conflict, so
// detection and merging ignore them.
var metadataFields = map[string]bool{
	"updated_at":   true,
	"created_at":   true,
	"synced_at":    true,
	"last_sync_at": true,
}

// IsMetadataField reports whether the field is bookkeeping-only.
func IsMetadataField(name string) bool {
	return metadataFields[name]
}

// FieldDiff partitions the union of both entities' top-level field names into
// four disjoint sorted buckets.
type FieldDiff struct {
	Both       []string
	LocalOnly  []string
	RemoteOnly []string
	Unchanged  []string
}

// CompareFields categorizes every field of two entity snapshots. Value
// equality is structural: values compare equal when their JSON serializations
// match, so nested objects and arrays are compared by their full encoded form.
func CompareFields(local, remote map[string]any) FieldDiff {
	seen := make(map[string]bool, len(local)+len(remote))
	keys := make([]string, 0, len(local)+len(remote))
	for k := range local {
		seen[k] = true
		keys = append(keys, k)
	}
	for k := range remote {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var diff FieldDiff
	for _, k := range keys {
		localValue, inLocal := local[k]
		remoteValue, inRemote := remote[k]

		switch {
		case inLocal && !inRemote:
			diff.LocalOnly = append(diff.LocalOnly, k)
		case !inLocal && inRemote:
			diff.RemoteOnly = append(diff.RemoteOnly, k)
		case bytes.Equal(marshalValue(localValue), marshalValue(remoteValue)):
			diff.Unchanged = append(diff.Unchanged, k)
		default:
			diff.Both = append(diff.Both, k)
		}
	}

	return diff
}

// changedFields returns every non-metadata field that differs on either side,
// sorted.
func (d FieldDiff) changedFields() []string {
	fields := make([]string, 0, len(d.Both)+len(d.LocalOnly)+len(d.RemoteOnly))
	for _, bucket := range [][]string{d.Both, d.LocalOnly, d.RemoteOnly} {
		for _, f := range bucket {
			if !IsMetadataField(f) {
				fields = append(fields, f)
			}
		}
	}
	sort.Strings(fields)
	return fields
}

// trueConflicts returns the non-metadata fields changed on both sides.
func (d FieldDiff) trueConflicts() []string {
	var fields []string
	for _, f := range d.Both {
		if !IsMetadataField(f) {
			fields = append(fields, f)
		}
	}
	return fields
}
