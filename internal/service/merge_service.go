package service

import (
	"encoding/json"
	"sort"

	"atelier-sync-core/internal/domain"
	"atelier-sync-core/internal/logging"
)

// MergeResult is the outcome of an auto-merge attempt. On failure Merged is
// always empty; a partial merge is never returned.
type MergeResult struct {
	Merged            map[string]any `json:"merged"`
	Success           bool           `json:"success"`
	MergedFields      []string       `json:"merged_fields"`
	ConflictingFields []string       `json:"conflicting_fields"`
}

// Merger combines non-overlapping field changes from the two sides of a
// conflict into one entity.
type Merger struct{}

func NewMerger() *Merger {
	return &Merger{}
}

// Merge attempts to combine the conflict's local and remote versions. It
// fails closed: any non-metadata field changed on both sides aborts the merge
// with those fields reported. Metadata fields changed on both sides keep the
// local value.
func (m *Merger) Merge(conflict *domain.SyncConflict) MergeResult {
	local, remote, err := parseVersions(conflict)
	if err != nil {
		logging.Error("failed to parse conflict versions for merge",
			logging.Conflict(conflict.ID),
			logging.Err(err),
		)
		return MergeResult{
			Merged:            map[string]any{},
			Success:           false,
			ConflictingFields: conflict.ConflictingFields,
		}
	}

	diff := CompareFields(local, remote)

	if overlapping := diff.trueConflicts(); len(overlapping) > 0 {
		return MergeResult{
			Merged:            map[string]any{},
			Success:           false,
			ConflictingFields: overlapping,
		}
	}

	// Base copy is the full local object: localOnly fields and local
	// metadata arrive for free.
	merged := make(map[string]any, len(local)+len(diff.RemoteOnly))
	for k, v := range local {
		merged[k] = v
	}

	var mergedFields []string
	for _, f := range diff.LocalOnly {
		if !IsMetadataField(f) {
			mergedFields = append(mergedFields, f)
		}
	}
	for _, f := range diff.RemoteOnly {
		if IsMetadataField(f) {
			continue
		}
		merged[f] = remote[f]
		mergedFields = append(mergedFields, f)
	}
	sort.Strings(mergedFields)

	return MergeResult{
		Merged:       merged,
		Success:      true,
		MergedFields: mergedFields,
	}
}

func parseVersions(conflict *domain.SyncConflict) (local, remote map[string]any, err error) {
	if err = json.Unmarshal([]byte(conflict.LocalVersion), &local); err != nil {
		return nil, nil, err
	}
	if err = json.Unmarshal([]byte(conflict.RemoteVersion), &remote); err != nil {
		return nil, nil, err
	}
	return local, remote, nil
}
