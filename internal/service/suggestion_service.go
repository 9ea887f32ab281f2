package service

import (
	"fmt"
	"strings"
	"time"

	"atelier-sync-core/internal/domain"
)

// lastWriteWinsGap is the timestamp distance beyond which one side is clearly
// the later edit and LastWriteWins becomes a safe recommendation.
const lastWriteWinsGap = 5 * time.Minute

// previewValueLimit caps rendered field values in previews.
const previewValueLimit = 80

type entityPolicy struct {
	priority        int
	defaultStrategy domain.ResolutionStrategy
}

// entityPolicies ranks entity types by how costly a bad automatic resolution
// would be. Priority 1 types always go to the user when fields overlap.
var entityPolicies = map[string]entityPolicy{
	"task":             {priority: 1, defaultStrategy: domain.ResolutionLastWriteWins},
	"design_component": {priority: 1, defaultStrategy: domain.ResolutionMerge},
	"plan":             {priority: 2, defaultStrategy: domain.ResolutionMerge},
	"design_page":      {priority: 2, defaultStrategy: domain.ResolutionMerge},
	"design_token":     {priority: 3, defaultStrategy: domain.ResolutionLastWriteWins},
	"page_flow":        {priority: 3, defaultStrategy: domain.ResolutionLastWriteWins},
}

var unknownEntityPolicy = entityPolicy{priority: 2, defaultStrategy: domain.ResolutionUserChoice}

func policyFor(entityType string) entityPolicy {
	if p, ok := entityPolicies[entityType]; ok {
		return p
	}
	return unknownEntityPolicy
}

// SuggestionService recommends a resolution strategy for a conflict. It is
// pure and read-only: suggesting never mutates the conflict.
type SuggestionService struct{}

func NewSuggestionService() *SuggestionService {
	return &SuggestionService{}
}

// Suggest walks a fixed decision ladder; the first matching rule wins.
// Confidences are fixed per rule and strictly ordered:
// 0.95 clean merge > 0.85 critical overlap > 0.75 time gap > 0.5 default >
// 0.3 unparseable.
func (s *SuggestionService) Suggest(conflict *domain.SyncConflict) *domain.Suggestion {
	local, remote, err := parseVersions(conflict)
	if err != nil {
		return &domain.Suggestion{
			Strategy:   domain.ResolutionUserChoice,
			Confidence: 0.3,
			Reason:     "unable to parse one or both entity versions",
			Preview:    "cannot generate preview",
		}
	}

	diff := CompareFields(local, remote)
	overlapping := diff.trueConflicts()

	if len(overlapping) == 0 {
		return &domain.Suggestion{
			Strategy:   domain.ResolutionMerge,
			Confidence: 0.95,
			Reason:     "changes do not overlap and can be merged automatically",
			Preview:    mergePreview(diff),
		}
	}

	policy := policyFor(conflict.EntityType)
	if policy.priority == 1 {
		return &domain.Suggestion{
			Strategy:   domain.ResolutionUserChoice,
			Confidence: 0.85,
			Reason: fmt.Sprintf("%s is a critical entity type and fields overlap: %s",
				conflict.EntityType, strings.Join(overlapping, ", ")),
			Preview: overlapPreview(overlapping, local, remote),
		}
	}

	gap := conflict.RemoteChangedAt.Sub(conflict.LocalChangedAt)
	if gap < 0 {
		gap = -gap
	}
	if gap > lastWriteWinsGap {
		newer := "local"
		if conflict.RemoteChangedAt.After(conflict.LocalChangedAt) {
			newer = "remote"
		}
		return &domain.Suggestion{
			Strategy:   domain.ResolutionLastWriteWins,
			Confidence: 0.75,
			Reason: fmt.Sprintf("%s version is newer by %d minutes",
				newer, int(gap.Minutes())),
			Preview: overlapPreview(overlapping, local, remote),
		}
	}

	return &domain.Suggestion{
		Strategy:   policy.defaultStrategy,
		Confidence: 0.5,
		Reason: fmt.Sprintf("falling back to %s, the default for %s; fields still in conflict: %s",
			policy.defaultStrategy, conflict.EntityType, strings.Join(overlapping, ", ")),
		Preview: overlapPreview(overlapping, local, remote),
	}
}

func mergePreview(diff FieldDiff) string {
	localFields := withoutMetadata(diff.LocalOnly)
	remoteFields := withoutMetadata(diff.RemoteOnly)

	return fmt.Sprintf("from local: %s; from remote: %s",
		fieldListOrNone(localFields), fieldListOrNone(remoteFields))
}

func overlapPreview(fields []string, local, remote map[string]any) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: local=%s | remote=%s",
			f, previewValue(local[f]), previewValue(remote[f]))
	}
	return b.String()
}

// previewValue renders a field value for display, truncating on rune
// boundaries so multi-byte characters are never split.
func previewValue(v any) string {
	rendered := []rune(string(marshalValue(v)))
	if len(rendered) > previewValueLimit {
		return string(rendered[:previewValueLimit-3]) + "..."
	}
	return string(rendered)
}

func withoutMetadata(fields []string) []string {
	var out []string
	for _, f := range fields {
		if !IsMetadataField(f) {
			out = append(out, f)
		}
	}
	return out
}

func fieldListOrNone(fields []string) string {
	if len(fields) == 0 {
		return "none"
	}
	return strings.Join(fields, ", ")
}
