package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConflictNotFound is returned when resolving or querying an unknown
// conflict id.
var ErrConflictNotFound = errors.New("conflict not found")

// MergeConflictError reports a Merge resolution attempt on a conflict whose
// fields genuinely overlap. The conflict stays unresolved; the caller must
// pick a different strategy.
type MergeConflictError struct {
	ConflictID string
	Fields     []string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("cannot auto-merge conflict %s: fields changed on both sides: %s",
		e.ConflictID, strings.Join(e.Fields, ", "))
}

// UnknownStrategyError reports a resolution strategy outside the five
// recognized values. It is rejected before any state change.
type UnknownStrategyError struct {
	Strategy string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown resolution strategy: %q", e.Strategy)
}
