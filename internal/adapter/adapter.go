// Package adapter defines the transport port the sync core pushes and pulls
// changes through, plus one implementation per supported backend.
package adapter

import (
	"context"
	"errors"

	"atelier-sync-core/internal/domain"
)

// ErrNotConnected is returned by push/pull on a disconnected adapter.
var ErrNotConnected = errors.New("adapter not connected")

// PushResult reports which change ids the remote side accepted.
type PushResult struct {
	Accepted []string `json:"accepted"`
	Rejected []string `json:"rejected"`
}

// Adapter is the transport port. Exactly one adapter is active per configured
// backend; the core is agnostic to which. Implementations are not required to
// be safe for concurrent push/pull: the orchestrator's single-flight guard
// serializes access.
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect() error
	PushChanges(ctx context.Context, changes []*domain.SyncChange) (*PushResult, error)
	PullChanges(ctx context.Context, sinceSequence int64) ([]*domain.SyncChange, error)
	IsConnected() bool
}
