// Package memory stores conversation turn histories outside the
// orchestration loop's lifetime.
package memory

import (
	"context"

	"github.com/loomkg/loom/pkg/model"
)

// Store persists per-conversation turn histories. Histories are
// append-only; Clear drops a conversation entirely.
type Store interface {
	Append(ctx context.Context, conversationID string, turns ...model.Turn) error
	History(ctx context.Context, conversationID string) ([]model.Turn, error)
	Clear(ctx context.Context, conversationID string) error
}
