// Package store persists per-conversation knowledge graphs with an
// append-only snapshot history for undo and redo.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Node is a persisted graph node. Identity is the composite (ID, GraphKey);
// the graph key equals the owning conversation's identity.
type Node struct {
	ID        string         `json:"id"`
	GraphKey  string         `json:"graphKey"`
	Label     string         `json:"label"`
	Type      string         `json:"type,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	X         float64        `json:"x,omitempty"`
	Y         float64        `json:"y,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Edge is a persisted graph edge. ID is the deterministic composite
// identifier derived by EdgeID, so re-ingesting the same logical edge from
// the same upstream source collapses onto one row.
type Edge struct {
	ID            string    `json:"id"`
	GraphKey      string    `json:"graphKey"`
	Source        string    `json:"source"`
	Target        string    `json:"target"`
	Label         string    `json:"label,omitempty"`
	DataSource    string    `json:"dataSource,omitempty"`
	PrimarySource string    `json:"primarySource,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// State is the live node and edge set of one graph.
type State struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Snapshot is one entry of a graph's append-only history. Payload holds
// the full node and edge set at the time the snapshot was taken.
type Snapshot struct {
	ID        string    `json:"id"`
	GraphKey  string    `json:"graphKey"`
	Command   string    `json:"command"`
	Payload   State     `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// UpsertResult reports how a bulk upsert partitioned between new rows and
// rows that already existed.
type UpsertResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Snapshot commands recorded in history entries.
const (
	CommandAddNodes   = "addNodes"
	CommandAddEdges   = "addEdges"
	CommandRemoveNode = "removeNode"
	CommandRemoveEdge = "removeEdge"
)

// GraphStore is the contract both the in-memory and the PostgreSQL
// implementations fulfil. Every mutating operation appends a snapshot as
// its final step. Reads on unknown graph keys return empty, deletes on
// unknown keys are no-ops.
type GraphStore interface {
	UpsertNodes(ctx context.Context, graphKey string, nodes []Node) (UpsertResult, error)
	UpsertEdges(ctx context.Context, graphKey string, edges []Edge) (UpsertResult, error)
	DeleteNode(ctx context.Context, graphKey, nodeID string) error
	DeleteEdge(ctx context.Context, graphKey, edgeID string) error

	CurrentState(ctx context.Context, graphKey string) (State, error)
	History(ctx context.Context, graphKey string, limit int) ([]Snapshot, error)
	Undo(ctx context.Context, graphKey string) (State, error)
	Redo(ctx context.Context, graphKey string) (State, error)
}

// EdgeID derives the deterministic composite identifier of an edge. The
// same logical edge from the same upstream source always maps to the same
// identifier.
func EdgeID(graphKey, dataSource, primarySource, sourceID, label, targetID string) string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		graphKey, dataSource, primarySource, sourceID, label, targetID,
	}, "\x1f")))
	return hex.EncodeToString(h[:])
}

// ChunkRange calls fn over [start,end) windows of at most chunkSize
// elements covering total.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// DedupeStrings removes empty strings and duplicates while preserving
// order.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
