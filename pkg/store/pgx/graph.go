package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/loomkg/loom/internal/util"
	"github.com/loomkg/loom/pkg/logger"
	"github.com/loomkg/loom/pkg/store"
)

const (
	nodeChunk = 250
	edgeChunk = 250
)

// UpsertNodes inserts the given nodes in chunks, skipping ids already
// present under the graph key. A snapshot is appended only when at least
// one row was created.
func (s *GraphDBStore) UpsertNodes(
	ctx context.Context,
	graphKey string,
	nodes []store.Node,
) (store.UpsertResult, error) {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	var result store.UpsertResult
	err := store.ChunkRange(len(nodes), nodeChunk, func(start, end int) error {
		chunk := nodes[start:end]
		logger.Debug("[Graph][UpsertNodes] Saving chunk", "graph", graphKey, "nodes", len(chunk))

		var (
			sb   strings.Builder
			args []any
		)
		sb.WriteString("INSERT INTO graph_nodes (id, graph_key, label, type, data, x, y, created_at) VALUES ")
		for _, n := range chunk {
			if n.ID == "" {
				result.Skipped++
				continue
			}
			data, err := json.Marshal(n.Data)
			if err != nil {
				return fmt.Errorf("failed to encode node data: %w", err)
			}
			if len(args) > 0 {
				sb.WriteString(", ")
			}
			base := len(args)
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, now())",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7)
			args = append(args, n.ID, graphKey, n.Label, n.Type, data, n.X, n.Y)
		}
		if len(args) == 0 {
			return nil
		}
		sb.WriteString(" ON CONFLICT (id, graph_key) DO NOTHING")

		tag, err := s.conn.Exec(ctx, sb.String(), args...)
		if err != nil {
			return err
		}
		created := int(tag.RowsAffected())
		result.Created += created
		result.Skipped += len(args)/7 - created
		return nil
	})
	if err != nil {
		return store.UpsertResult{}, err
	}

	if result.Created > 0 {
		if err := s.appendSnapshot(ctx, graphKey, store.CommandAddNodes); err != nil {
			return store.UpsertResult{}, err
		}
	}
	return result, nil
}

// UpsertEdges inserts the given edges in chunks, deduplicated by the
// deterministic composite identifier.
func (s *GraphDBStore) UpsertEdges(
	ctx context.Context,
	graphKey string,
	edges []store.Edge,
) (store.UpsertResult, error) {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	var result store.UpsertResult
	err := store.ChunkRange(len(edges), edgeChunk, func(start, end int) error {
		chunk := edges[start:end]
		logger.Debug("[Graph][UpsertEdges] Saving chunk", "graph", graphKey, "edges", len(chunk))

		var (
			sb   strings.Builder
			args []any
		)
		sb.WriteString("INSERT INTO graph_edges (id, graph_key, source, target, label, data_source, primary_source, created_at) VALUES ")
		rows := 0
		for _, e := range chunk {
			if e.ID == "" {
				e.ID = store.EdgeID(graphKey, e.DataSource, e.PrimarySource, e.Source, e.Label, e.Target)
			}
			if rows > 0 {
				sb.WriteString(", ")
			}
			base := len(args)
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, now())",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7)
			args = append(args, e.ID, graphKey, e.Source, e.Target, e.Label, e.DataSource, e.PrimarySource)
			rows++
		}
		if rows == 0 {
			return nil
		}
		sb.WriteString(" ON CONFLICT (id, graph_key) DO NOTHING")

		tag, err := s.conn.Exec(ctx, sb.String(), args...)
		if err != nil {
			return err
		}
		created := int(tag.RowsAffected())
		result.Created += created
		result.Skipped += rows - created
		return nil
	})
	if err != nil {
		return store.UpsertResult{}, err
	}

	if result.Created > 0 {
		if err := s.appendSnapshot(ctx, graphKey, store.CommandAddEdges); err != nil {
			return store.UpsertResult{}, err
		}
	}
	return result, nil
}

// DeleteNode removes the node and cascades to edges referencing it.
// Unknown node ids are no-ops without a snapshot.
func (s *GraphDBStore) DeleteNode(ctx context.Context, graphKey, nodeID string) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tag, err := s.conn.Exec(ctx,
		`DELETE FROM graph_nodes WHERE graph_key = $1 AND id = $2`,
		graphKey, nodeID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	if _, err := s.conn.Exec(ctx,
		`DELETE FROM graph_edges WHERE graph_key = $1 AND (source = $2 OR target = $2)`,
		graphKey, nodeID,
	); err != nil {
		return err
	}
	return s.appendSnapshot(ctx, graphKey, store.CommandRemoveNode)
}

// DeleteEdge removes a single edge. Unknown edge ids are no-ops without a
// snapshot.
func (s *GraphDBStore) DeleteEdge(ctx context.Context, graphKey, edgeID string) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tag, err := s.conn.Exec(ctx,
		`DELETE FROM graph_edges WHERE graph_key = $1 AND id = $2`,
		graphKey, edgeID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	return s.appendSnapshot(ctx, graphKey, store.CommandRemoveEdge)
}

// CurrentState returns the live node and edge set, empty for unknown
// graph keys.
func (s *GraphDBStore) CurrentState(ctx context.Context, graphKey string) (store.State, error) {
	return s.loadState(ctx, s.conn, graphKey)
}

// History returns snapshots most-recent-first, at most limit entries when
// limit is positive.
func (s *GraphDBStore) History(ctx context.Context, graphKey string, limit int) ([]store.Snapshot, error) {
	query := `SELECT id, command, payload, created_at
		FROM graph_snapshots WHERE graph_key = $1 ORDER BY created_at DESC`
	args := []any{graphKey}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := []store.Snapshot{}
	for rows.Next() {
		var (
			snap    store.Snapshot
			payload []byte
		)
		if err := rows.Scan(&snap.ID, &snap.Command, &payload, &snap.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &snap.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot payload: %w", err)
		}
		snap.GraphKey = graphKey
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// Undo moves the snapshot cursor one step back and returns the resulting
// live state. At the oldest snapshot it returns the unchanged state.
func (s *GraphDBStore) Undo(ctx context.Context, graphKey string) (store.State, error) {
	return s.moveCursor(ctx, graphKey, false)
}

// Redo moves the snapshot cursor one step forward and returns the
// resulting live state. At the newest snapshot it returns the unchanged
// state.
func (s *GraphDBStore) Redo(ctx context.Context, graphKey string) (store.State, error) {
	return s.moveCursor(ctx, graphKey, true)
}

func (s *GraphDBStore) moveCursor(ctx context.Context, graphKey string, forward bool) (store.State, error) {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return store.State{}, err
	}
	defer tx.Rollback(ctx)

	var cursorAt time.Time
	err = tx.QueryRow(ctx,
		`SELECT s.created_at FROM graph_cursors c
		 JOIN graph_snapshots s ON s.id = c.snapshot_id
		 WHERE c.graph_key = $1`,
		graphKey,
	).Scan(&cursorAt)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return s.loadState(ctx, tx, graphKey)
	}
	if err != nil {
		return store.State{}, err
	}

	direction := `created_at < $2 ORDER BY created_at DESC`
	if forward {
		direction = `created_at > $2 ORDER BY created_at ASC`
	}
	var (
		nextID  string
		payload []byte
	)
	err = tx.QueryRow(ctx,
		`SELECT id, payload FROM graph_snapshots
		 WHERE graph_key = $1 AND `+direction+` LIMIT 1`,
		graphKey, cursorAt,
	).Scan(&nextID, &payload)
	if errors.Is(err, pgxv5.ErrNoRows) {
		// already at the end of history in that direction
		return s.loadState(ctx, tx, graphKey)
	}
	if err != nil {
		return store.State{}, err
	}

	var state store.State
	if err := json.Unmarshal(payload, &state); err != nil {
		return store.State{}, fmt.Errorf("failed to decode snapshot payload: %w", err)
	}

	if err := s.replaceLive(ctx, tx, graphKey, state); err != nil {
		return store.State{}, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE graph_cursors SET snapshot_id = $2 WHERE graph_key = $1`,
		graphKey, nextID,
	); err != nil {
		return store.State{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return store.State{}, err
	}
	return state, nil
}

// appendSnapshot records the live state as the newest history entry and
// points the cursor at it. Called by every mutating operation as its
// final step.
func (s *GraphDBStore) appendSnapshot(ctx context.Context, graphKey, command string) error {
	state, err := s.loadState(ctx, s.conn, graphKey)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot payload: %w", err)
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	id := util.NewID()
	if _, err := tx.Exec(ctx,
		`INSERT INTO graph_snapshots (id, graph_key, command, payload, created_at)
		 VALUES ($1, $2, $3, $4, clock_timestamp())`,
		id, graphKey, command, payload,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO graph_cursors (graph_key, snapshot_id) VALUES ($1, $2)
		 ON CONFLICT (graph_key) DO UPDATE SET snapshot_id = EXCLUDED.snapshot_id`,
		graphKey, id,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *GraphDBStore) loadState(ctx context.Context, conn pgxIConn, graphKey string) (store.State, error) {
	state := store.State{Nodes: []store.Node{}, Edges: []store.Edge{}}

	rows, err := conn.Query(ctx,
		`SELECT id, label, type, data, x, y, created_at
		 FROM graph_nodes WHERE graph_key = $1 ORDER BY created_at, id`,
		graphKey,
	)
	if err != nil {
		return store.State{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			n    store.Node
			data []byte
		)
		if err := rows.Scan(&n.ID, &n.Label, &n.Type, &data, &n.X, &n.Y, &n.CreatedAt); err != nil {
			return store.State{}, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return store.State{}, fmt.Errorf("failed to decode node data: %w", err)
			}
		}
		n.GraphKey = graphKey
		state.Nodes = append(state.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return store.State{}, err
	}
	rows.Close()

	rows, err = conn.Query(ctx,
		`SELECT id, source, target, label, data_source, primary_source, created_at
		 FROM graph_edges WHERE graph_key = $1 ORDER BY created_at, id`,
		graphKey,
	)
	if err != nil {
		return store.State{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var e store.Edge
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &e.Label, &e.DataSource, &e.PrimarySource, &e.CreatedAt); err != nil {
			return store.State{}, err
		}
		e.GraphKey = graphKey
		state.Edges = append(state.Edges, e)
	}
	return state, rows.Err()
}

func (s *GraphDBStore) replaceLive(ctx context.Context, tx pgxv5.Tx, graphKey string, state store.State) error {
	if _, err := tx.Exec(ctx, `DELETE FROM graph_edges WHERE graph_key = $1`, graphKey); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM graph_nodes WHERE graph_key = $1`, graphKey); err != nil {
		return err
	}
	for _, n := range state.Nodes {
		data, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("failed to encode node data: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO graph_nodes (id, graph_key, label, type, data, x, y, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			n.ID, graphKey, n.Label, n.Type, data, n.X, n.Y, n.CreatedAt,
		); err != nil {
			return err
		}
	}
	for _, e := range state.Edges {
		if _, err := tx.Exec(ctx,
			`INSERT INTO graph_edges (id, graph_key, source, target, label, data_source, primary_source, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, graphKey, e.Source, e.Target, e.Label, e.DataSource, e.PrimarySource, e.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}
