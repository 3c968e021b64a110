// Package memory provides an in-process GraphStore used by tests and as a
// scratch store for unconfigured deployments.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/loomkg/loom/internal/util"
	"github.com/loomkg/loom/pkg/store"
)

type graphState struct {
	nodes     map[string]store.Node
	nodeOrder []string
	edges     map[string]store.Edge
	edgeOrder []string

	snapshots []store.Snapshot
	cursor    int // index of the applied snapshot, -1 before the first one
	lastStamp time.Time
}

// Store is a mutex-guarded GraphStore keeping everything in process
// memory.
type Store struct {
	mu     sync.Mutex
	graphs map[string]*graphState
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{graphs: map[string]*graphState{}}
}

func (s *Store) graph(graphKey string) *graphState {
	g, ok := s.graphs[graphKey]
	if !ok {
		g = &graphState{
			nodes:  map[string]store.Node{},
			edges:  map[string]store.Edge{},
			cursor: -1,
		}
		s.graphs[graphKey] = g
	}
	return g
}

func cloneNode(n store.Node) store.Node {
	if n.Data != nil {
		n.Data = maps.Clone(n.Data)
	}
	return n
}

func (g *graphState) liveState() store.State {
	st := store.State{
		Nodes: make([]store.Node, 0, len(g.nodeOrder)),
		Edges: make([]store.Edge, 0, len(g.edgeOrder)),
	}
	for _, id := range g.nodeOrder {
		st.Nodes = append(st.Nodes, cloneNode(g.nodes[id]))
	}
	for _, id := range g.edgeOrder {
		st.Edges = append(st.Edges, g.edges[id])
	}
	return st
}

func (g *graphState) replaceLive(st store.State) {
	g.nodes = make(map[string]store.Node, len(st.Nodes))
	g.nodeOrder = g.nodeOrder[:0]
	for _, n := range st.Nodes {
		g.nodes[n.ID] = cloneNode(n)
		g.nodeOrder = append(g.nodeOrder, n.ID)
	}
	g.edges = make(map[string]store.Edge, len(st.Edges))
	g.edgeOrder = g.edgeOrder[:0]
	for _, e := range st.Edges {
		g.edges[e.ID] = e
		g.edgeOrder = append(g.edgeOrder, e.ID)
	}
}

// stamp returns a timestamp strictly after every one handed out before,
// so history stays totally ordered even on coarse clocks.
func (g *graphState) stamp() time.Time {
	now := time.Now()
	if !now.After(g.lastStamp) {
		now = g.lastStamp.Add(time.Nanosecond)
	}
	g.lastStamp = now
	return now
}

func (g *graphState) appendSnapshot(graphKey, command string) {
	g.snapshots = append(g.snapshots, store.Snapshot{
		ID:        util.NewID(),
		GraphKey:  graphKey,
		Command:   command,
		Payload:   g.liveState(),
		Timestamp: g.stamp(),
	})
	g.cursor = len(g.snapshots) - 1
}

// UpsertNodes inserts the nodes not already present under (id, graphKey).
// Existing ids are left untouched. A snapshot is appended only when at
// least one node was created.
func (s *Store) UpsertNodes(ctx context.Context, graphKey string, nodes []store.Node) (store.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.graph(graphKey)
	var result store.UpsertResult
	for _, n := range nodes {
		if n.ID == "" {
			result.Skipped++
			continue
		}
		if _, exists := g.nodes[n.ID]; exists {
			result.Skipped++
			continue
		}
		n.GraphKey = graphKey
		if n.CreatedAt.IsZero() {
			n.CreatedAt = g.stamp()
		}
		g.nodes[n.ID] = cloneNode(n)
		g.nodeOrder = append(g.nodeOrder, n.ID)
		result.Created++
	}
	if result.Created > 0 {
		g.appendSnapshot(graphKey, store.CommandAddNodes)
	}
	return result, nil
}

// UpsertEdges inserts the edges whose composite identifier is not yet
// present. An empty ID is derived from the edge's identity fields.
func (s *Store) UpsertEdges(ctx context.Context, graphKey string, edges []store.Edge) (store.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.graph(graphKey)
	var result store.UpsertResult
	for _, e := range edges {
		if e.ID == "" {
			e.ID = store.EdgeID(graphKey, e.DataSource, e.PrimarySource, e.Source, e.Label, e.Target)
		}
		if _, exists := g.edges[e.ID]; exists {
			result.Skipped++
			continue
		}
		e.GraphKey = graphKey
		if e.CreatedAt.IsZero() {
			e.CreatedAt = g.stamp()
		}
		g.edges[e.ID] = e
		g.edgeOrder = append(g.edgeOrder, e.ID)
		result.Created++
	}
	if result.Created > 0 {
		g.appendSnapshot(graphKey, store.CommandAddEdges)
	}
	return result, nil
}

// DeleteNode removes the node and every edge referencing it as source or
// target. Unknown graph keys and unknown node ids are no-ops.
func (s *Store) DeleteNode(ctx context.Context, graphKey, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.graphs[graphKey]
	if !ok {
		return nil
	}
	if _, exists := g.nodes[nodeID]; !exists {
		return nil
	}

	delete(g.nodes, nodeID)
	g.nodeOrder = removeString(g.nodeOrder, nodeID)

	kept := g.edgeOrder[:0]
	for _, id := range g.edgeOrder {
		e := g.edges[id]
		if e.Source == nodeID || e.Target == nodeID {
			delete(g.edges, id)
			continue
		}
		kept = append(kept, id)
	}
	g.edgeOrder = kept

	g.appendSnapshot(graphKey, store.CommandRemoveNode)
	return nil
}

// DeleteEdge removes a single edge. Unknown graph keys and unknown edge
// ids are no-ops.
func (s *Store) DeleteEdge(ctx context.Context, graphKey, edgeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.graphs[graphKey]
	if !ok {
		return nil
	}
	if _, exists := g.edges[edgeID]; !exists {
		return nil
	}

	delete(g.edges, edgeID)
	g.edgeOrder = removeString(g.edgeOrder, edgeID)

	g.appendSnapshot(graphKey, store.CommandRemoveEdge)
	return nil
}

// CurrentState returns the live node and edge set, empty for unknown
// graph keys.
func (s *Store) CurrentState(ctx context.Context, graphKey string) (store.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.graphs[graphKey]
	if !ok {
		return store.State{Nodes: []store.Node{}, Edges: []store.Edge{}}, nil
	}
	return g.liveState(), nil
}

// History returns snapshots most-recent-first, at most limit entries when
// limit is positive.
func (s *Store) History(ctx context.Context, graphKey string, limit int) ([]store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.graphs[graphKey]
	if !ok {
		return []store.Snapshot{}, nil
	}
	out := make([]store.Snapshot, 0, len(g.snapshots))
	for i := len(g.snapshots) - 1; i >= 0; i-- {
		out = append(out, g.snapshots[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Undo moves the snapshot cursor one step back and returns the resulting
// live state. At the oldest snapshot it returns the unchanged state.
func (s *Store) Undo(ctx context.Context, graphKey string) (store.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.graphs[graphKey]
	if !ok {
		return store.State{Nodes: []store.Node{}, Edges: []store.Edge{}}, nil
	}
	if g.cursor <= 0 {
		return g.liveState(), nil
	}
	g.cursor--
	g.replaceLive(g.snapshots[g.cursor].Payload)
	return g.liveState(), nil
}

// Redo moves the snapshot cursor one step forward and returns the
// resulting live state. At the newest snapshot it returns the unchanged
// state.
func (s *Store) Redo(ctx context.Context, graphKey string) (store.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.graphs[graphKey]
	if !ok {
		return store.State{Nodes: []store.Node{}, Edges: []store.Edge{}}, nil
	}
	if g.cursor >= len(g.snapshots)-1 {
		return g.liveState(), nil
	}
	g.cursor++
	g.replaceLive(g.snapshots[g.cursor].Payload)
	return g.liveState(), nil
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
