// Package graphtools exposes graph mutation operations to the model. The
// provider is graph-aware: the dispatcher injects the conversation id,
// which doubles as the graph key.
package graphtools

import (
	"context"
	"fmt"

	"github.com/loomkg/loom/pkg/graph"
	"github.com/loomkg/loom/pkg/store"
	"github.com/loomkg/loom/pkg/tool"
)

// Provider builds the graph tool provider over the given store.
func Provider(graphStore store.GraphStore) tool.Provider {
	p := provider{store: graphStore}
	return tool.Provider{
		Name:                     "graph",
		NeedsConversationContext: true,
		Operations: []tool.Operation{
			{
				Name:        "add",
				Description: "Add nodes and edges to the conversation's knowledge graph. Nodes are created before edges so every edge endpoint exists.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"nodes": map[string]any{
							"type":        "array",
							"description": "Nodes to add, each with id, label and optional type",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"id":    map[string]any{"type": "string"},
									"label": map[string]any{"type": "string"},
									"type":  map[string]any{"type": "string"},
								},
								"required": []string{"id", "label"},
							},
						},
						"edges": map[string]any{
							"type":        "array",
							"description": "Edges to add between existing or just-added nodes",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"source": map[string]any{"type": "string"},
									"target": map[string]any{"type": "string"},
									"label":  map[string]any{"type": "string"},
								},
								"required": []string{"source", "target"},
							},
						},
					},
				},
				Handler: p.add,
			},
			{
				Name:        "remove_node",
				Description: "Remove a node and every edge connected to it from the conversation's knowledge graph.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id": map[string]any{"type": "string", "description": "Id of the node to remove"},
					},
					"required": []string{"id"},
				},
				Handler: p.removeNode,
			},
			{
				Name:        "remove_edge",
				Description: "Remove a single edge from the conversation's knowledge graph.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id": map[string]any{"type": "string", "description": "Id of the edge to remove"},
					},
					"required": []string{"id"},
				},
				Handler: p.removeEdge,
			},
			{
				Name:        "show",
				Description: "Return the current state of the conversation's knowledge graph.",
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
				Handler:     p.show,
			},
		},
	}
}

type provider struct {
	store store.GraphStore
}

func graphKey(args map[string]any) (string, error) {
	key, _ := args["conversation_id"].(string)
	if key == "" {
		return "", fmt.Errorf("missing conversation context")
	}
	return key, nil
}

func (p provider) add(ctx context.Context, args map[string]any) (*tool.Result, error) {
	key, err := graphKey(args)
	if err != nil {
		return nil, err
	}

	nodes := parseNodes(args["nodes"])
	edges := parseEdges(args["edges"])
	if len(nodes) == 0 && len(edges) == 0 {
		return tool.TextResult("Nothing to add: no nodes or edges given."), nil
	}

	// nodes first so edge endpoints resolve
	var nodeResult, edgeResult store.UpsertResult
	if len(nodes) > 0 {
		nodeResult, err = p.store.UpsertNodes(ctx, key, nodes)
		if err != nil {
			return nil, err
		}
	}
	if len(edges) > 0 {
		edgeResult, err = p.store.UpsertEdges(ctx, key, edges)
		if err != nil {
			return nil, err
		}
	}

	fragment := &graph.Fragment{}
	for _, n := range nodes {
		fragment.Nodes = append(fragment.Nodes, graph.Node{ID: n.ID, Name: n.Label, Group: n.Type})
	}
	for _, e := range edges {
		fragment.Links = append(fragment.Links, graph.Link{Source: e.Source, Target: e.Target, Label: e.Label})
	}

	return &tool.Result{
		Text: fmt.Sprintf(
			"Added %d nodes (%d already present) and %d edges (%d already present).",
			nodeResult.Created, nodeResult.Skipped, edgeResult.Created, edgeResult.Skipped,
		),
		Graph:        fragment,
		RefreshGraph: nodeResult.Created > 0 || edgeResult.Created > 0,
	}, nil
}

func (p provider) removeNode(ctx context.Context, args map[string]any) (*tool.Result, error) {
	key, err := graphKey(args)
	if err != nil {
		return nil, err
	}
	id, _ := args["id"].(string)
	if id == "" {
		return tool.TextResult("No node id given."), nil
	}
	if err := p.store.DeleteNode(ctx, key, id); err != nil {
		return nil, err
	}
	return &tool.Result{
		Text:         fmt.Sprintf("Removed node %s and its edges.", id),
		RefreshGraph: true,
	}, nil
}

func (p provider) removeEdge(ctx context.Context, args map[string]any) (*tool.Result, error) {
	key, err := graphKey(args)
	if err != nil {
		return nil, err
	}
	id, _ := args["id"].(string)
	if id == "" {
		return tool.TextResult("No edge id given."), nil
	}
	if err := p.store.DeleteEdge(ctx, key, id); err != nil {
		return nil, err
	}
	return &tool.Result{
		Text:         fmt.Sprintf("Removed edge %s.", id),
		RefreshGraph: true,
	}, nil
}

func (p provider) show(ctx context.Context, args map[string]any) (*tool.Result, error) {
	key, err := graphKey(args)
	if err != nil {
		return nil, err
	}
	state, err := p.store.CurrentState(ctx, key)
	if err != nil {
		return nil, err
	}

	fragment := &graph.Fragment{}
	for _, n := range state.Nodes {
		fragment.Nodes = append(fragment.Nodes, graph.Node{ID: n.ID, Name: n.Label, Group: n.Type})
	}
	for _, e := range state.Edges {
		fragment.Links = append(fragment.Links, graph.Link{Source: e.Source, Target: e.Target, Label: e.Label})
	}

	return &tool.Result{
		Text:  fmt.Sprintf("The graph currently holds %d nodes and %d edges.", len(state.Nodes), len(state.Edges)),
		Graph: fragment,
	}, nil
}

func parseNodes(raw any) []store.Node {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	nodes := make([]store.Node, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		if id == "" {
			continue
		}
		label, _ := m["label"].(string)
		typ, _ := m["type"].(string)
		nodes = append(nodes, store.Node{ID: id, Label: label, Type: typ})
	}
	return nodes
}

func parseEdges(raw any) []store.Edge {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	edges := make([]store.Edge, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		source, _ := m["source"].(string)
		target, _ := m["target"].(string)
		if source == "" || target == "" {
			continue
		}
		label, _ := m["label"].(string)
		edges = append(edges, store.Edge{
			Source:     source,
			Target:     target,
			Label:      label,
			DataSource: "graph-tool",
		})
	}
	return edges
}
