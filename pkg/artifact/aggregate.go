// Package artifact accumulates tool outputs over the rounds of a run and
// assembles the final artifact list.
package artifact

import (
	"github.com/loomkg/loom/internal/util"
	"github.com/loomkg/loom/pkg/graph"
	"github.com/loomkg/loom/pkg/tool"
)

// Artifact type identifiers used for the assembled outputs.
const (
	TypeBibliography   = "bibliography"
	TypeKnowledgeGraph = "knowledge_graph"
	TypeBinary         = "binary"
)

// Set collects the side outputs of all tool invocations within a single
// run. Citations are deduplicated by ID in first-appearance order, graph
// fragments merge into one, binary and direct artifacts keep arrival
// order. A Set is not safe for concurrent use; the orchestrator
// accumulates round results sequentially.
type Set struct {
	citations     []tool.Citation
	seenCitations map[string]struct{}
	merged        graph.Fragment
	binary        []tool.BinaryOutput
	direct        []tool.Artifact
	refreshGraph  bool
	finalized     bool
}

// NewSet creates an empty aggregation set.
func NewSet() *Set {
	return &Set{seenCitations: map[string]struct{}{}}
}

// SeedGraph pre-populates the merged graph, typically with the fragment
// the conversation was opened on so later additions extend it.
func (s *Set) SeedGraph(f *graph.Fragment) {
	if f == nil {
		return
	}
	s.merged.Merge(f)
}

// Accumulate folds one tool result into the set.
func (s *Set) Accumulate(res *tool.Result) {
	if res == nil {
		return
	}
	for _, c := range res.Bibliography {
		if c.ID == "" {
			continue
		}
		if _, seen := s.seenCitations[c.ID]; seen {
			continue
		}
		s.seenCitations[c.ID] = struct{}{}
		s.citations = append(s.citations, c)
	}
	if res.Graph != nil {
		s.merged.Merge(res.Graph)
	}
	s.binary = append(s.binary, res.Binary...)
	s.direct = append(s.direct, res.Artifacts...)
	if res.RefreshGraph {
		s.refreshGraph = true
	}
}

// RefreshGraph reports whether any accumulated result asked for a graph
// reload.
func (s *Set) RefreshGraph() bool {
	return s.refreshGraph
}

// Finalize assembles the artifact list: a bibliography artifact when any
// citations were collected, a knowledge-graph artifact when the merged
// graph is non-empty, then binary artifacts and direct artifacts in
// arrival order. Finalize is single-shot; further calls return nil.
func (s *Set) Finalize() []tool.Artifact {
	if s.finalized {
		return nil
	}
	s.finalized = true

	var artifacts []tool.Artifact
	if len(s.citations) > 0 {
		artifacts = append(artifacts, tool.Artifact{
			ID:        util.NewID(),
			Type:      TypeBibliography,
			Title:     "Bibliography",
			Citations: s.citations,
		})
	}
	if len(s.merged.Nodes) > 0 || len(s.merged.Links) > 0 {
		g := s.merged.Clone()
		artifacts = append(artifacts, tool.Artifact{
			ID:    util.NewID(),
			Type:  TypeKnowledgeGraph,
			Title: "Knowledge Graph",
			Graph: g,
		})
	}
	for _, b := range s.binary {
		artifacts = append(artifacts, tool.Artifact{
			ID:       util.NewID(),
			Type:     TypeBinary,
			Title:    b.Name,
			MimeType: b.MimeType,
			Data:     b.Data,
		})
	}
	for _, a := range s.direct {
		if a.ID == "" {
			a.ID = util.NewID()
		}
		artifacts = append(artifacts, a)
	}
	return artifacts
}
