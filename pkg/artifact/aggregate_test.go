package artifact

import (
	"testing"

	"github.com/loomkg/loom/pkg/graph"
	"github.com/loomkg/loom/pkg/tool"
)

func TestAccumulateDeduplicatesCitations(t *testing.T) {
	s := NewSet()
	s.Accumulate(&tool.Result{Bibliography: []tool.Citation{
		{ID: "pmid:1", Title: "first"},
		{ID: "pmid:2", Title: "second"},
	}})
	s.Accumulate(&tool.Result{Bibliography: []tool.Citation{
		{ID: "pmid:1", Title: "first again, different title"},
		{ID: "pmid:3", Title: "third"},
	}})

	artifacts := s.Finalize()
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}
	bib := artifacts[0]
	if bib.Type != TypeBibliography {
		t.Fatalf("unexpected type %q", bib.Type)
	}
	if len(bib.Citations) != 3 {
		t.Fatalf("expected 3 citations, got %d", len(bib.Citations))
	}
	if bib.Citations[0].ID != "pmid:1" || bib.Citations[1].ID != "pmid:2" || bib.Citations[2].ID != "pmid:3" {
		t.Fatalf("citation order wrong: %+v", bib.Citations)
	}
	if bib.Citations[0].Title != "first" {
		t.Fatalf("first appearance should win, got %q", bib.Citations[0].Title)
	}
}

func TestAccumulateSkipsBlankCitationIDs(t *testing.T) {
	s := NewSet()
	s.Accumulate(&tool.Result{Bibliography: []tool.Citation{{ID: "", Title: "anon"}}})
	if artifacts := s.Finalize(); len(artifacts) != 0 {
		t.Fatalf("expected no artifacts, got %d", len(artifacts))
	}
}

func TestGraphFragmentsMergeIntoOne(t *testing.T) {
	s := NewSet()
	s.SeedGraph(&graph.Fragment{
		Nodes: []graph.Node{{ID: "a", Name: "A"}},
	})
	s.Accumulate(&tool.Result{Graph: &graph.Fragment{
		Nodes: []graph.Node{{ID: "b", Name: "B"}},
		Links: []graph.Link{{Source: "a", Target: "b", Label: "rel"}},
	}})
	s.Accumulate(&tool.Result{Graph: &graph.Fragment{
		Nodes: []graph.Node{{ID: "a", Name: "A duplicate"}},
		Links: []graph.Link{{Source: "a", Target: "b", Label: "rel"}},
	}})

	artifacts := s.Finalize()
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}
	g := artifacts[0].Graph
	if artifacts[0].Type != TypeKnowledgeGraph || g == nil {
		t.Fatalf("expected a knowledge graph artifact")
	}
	if len(g.Nodes) != 2 || len(g.Links) != 1 {
		t.Fatalf("merge not idempotent: %d nodes, %d links", len(g.Nodes), len(g.Links))
	}
	if g.Nodes[0].Name != "A" {
		t.Fatalf("seeded node should win, got %q", g.Nodes[0].Name)
	}
}

func TestBinaryAndDirectArtifactsKeepArrivalOrder(t *testing.T) {
	s := NewSet()
	s.Accumulate(&tool.Result{
		Binary: []tool.BinaryOutput{{Name: "plot1.png", MimeType: "image/png", Data: []byte{1}}},
	})
	s.Accumulate(&tool.Result{
		Binary:    []tool.BinaryOutput{{Name: "plot2.png", MimeType: "image/png", Data: []byte{2}}},
		Artifacts: []tool.Artifact{{Type: "report", Title: "Summary", Content: "text"}},
	})

	artifacts := s.Finalize()
	if len(artifacts) != 3 {
		t.Fatalf("expected 3 artifacts, got %d", len(artifacts))
	}
	if artifacts[0].Title != "plot1.png" || artifacts[1].Title != "plot2.png" {
		t.Fatalf("binary order wrong: %q, %q", artifacts[0].Title, artifacts[1].Title)
	}
	if artifacts[2].Type != "report" {
		t.Fatalf("direct artifact missing, got %q", artifacts[2].Type)
	}
	if artifacts[2].ID == "" {
		t.Fatalf("direct artifact should receive an id")
	}
	for _, a := range artifacts[:2] {
		if a.ID == "" || a.Type != TypeBinary {
			t.Fatalf("binary artifact malformed: %+v", a)
		}
	}
}

func TestFinalizeSingleShot(t *testing.T) {
	s := NewSet()
	s.Accumulate(&tool.Result{Bibliography: []tool.Citation{{ID: "x", Title: "t"}}})
	first := s.Finalize()
	if len(first) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(first))
	}
	if second := s.Finalize(); second != nil {
		t.Fatalf("expected nil on second finalize, got %d artifacts", len(second))
	}
}

func TestRefreshGraphFlag(t *testing.T) {
	s := NewSet()
	if s.RefreshGraph() {
		t.Fatalf("fresh set should not request refresh")
	}
	s.Accumulate(&tool.Result{Text: "done", RefreshGraph: true})
	s.Accumulate(&tool.Result{Text: "later"})
	if !s.RefreshGraph() {
		t.Fatalf("refresh flag should stick once set")
	}
}
