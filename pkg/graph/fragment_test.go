package graph

import "testing"

func TestMerge_Empty(t *testing.T) {
	f := &Fragment{}
	f.Merge(&Fragment{
		Nodes: []Node{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		Links: []Link{{Source: "a", Target: "b", Label: "knows"}},
	})
	if len(f.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(f.Nodes))
	}
	if len(f.Links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(f.Links))
	}
}

func TestMerge_Idempotent(t *testing.T) {
	in := &Fragment{
		Nodes: []Node{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		Links: []Link{{Source: "a", Target: "b", Label: "knows"}},
	}

	f := &Fragment{}
	f.Merge(in)
	f.Merge(in)

	if len(f.Nodes) != 2 {
		t.Fatalf("expected 2 nodes after double merge, got %d", len(f.Nodes))
	}
	if len(f.Links) != 1 {
		t.Fatalf("expected 1 link after double merge, got %d", len(f.Links))
	}
}

func TestMerge_FirstOccurrenceWins(t *testing.T) {
	f := &Fragment{Nodes: []Node{{ID: "a", Name: "original", Group: "g1"}}}
	f.Merge(&Fragment{Nodes: []Node{{ID: "a", Name: "conflicting", Group: "g2"}}})

	if len(f.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(f.Nodes))
	}
	if f.Nodes[0].Name != "original" {
		t.Fatalf("expected first occurrence to win, got %q", f.Nodes[0].Name)
	}
}

func TestMerge_LinksDistinguishedByLabel(t *testing.T) {
	f := &Fragment{}
	f.Merge(&Fragment{
		Nodes: []Node{{ID: "a"}, {ID: "b"}},
		Links: []Link{
			{Source: "a", Target: "b", Label: "encodes"},
			{Source: "a", Target: "b", Label: "inhibits"},
		},
	})
	if len(f.Links) != 2 {
		t.Fatalf("expected 2 links with distinct labels, got %d", len(f.Links))
	}
}

func TestMerge_SkipsBlankEntries(t *testing.T) {
	f := &Fragment{}
	f.Merge(&Fragment{
		Nodes: []Node{{ID: ""}, {ID: "a"}},
		Links: []Link{{Source: "", Target: "a"}, {Source: "a", Target: ""}},
	})
	if len(f.Nodes) != 1 {
		t.Fatalf("expected blank node to be skipped, got %d nodes", len(f.Nodes))
	}
	if len(f.Links) != 0 {
		t.Fatalf("expected blank links to be skipped, got %d links", len(f.Links))
	}
}

func TestClone_Independent(t *testing.T) {
	f := &Fragment{
		Nodes: []Node{{ID: "a", Name: "A"}},
		Links: []Link{{Source: "a", Target: "a", Label: "self"}},
	}
	c := f.Clone()
	c.Nodes[0].Name = "changed"
	if f.Nodes[0].Name != "A" {
		t.Fatalf("clone is not independent of the original")
	}
}
