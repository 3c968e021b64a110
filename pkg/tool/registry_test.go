package tool

import (
	"context"
	"testing"
)

func noopHandler(ctx context.Context, args map[string]any) (*Result, error) {
	return TextResult("ok"), nil
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"PubMed":        "pubmed",
		"my provider":   "my_provider",
		"Graph.Tools":   "graph_tools",
		"already_fine":  "already_fine",
		"dash-ok":       "dash-ok",
		"Ümlaut/Stuff!": "_mlaut_stuff_",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Provider{
		Name: "Literature Search",
		Operations: []Operation{
			{Name: "Find Articles", Description: "search", Handler: noopHandler},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	prov, op, ok := r.Resolve("literature_search__find_articles")
	if !ok {
		t.Fatalf("expected tool to resolve")
	}
	if prov.Name != "Literature Search" {
		t.Fatalf("unexpected provider %q", prov.Name)
	}
	if op.Name != "Find Articles" {
		t.Fatalf("unexpected operation %q", op.Name)
	}
}

func TestResolveProviderNameContainingSeparator(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Provider{
		Name: "graph__tools",
		Operations: []Operation{
			{Name: "add_nodes", Handler: noopHandler},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// naive splitting on the separator would resolve this wrong
	prov, op, ok := r.Resolve("graph__tools__add_nodes")
	if !ok {
		t.Fatalf("expected tool to resolve")
	}
	if prov.Name != "graph__tools" || op.Name != "add_nodes" {
		t.Fatalf("resolved to %q.%q", prov.Name, op.Name)
	}
}

func TestResolveUnknown(t *testing.T) {
	r := NewRegistry()
	if _, _, ok := r.Resolve("nope__never"); ok {
		t.Fatalf("expected unknown tool to not resolve")
	}
}

func TestRegisterDuplicateProvider(t *testing.T) {
	r := NewRegistry()
	p := Provider{Name: "dup", Operations: []Operation{{Name: "op", Handler: noopHandler}}}
	if err := r.Register(p); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(p); err == nil {
		t.Fatalf("expected duplicate provider registration to fail")
	}
}

func TestRegisterNameCollision(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Provider{
		Name:       "a",
		Operations: []Operation{{Name: "b__c", Handler: noopHandler}},
	}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register(Provider{
		Name:       "a__b",
		Operations: []Operation{{Name: "c", Handler: noopHandler}},
	})
	if err == nil {
		t.Fatalf("expected composed-name collision to fail")
	}
}

func TestSpecsOrderAndContent(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Provider{
		Name: "prov",
		Operations: []Operation{
			{Name: "first", Description: "one", Parameters: map[string]any{"type": "object"}, Handler: noopHandler},
			{Name: "second", Description: "two", Handler: noopHandler},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	specs := r.Specs()
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if specs[0].Name != "prov__first" || specs[1].Name != "prov__second" {
		t.Fatalf("unexpected spec order: %q, %q", specs[0].Name, specs[1].Name)
	}
	if specs[0].Description != "one" {
		t.Fatalf("unexpected description %q", specs[0].Description)
	}
	if specs[0].Parameters["type"] != "object" {
		t.Fatalf("parameters not carried through")
	}
}
