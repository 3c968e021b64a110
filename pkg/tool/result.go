package tool

import (
	"github.com/loomkg/loom/pkg/graph"
)

// Citation is a single bibliography entry. ID is the natural key (e.g. a
// publication identifier) used for deduplication across rounds.
type Citation struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Authors string `json:"authors,omitempty"`
	Journal string `json:"journal,omitempty"`
	Year    string `json:"year,omitempty"`
	URL     string `json:"url,omitempty"`
}

// BinaryOutput is an opaque binary payload produced by a tool, e.g. a
// rendered plot. Payloads are offloaded to object storage after the run.
type BinaryOutput struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Artifact is a displayable output of a run. Exactly one of the payload
// fields is typically set depending on Type.
type Artifact struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title,omitempty"`
	Content   string          `json:"content,omitempty"`
	Graph     *graph.Fragment `json:"graph,omitempty"`
	Citations []Citation      `json:"citations,omitempty"`
	MimeType  string          `json:"mime_type,omitempty"`
	Data      []byte          `json:"data,omitempty"`
	URL       string          `json:"url,omitempty"`
}

// Result is the normalized envelope a tool invocation produces. Text is
// always present (an error message on failure); the side-effect fields are
// optional and any subset may co-occur. A Result is never mutated after
// creation.
type Result struct {
	Text         string          `json:"text"`
	Graph        *graph.Fragment `json:"graph,omitempty"`
	Bibliography []Citation      `json:"bibliography,omitempty"`
	Binary       []BinaryOutput  `json:"binary,omitempty"`
	Artifacts    []Artifact      `json:"artifacts,omitempty"`

	// RefreshGraph signals that the caller's visual graph should reload.
	RefreshGraph bool `json:"refresh_graph,omitempty"`

	// Extra carries provider-specific fields that have no canonical slot.
	// It is validated nowhere beyond the dispatch boundary.
	Extra map[string]any `json:"extra,omitempty"`
}

// TextResult builds a text-only Result.
func TextResult(text string) *Result {
	return &Result{Text: text}
}
