package graph

// Node is a single vertex inside a Fragment. The ID is assigned by the
// producing tool provider and stays stable across merges; Group, Color and
// Val are presentation hints only.
type Node struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Group string  `json:"group,omitempty"`
	Color string  `json:"color,omitempty"`
	Val   float64 `json:"val,omitempty"`
}

// Link is a directed edge between two node IDs of the same fragment or a
// previously merged one.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Fragment is an unpersisted node/edge set returned by a tool provider,
// destined for merge into the aggregate graph of a run.
type Fragment struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

func linkKey(l Link) string {
	return l.Source + "\x00" + l.Target + "\x00" + l.Label
}

// Merge unions in into f. Nodes are deduplicated by ID with the first
// occurrence winning on conflicting attributes; links are deduplicated by
// (source, target, label). Merging the same fragment twice leaves f
// unchanged.
func (f *Fragment) Merge(in *Fragment) {
	if in == nil {
		return
	}

	seenNodes := make(map[string]struct{}, len(f.Nodes))
	for _, n := range f.Nodes {
		seenNodes[n.ID] = struct{}{}
	}
	for _, n := range in.Nodes {
		if n.ID == "" {
			continue
		}
		if _, ok := seenNodes[n.ID]; ok {
			continue
		}
		seenNodes[n.ID] = struct{}{}
		f.Nodes = append(f.Nodes, n)
	}

	seenLinks := make(map[string]struct{}, len(f.Links))
	for _, l := range f.Links {
		seenLinks[linkKey(l)] = struct{}{}
	}
	for _, l := range in.Links {
		if l.Source == "" || l.Target == "" {
			continue
		}
		key := linkKey(l)
		if _, ok := seenLinks[key]; ok {
			continue
		}
		seenLinks[key] = struct{}{}
		f.Links = append(f.Links, l)
	}
}

// Clone returns a deep copy of the fragment.
func (f *Fragment) Clone() *Fragment {
	if f == nil {
		return nil
	}
	out := &Fragment{
		Nodes: make([]Node, len(f.Nodes)),
		Links: make([]Link, len(f.Links)),
	}
	copy(out.Nodes, f.Nodes)
	copy(out.Links, f.Links)
	return out
}
