package store

import (
	"errors"
	"testing"
)

func TestEdgeIDDeterministic(t *testing.T) {
	a := EdgeID("c1", "string-db", "experiment", "g1", "interacts", "g2")
	b := EdgeID("c1", "string-db", "experiment", "g1", "interacts", "g2")
	if a != b {
		t.Fatalf("same identity must yield same id: %q vs %q", a, b)
	}

	// every field participates in the identity
	variants := []string{
		EdgeID("c2", "string-db", "experiment", "g1", "interacts", "g2"),
		EdgeID("c1", "biogrid", "experiment", "g1", "interacts", "g2"),
		EdgeID("c1", "string-db", "prediction", "g1", "interacts", "g2"),
		EdgeID("c1", "string-db", "experiment", "g3", "interacts", "g2"),
		EdgeID("c1", "string-db", "experiment", "g1", "inhibits", "g2"),
		EdgeID("c1", "string-db", "experiment", "g1", "interacts", "g3"),
	}
	for i, v := range variants {
		if v == a {
			t.Fatalf("variant %d collided with the base id", i)
		}
	}
}

func TestEdgeIDNoFieldConcatenationAmbiguity(t *testing.T) {
	a := EdgeID("c1", "ab", "c", "n1", "l", "n2")
	b := EdgeID("c1", "a", "bc", "n1", "l", "n2")
	if a == b {
		t.Fatalf("shifted field boundaries must not collide")
	}
}

func TestChunkRange(t *testing.T) {
	var windows [][2]int
	err := ChunkRange(10, 4, func(start, end int) error {
		windows = append(windows, [2]int{start, end})
		return nil
	})
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	want := [][2]int{{0, 4}, {4, 8}, {8, 10}}
	if len(windows) != len(want) {
		t.Fatalf("expected %d windows, got %d", len(want), len(windows))
	}
	for i := range want {
		if windows[i] != want[i] {
			t.Fatalf("window %d = %v, want %v", i, windows[i], want[i])
		}
	}
}

func TestChunkRangeStopsOnError(t *testing.T) {
	calls := 0
	wantErr := errors.New("boom")
	err := ChunkRange(10, 2, func(start, end int) error {
		calls++
		if calls == 2 {
			return wantErr
		}
		return nil
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the callback error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestChunkRangeEmpty(t *testing.T) {
	if err := ChunkRange(0, 5, func(start, end int) error {
		t.Fatalf("callback must not run for empty input")
		return nil
	}); err != nil {
		t.Fatalf("chunk: %v", err)
	}
}

func TestDedupeStrings(t *testing.T) {
	got := DedupeStrings([]string{"a", "", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if DedupeStrings(nil) != nil {
		t.Fatalf("nil input must return nil")
	}
}
