package vectorstore

import (
	"context"
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical=%v want 1", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Fatalf("orthogonal=%v want 0", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Fatalf("mismatched dims=%v want 0", got)
	}
}

func TestMemoryQueryRanksAndFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	err := s.Add(ctx, ShortTermCollection, []Document{
		{ID: "a", Embedding: []float32{1, 0}, Metadata: map[string]any{"symbol": "XYZ"}},
		{ID: "b", Embedding: []float32{0.9, 0.1}, Metadata: map[string]any{"symbol": "ABC"}},
		{ID: "c", Embedding: []float32{0, 1}, Metadata: map[string]any{"symbol": "XYZ"}},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	got, _ := s.Query(ctx, ShortTermCollection, []float32{1, 0}, 2, nil)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("top2=%v", got)
	}
	got, _ = s.Query(ctx, ShortTermCollection, []float32{1, 0}, 5, map[string]any{"symbol": "XYZ"})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("filtered=%v", got)
	}
}

func TestMoveBetweenCollections(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.Add(ctx, ShortTermCollection, []Document{{ID: "m1", Embedding: []float32{1}}})
	if err := Move(ctx, s, ShortTermCollection, LongTermCollection, []string{"m1"}); err != nil {
		t.Fatalf("move: %v", err)
	}
	if n, _ := s.Count(ctx, ShortTermCollection); n != 0 {
		t.Fatalf("short count=%d want 0", n)
	}
	if n, _ := s.Count(ctx, LongTermCollection); n != 1 {
		t.Fatalf("long count=%d want 1", n)
	}
	if err := Move(ctx, s, ShortTermCollection, LongTermCollection, []string{"missing"}); err == nil {
		t.Fatalf("moving a missing id must fail")
	}
}
