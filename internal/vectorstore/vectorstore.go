package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
)

const (
	ShortTermCollection = "short_term_memory"
	LongTermCollection  = "long_term_memory"
)

type Document struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

type Match struct {
	Document
	Score float64
}

type Store interface {
	Add(ctx context.Context, collection string, docs []Document) error
	// Query returns up to k documents ordered by cosine similarity. Filter entries must equal the document metadata.
	Query(ctx context.Context, collection string, embedding []float32, k int, filter map[string]any) ([]Match, error)
	Get(ctx context.Context, collection string, ids []string) ([]Document, error)
	Delete(ctx context.Context, collection string, ids []string) error
	Count(ctx context.Context, collection string) (int64, error)
}

// Move copies ids from one collection to another and then removes them from the source.
func Move(ctx context.Context, s Store, from, to string, ids []string) error {
	docs, err := s.Get(ctx, from, ids)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("vectorstore: %v not found in %s", ids, from)
	}
	if err := s.Add(ctx, to, docs); err != nil {
		return err
	}
	return s.Delete(ctx, from, ids)
}

func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func matches(meta, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := meta[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func rank(docs []Document, embedding []float32, k int, filter map[string]any) []Match {
	out := make([]Match, 0, len(docs))
	for _, d := range docs {
		if !matches(d.Metadata, filter) {
			continue
		}
		out = append(out, Match{Document: d, Score: Cosine(d.Embedding, embedding)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
