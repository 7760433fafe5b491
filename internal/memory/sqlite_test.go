package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kalambet/juskvi/internal/storage"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteIndex(db.SQL())
}

func makeTestVector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)*0.001
	}
	return v
}

func TestUpsertAndQuery(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	vec := makeTestVector(768, 0.1)
	err := idx.Upsert(ctx, []Vector{{
		ID:        "r1",
		Values:    vec,
		Text:      "Ship it, with a rollback plan.",
		CreatedAt: time.Now().UTC(),
	}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := idx.Query(ctx, vec, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Score < 0.99 {
		t.Errorf("score = %f, want > 0.99", matches[0].Score)
	}
	if matches[0].ID != "r1" || matches[0].Text != "Ship it, with a rollback plan." {
		t.Errorf("match = %+v", matches[0])
	}
}

func TestQuery_TopKBestFirst(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	query := []float32{1, 0, 0}
	records := []Vector{
		{ID: "far", Values: []float32{0, 1, 0}, Text: "far"},
		{ID: "near", Values: []float32{1, 0.1, 0}, Text: "near"},
		{ID: "exact", Values: []float32{1, 0, 0}, Text: "exact"},
		{ID: "mid", Values: []float32{1, 1, 0}, Text: "mid"},
	}
	if err := idx.Upsert(ctx, records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := idx.Query(ctx, query, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].ID != "exact" || matches[1].ID != "near" {
		t.Errorf("order = [%s %s], want [exact near]", matches[0].ID, matches[1].ID)
	}
	if matches[1].Text != "near" {
		t.Errorf("text not fetched for winner: %+v", matches[1])
	}
}

func TestQuery_EmptyTable(t *testing.T) {
	idx := openTestIndex(t)

	matches, err := idx.Query(context.Background(), makeTestVector(8, 0.1), 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches, want 0", len(matches))
	}
}

func TestQuery_TopKZero(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	if err := idx.Upsert(ctx, []Vector{{ID: "a", Values: []float32{1, 0}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := idx.Query(ctx, []float32{1, 0}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if matches != nil {
		t.Errorf("got %v, want nil", matches)
	}
}

func TestQuery_DimensionMismatchScoresZero(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	if err := idx.Upsert(ctx, []Vector{{ID: "a", Values: []float32{1, 0, 0}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := idx.Query(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].Score != 0 {
		t.Errorf("matches = %+v, want one zero-score match", matches)
	}
}

func TestUpsert_ReplacesByID(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.Upsert(ctx, []Vector{{ID: "a", Values: []float32{1, 0}, Text: "old"}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := idx.Upsert(ctx, []Vector{{ID: "a", Values: []float32{1, 0}, Text: "new"}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	count, err := idx.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	matches, err := idx.Query(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if matches[0].Text != "new" {
		t.Errorf("text = %q, want %q", matches[0].Text, "new")
	}
}

func TestFloat32RoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.125}
	out, err := decodeFloat32sInto(nil, encodeFloat32s(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}

	if _, err := decodeFloat32sInto(nil, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated blob")
	}
}
