package hnsw

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/alexvdb/alexvdb/internal/util"
)

func buildReorderTestIndex(t *testing.T, n, dim int) *Index {
	t.Helper()
	config := &Config{
		Dimension:      dim,
		M:              8,
		EfConstruction: 64,
		EfSearch:       32,
		ML:             1.0 / math.Log(2.0),
		Metric:         util.L2Distance,
		RandomSeed:     7,
	}

	index, err := NewHNSW(config)
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < n; i++ {
		vec := make([]float32, dim)
		for d := range vec {
			vec[d] = rng.Float32()
		}
		entry := &VectorEntry{ID: fmt.Sprintf("v%d", i), Vector: vec}
		if err := index.Insert(context.Background(), entry); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	return index
}

func TestOptimizeCacheLocalityPreservesResults(t *testing.T) {
	ctx := context.Background()
	index := buildReorderTestIndex(t, 200, 16)
	defer index.Close()

	query := make([]float32, 16)
	for i := range query {
		query[i] = float32(i) / 16
	}

	before, err := index.Search(ctx, query, 10)
	if err != nil {
		t.Fatalf("search before reorder: %v", err)
	}
	beforeIDs := make(map[string]bool, len(before))
	for _, r := range before {
		beforeIDs[r.ID] = true
	}

	moved, err := index.OptimizeCacheLocality(ctx)
	if err != nil {
		t.Fatalf("OptimizeCacheLocality: %v", err)
	}
	if moved < 0 {
		t.Fatalf("expected non-negative moved count, got %d", moved)
	}

	after, err := index.Search(ctx, query, 10)
	if err != nil {
		t.Fatalf("search after reorder: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("expected %d results after reorder, got %d", len(before), len(after))
	}
	for _, r := range after {
		if !beforeIDs[r.ID] {
			t.Fatalf("id %s present after reorder but not before", r.ID)
		}
	}
}

func TestOptimizeCacheLocalityEmptyIndex(t *testing.T) {
	config := &Config{
		Dimension:      8,
		M:              8,
		EfConstruction: 32,
		EfSearch:       16,
		ML:             1.0 / math.Log(2.0),
		Metric:         util.L2Distance,
	}
	index, err := NewHNSW(config)
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	defer index.Close()

	moved, err := index.OptimizeCacheLocality(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on empty index: %v", err)
	}
	if moved != 0 {
		t.Fatalf("expected 0 moved on empty index, got %d", moved)
	}
}
