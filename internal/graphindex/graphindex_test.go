package graphindex_test

import (
	"path/filepath"
	"testing"

	"github.com/catunlock/vecstore/internal/graphindex"
)

func vectors() [][]float32 {
	return [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{0.9, 0.1, 0},
	}
}

func Test_Search_Returns_Nearest_Neighbor_By_Iid(t *testing.T) {
	t.Parallel()

	idx, err := graphindex.Build(3, graphindex.BuildConfig{NumNeighbors: 8, MaxSearch: 16}, vectors())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	t.Cleanup(idx.Close)

	if idx.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", idx.Len())
	}

	hits, err := idx.Search([]float32{1, 0, 0}, 1, 16)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(hits) != 1 {
		t.Fatalf("len(hits) = %d, want 1", len(hits))
	}

	if hits[0].IID != 0 {
		t.Fatalf("hits[0].IID = %d, want 0", hits[0].IID)
	}
}

// Test_Search_Reports_Angular_Distance_Zero_For_Exact_Match asserts the
// spec.md §8 scenario 1 score directly at the graphindex level: querying
// with a vector already present in the index must score ~0 (1-cosθ with
// θ=0), not faiss's raw inner product (which would be 1 for unit vectors).
func Test_Search_Reports_Angular_Distance_Zero_For_Exact_Match(t *testing.T) {
	t.Parallel()

	idx, err := graphindex.Build(3, graphindex.BuildConfig{NumNeighbors: 8, MaxSearch: 16}, vectors())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	t.Cleanup(idx.Close)

	hits, err := idx.Search([]float32{1, 0, 0}, 1, 16)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(hits) != 1 {
		t.Fatalf("len(hits) = %d, want 1", len(hits))
	}

	const epsilon = 1e-4
	if score := hits[0].Score; score < -epsilon || score > epsilon {
		t.Fatalf("hits[0].Score = %v, want ~0 for an exact directional match", score)
	}
}

// Test_Search_Normalizes_Non_Unit_Vectors_Before_Ranking asserts that
// ranking under MetricInnerProduct is by angle, not by raw magnitude: a
// short vector pointing exactly at the query must still beat a longer
// vector pointing slightly off-axis.
func Test_Search_Normalizes_Non_Unit_Vectors_Before_Ranking(t *testing.T) {
	t.Parallel()

	idx, err := graphindex.Build(3, graphindex.BuildConfig{NumNeighbors: 8, MaxSearch: 16}, [][]float32{
		{0.01, 0, 0}, // tiny, but exactly on-axis
		{10, 1, 0},   // large magnitude, slightly off-axis
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	t.Cleanup(idx.Close)

	hits, err := idx.Search([]float32{1, 0, 0}, 2, 16)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}

	if hits[0].IID != 0 {
		t.Fatalf("hits[0].IID = %d, want 0 (the on-axis vector, regardless of magnitude)", hits[0].IID)
	}

	if hits[0].Score >= hits[1].Score {
		t.Fatalf("hits[0].Score = %v should be strictly less than hits[1].Score = %v", hits[0].Score, hits[1].Score)
	}
}

func Test_Search_Fails_When_Query_Has_Wrong_Dims(t *testing.T) {
	t.Parallel()

	idx, err := graphindex.Build(3, graphindex.BuildConfig{NumNeighbors: 8}, vectors())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	t.Cleanup(idx.Close)

	if _, err := idx.Search([]float32{1, 0}, 1, 0); err == nil {
		t.Fatalf("expected error for mismatched query dims")
	}
}

func Test_WriteIndex_Then_ReadIndex_Preserves_Search_Results(t *testing.T) {
	t.Parallel()

	idx, err := graphindex.Build(3, graphindex.BuildConfig{NumNeighbors: 8, MaxSearch: 16}, vectors())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	path := filepath.Join(t.TempDir(), "graph.index")
	if err := idx.WriteIndex(path); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}

	idx.Close()

	reloaded, err := graphindex.ReadIndex(path, 3, graphindex.MetricInnerProduct)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}

	t.Cleanup(reloaded.Close)

	hits, err := reloaded.Search([]float32{0, 0, 1}, 1, 16)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(hits) != 1 || hits[0].IID != 2 {
		t.Fatalf("hits = %+v, want single hit with IID 2", hits)
	}
}

func Test_Build_Fails_When_Vector_Has_Wrong_Dims(t *testing.T) {
	t.Parallel()

	_, err := graphindex.Build(3, graphindex.BuildConfig{NumNeighbors: 8}, [][]float32{{1, 2}})
	if err == nil {
		t.Fatalf("expected error for mismatched vector dims")
	}
}
