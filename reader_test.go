package vecstore_test

import (
	"testing"

	"github.com/catunlock/vecstore"
)

func Test_Search_Returns_Exact_Match_First_On_Basic_Recall(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := vecstore.OpenWriter(dir, 3)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}

	push(t, w, 1, []float32{1, 0, 0})
	push(t, w, 2, []float32{0, 1, 0})
	push(t, w, 3, []float32{0, 0, 1})

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	r, err := vecstore.OpenReader(dir)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}

	t.Cleanup(func() { _ = r.Close() })

	hits, err := r.Search([]float32{1, 0, 0})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(hits) == 0 {
		t.Fatalf("Search returned no hits")
	}

	if string(hits[0].Xid) != string(xidBytes(1)) {
		t.Fatalf("hits[0].Xid = %q, want %q", hits[0].Xid, xidBytes(1))
	}

	// spec.md §8 scenario 1: an exact directional match scores angular
	// distance ~0, not a raw inner product of 1.
	const epsilon = 1e-4
	if score := hits[0].Score; score < -epsilon || score > epsilon {
		t.Fatalf("hits[0].Score = %v, want ~0 for an exact match", score)
	}
}

func Test_Search_Returns_All_Hits_For_Duplicate_Xid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := vecstore.OpenWriter(dir, 3)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}

	push(t, w, 7, []float32{1, 1, 1})
	push(t, w, 7, []float32{2, 2, 2})
	push(t, w, 7, []float32{3, 3, 3})

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	r, err := vecstore.OpenReader(dir)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}

	t.Cleanup(func() { _ = r.Close() })

	hits, err := r.SearchWithConfig([]float32{1, 1, 1}, vecstore.QueryConfig{NumNeighbors: 10, MaxSearch: 50})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(hits) != 3 {
		t.Fatalf("len(hits) = %d, want 3", len(hits))
	}

	for _, h := range hits {
		if string(h.Xid) != string(xidBytes(7)) {
			t.Fatalf("hit xid = %q, want %q", h.Xid, xidBytes(7))
		}
	}
}

func Test_Search_Returns_Empty_After_Delete_And_Commit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := vecstore.OpenWriter(dir, 3)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}

	push(t, w, 7, []float32{1, 1, 1})
	push(t, w, 7, []float32{2, 2, 2})
	push(t, w, 7, []float32{3, 3, 3})

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := w.Delete(xidBytes(7)); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit after delete: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	r, err := vecstore.OpenReader(dir)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}

	t.Cleanup(func() { _ = r.Close() })

	hits, err := r.Search([]float32{1, 1, 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(hits) != 0 {
		t.Fatalf("len(hits) = %d, want 0 after delete", len(hits))
	}
}

func Test_Search_Reloads_On_Dirty_Bit_Without_Reopening_Reader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := vecstore.OpenWriter(dir, 3)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}

	t.Cleanup(func() { _ = w.Close() })

	push(t, w, 1, []float32{1, 0, 0})

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, err := vecstore.OpenReader(dir)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}

	t.Cleanup(func() { _ = r.Close() })

	push(t, w, 42, []float32{9, 9, 9})

	if err := w.Commit(); err != nil {
		t.Fatalf("second Commit: %v", err)
	}

	hits, err := r.Search([]float32{9, 9, 9})
	if err != nil {
		t.Fatalf("Search after reload: %v", err)
	}

	if len(hits) == 0 || string(hits[0].Xid) != string(xidBytes(42)) {
		t.Fatalf("hits = %+v, want first xid 42", hits)
	}

	if r.Generation() == 0 {
		t.Fatalf("Generation() = 0, want > 0 after a dirty-triggered reload")
	}
}

func push(t *testing.T, w *vecstore.Writer, xid uint8, v []float32) {
	t.Helper()

	if err := w.Push(xidBytes(xid), v); err != nil {
		t.Fatalf("Push(%d): %v", xid, err)
	}
}

func xidBytes(xid uint8) []byte {
	return []byte{xid}
}
