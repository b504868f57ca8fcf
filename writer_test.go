package vecstore_test

import (
	"errors"
	"os"
	"testing"

	"github.com/catunlock/vecstore"
)

func Test_OpenWriter_Fails_With_WriterBusy_When_Already_Held(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	a, err := vecstore.OpenWriter(dir, 3)
	if err != nil {
		t.Fatalf("OpenWriter A: %v", err)
	}

	t.Cleanup(func() { _ = a.Close() })

	_, err = vecstore.OpenWriter(dir, 3)
	if !errors.Is(err, vecstore.ErrWriterBusy) {
		t.Fatalf("OpenWriter B err = %v, want ErrWriterBusy", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close A: %v", err)
	}

	c, err := vecstore.OpenWriter(dir, 3)
	if err != nil {
		t.Fatalf("OpenWriter C: %v", err)
	}

	t.Cleanup(func() { _ = c.Close() })
}

func Test_Push_Assigns_Dense_Contiguous_Iids(t *testing.T) {
	t.Parallel()

	w, err := vecstore.OpenWriter(t.TempDir(), 3)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}

	t.Cleanup(func() { _ = w.Close() })

	for i := range 5 {
		xid := []byte{byte(i)}

		if err := w.Push(xid, []float32{1, 2, 3}); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}

	if w.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", w.Len())
	}
}

func Test_Push_Fails_When_Vector_Has_Wrong_Dims(t *testing.T) {
	t.Parallel()

	w, err := vecstore.OpenWriter(t.TempDir(), 3)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}

	t.Cleanup(func() { _ = w.Close() })

	if err := w.Push([]byte("x"), []float32{1, 2}); err == nil {
		t.Fatalf("expected error for mismatched dims")
	}

	if w.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after failed push", w.Len())
	}
}

func Test_Delete_Is_NoOp_When_Xid_Never_Pushed(t *testing.T) {
	t.Parallel()

	w, err := vecstore.OpenWriter(t.TempDir(), 3)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}

	t.Cleanup(func() { _ = w.Close() })

	if err := w.Delete([]byte("nope")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func Test_Commit_Writes_Payload_And_Index_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := vecstore.OpenWriter(dir, 3)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}

	t.Cleanup(func() { _ = w.Close() })

	if err := w.Push([]byte{1}, []float32{1, 0, 0}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	loc := vecstore.NewLocation(dir)

	if _, err := os.Stat(loc.Elements()); err != nil {
		t.Fatalf("elements.dat missing after commit: %v", err)
	}

	if _, err := os.Stat(loc.Index()); err != nil {
		t.Fatalf("index.dat missing after commit: %v", err)
	}

	if _, err := os.Stat(loc.DirtyBit()); err != nil {
		t.Fatalf("DIRTY_BIT missing after commit: %v", err)
	}
}

func Test_PushBatch_Yields_Same_Len_As_Singles(t *testing.T) {
	t.Parallel()

	const n = 37

	dirSingles := t.TempDir()
	dirBatch := t.TempDir()

	wSingles, err := vecstore.OpenWriter(dirSingles, 3)
	if err != nil {
		t.Fatalf("OpenWriter singles: %v", err)
	}

	t.Cleanup(func() { _ = wSingles.Close() })

	wBatch, err := vecstore.OpenWriter(dirBatch, 3)
	if err != nil {
		t.Fatalf("OpenWriter batch: %v", err)
	}

	t.Cleanup(func() { _ = wBatch.Close() })

	xids := make([][]byte, n)
	vectors := make([][]float32, n)

	for i := range n {
		xids[i] = []byte{byte(i)}
		vectors[i] = []float32{float32(i), float32(i) + 1, float32(i) + 2}

		if err := wSingles.Push(xids[i], vectors[i]); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}

	if err := wBatch.PushBatch(xids, vectors); err != nil {
		t.Fatalf("PushBatch: %v", err)
	}

	if wSingles.Len() != wBatch.Len() {
		t.Fatalf("Len mismatch: singles=%d batch=%d", wSingles.Len(), wBatch.Len())
	}
}
