package payload_test

import (
	"path/filepath"
	"testing"

	"github.com/catunlock/vecstore/internal/payload"
)

func Test_Reader_Reads_Back_Vectors_Written_By_Writer(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "payload.dat")

	w, err := payload.CreateWriter(path, 3)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}

	vectors := [][]float32{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	}

	for i, v := range vectors {
		iid, err := w.Append(v)
		if err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}

		if iid != uint64(i) {
			t.Fatalf("Append(%d) iid = %d, want %d", i, iid, i)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := payload.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() { _ = r.Close() })

	if r.Dims() != 3 {
		t.Fatalf("Dims() = %d, want 3", r.Dims())
	}

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}

	for i, want := range vectors {
		got, err := r.At(uint64(i))
		if err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}

		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("At(%d)[%d] = %v, want %v", i, j, got[j], want[j])
			}
		}
	}
}

func Test_At_Fails_When_Iid_Out_Of_Range(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "payload.dat")

	w, err := payload.CreateWriter(path, 2)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}

	if _, err := w.Append([]float32{1, 2}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := payload.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() { _ = r.Close() })

	if _, err := r.At(5); err == nil {
		t.Fatalf("expected error for out-of-range iid")
	}
}

func Test_Append_Fails_When_Vector_Has_Wrong_Dims(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "payload.dat")

	w, err := payload.CreateWriter(path, 4)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}

	t.Cleanup(func() { _ = w.Close() })

	if _, err := w.Append([]float32{1, 2}); err == nil {
		t.Fatalf("expected error for mismatched dims")
	}
}
