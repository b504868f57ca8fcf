package tombstone_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/catunlock/vecstore/internal/tombstone"
)

func openStore(t *testing.T) *tombstone.Store {
	t.Helper()

	s, err := tombstone.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func Test_Filter_Removes_Tombstoned_Ids_While_Preserving_Order(t *testing.T) {
	t.Parallel()

	s := openStore(t)

	if err := s.AddBatch([]uint64{2, 4}); err != nil {
		t.Fatalf("AddBatch: %v", err)
	}

	got, err := s.Filter([]uint64{5, 4, 3, 2, 1})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}

	want := []uint64{5, 3, 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Filter mismatch (-want +got):\n%s", diff)
	}
}

func Test_AddBatch_Is_Idempotent_When_Called_Twice(t *testing.T) {
	t.Parallel()

	s := openStore(t)

	if err := s.AddBatch([]uint64{7}); err != nil {
		t.Fatalf("AddBatch: %v", err)
	}

	if err := s.AddBatch([]uint64{7}); err != nil {
		t.Fatalf("AddBatch (again): %v", err)
	}

	got, err := s.Contains(7)
	if err != nil || !got {
		t.Fatalf("Contains = %v, %v, want true, nil", got, err)
	}
}

func Test_AddBatch_Is_NoOp_When_Empty(t *testing.T) {
	t.Parallel()

	s := openStore(t)

	if err := s.AddBatch(nil); err != nil {
		t.Fatalf("AddBatch(nil): %v", err)
	}
}

func Test_Filter_Returns_All_When_Nothing_Tombstoned(t *testing.T) {
	t.Parallel()

	s := openStore(t)

	got, err := s.Filter([]uint64{1, 2, 3})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}

	if diff := cmp.Diff([]uint64{1, 2, 3}, got); diff != "" {
		t.Fatalf("Filter mismatch (-want +got):\n%s", diff)
	}
}
