package vecstore_test

import (
	"errors"
	"os"
	"testing"

	"github.com/catunlock/vecstore"
	"github.com/catunlock/vecstore/pkg/fs"
)

// secondReplaceFails wraps fs.Chaos so that Writer.Commit's two
// ReplaceFile renames (elements.dat, then index.dat, per swapIntoPlace)
// get different fault-injection behavior: the first passes through by
// forcing ChaosModeNoOp, the second runs in ChaosModeActive against a
// RenameFailRate of 1.0, which chaos.should deterministically fails.
// This simulates spec.md §8 P6: a failure between the two commit
// renames, after the payload rename already succeeded.
type secondReplaceFails struct {
	*fs.Chaos
	calls int
}

func (f *secondReplaceFails) ReplaceFile(src, dst string) error {
	f.calls++

	if f.calls == 1 {
		f.SetMode(fs.ChaosModeNoOp)
		err := f.Chaos.ReplaceFile(src, dst)
		f.SetMode(fs.ChaosModeActive)

		return err
	}

	return f.Chaos.ReplaceFile(src, dst)
}

func Test_Commit_Returns_CommitTorn_When_Second_Rename_Fails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	loc := vecstore.NewLocation(dir)

	chaos := fs.NewChaos(fs.NewReal(), 1, &fs.ChaosConfig{RenameFailRate: 1.0})
	faulty := &secondReplaceFails{Chaos: chaos}

	w, err := vecstore.OpenWriter(dir, 3, vecstore.WithFS(faulty))
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}

	t.Cleanup(func() { _ = w.Close() })

	if err := w.Push([]byte{1}, []float32{1, 0, 0}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	err = w.Commit()
	if !errors.Is(err, vecstore.ErrCommitTorn) {
		t.Fatalf("Commit err = %v, want ErrCommitTorn", err)
	}

	if faulty.calls != 2 {
		t.Fatalf("expected exactly 2 ReplaceFile calls (payload ok, index failed), got %d", faulty.calls)
	}

	if _, err := os.Stat(loc.Elements()); err != nil {
		t.Fatalf("elements.dat should exist after a torn commit (first rename succeeded): %v", err)
	}

	if _, err := os.Stat(loc.Index()); !os.IsNotExist(err) {
		t.Fatalf("index.dat should not have been written on a torn commit, stat err = %v", err)
	}

	if got, want := chaos.Stats().RenameFails, int64(1); got != want {
		t.Fatalf("RenameFails=%d, want %d", got, want)
	}
}
