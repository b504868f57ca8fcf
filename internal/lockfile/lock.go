// Package lockfile implements the cooperative, file-existence lock described
// in spec.md §4.2: the lock is realized purely by whether a file exists at a
// fixed path, not by flock(2) or any other kernel-level primitive. That
// makes it advisory (nothing stops another process from ignoring it) and
// crash-durable (the file outlives the process that created it, so a killed
// writer leaves a lock an operator must remove by hand).
//
// This is deliberately not the teacher's flock-based internal/fs/lock.go:
// that lock protects an inode against concurrent kernel-level access. Ours
// protects a path against concurrent logical ownership, which is what
// WRITER_LOCK and COMMIT_LOCK need.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/catunlock/vecstore/pkg/fs"
)

// ErrAlreadyHeld is returned by TryLock when the lock file already exists.
var ErrAlreadyHeld = errors.New("lockfile: already held")

const filePerm = 0o644

// Lock is a handle to a cooperative lock at a fixed path.
//
// The zero value is not usable; construct with [New].
type Lock struct {
	fsys fs.FS
	path string
}

// New returns a lock bound to path. It does not touch the filesystem.
func New(fsys fs.FS, path string) *Lock {
	return &Lock{fsys: fsys, path: path}
}

// TryLock acquires the lock without waiting.
//
// Returns [ErrAlreadyHeld] if a file already exists at the lock path.
// The parent directory must already exist (callers create the store
// directory before constructing any lock - see spec.md §4.5 step 1).
func (l *Lock) TryLock() error {
	f, err := l.fsys.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		if os.IsExist(err) {
			return ErrAlreadyHeld
		}

		return fmt.Errorf("lockfile: create %q: %w", l.path, err)
	}

	return f.Close()
}

// Lock blocks, polling with exponential backoff, until the lock can be
// acquired. Used to serialize Writer.Commit against Reader reloads through
// COMMIT_LOCK, where failing fast on contention is not an option - the
// loser must wait its turn, not give up.
func (l *Lock) Lock() error {
	backoff := time.Millisecond

	for {
		err := l.TryLock()
		if err == nil {
			return nil
		}

		if !errors.Is(err, ErrAlreadyHeld) {
			return err
		}

		time.Sleep(backoff)

		if backoff < 25*time.Millisecond {
			backoff *= 2
			if backoff > 25*time.Millisecond {
				backoff = 25 * time.Millisecond
			}
		}
	}
}

// IsHeld reports whether the lock is currently held.
func (l *Lock) IsHeld() (bool, error) {
	return l.fsys.Exists(l.path)
}

// Unlock releases the lock. Best effort: it is not an error for the lock
// file to already be gone.
func (l *Lock) Unlock() error {
	err := l.fsys.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lockfile: remove %q: %w", l.path, err)
	}

	return nil
}

// EnsureParentExists fails fast if the lock's parent directory is missing,
// mirroring the original implementation's Lock::open precondition (see
// original_source/src/vectors/lock.rs) rather than silently creating it.
func (l *Lock) EnsureParentExists() error {
	dir := filepath.Dir(l.path)

	ok, err := l.fsys.Exists(dir)
	if err != nil {
		return fmt.Errorf("lockfile: stat parent %q: %w", dir, err)
	}

	if !ok {
		return fmt.Errorf("lockfile: parent directory %q does not exist", dir)
	}

	return nil
}
