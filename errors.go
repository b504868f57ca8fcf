package vecstore

import "errors"

// Error taxonomy per spec.md §7. Every write-path and read-path failure
// wraps one of these sentinels so callers can branch with errors.Is.
var (
	// ErrWriterBusy is returned by OpenWriter when another writer already holds
	// WRITER_LOCK on the same store directory.
	ErrWriterBusy = errors.New("vecstore: writer busy")

	// ErrIoError wraps filesystem, mapping, or rename failures.
	ErrIoError = errors.New("vecstore: io error")

	// ErrIdMapError wraps id-map store transaction failures.
	ErrIdMapError = errors.New("vecstore: id-map error")

	// ErrTombstoneError wraps tombstone store transaction failures.
	ErrTombstoneError = errors.New("vecstore: tombstone error")

	// ErrCommitTorn is returned when the second of the two commit renames
	// failed after the first succeeded. The store must be treated as
	// corrupted and requires manual recovery - re-running commit after
	// restoring a consistent pair of files is the documented remedy.
	ErrCommitTorn = errors.New("vecstore: commit torn, store inconsistent")

	// ErrNotFound is a non-fatal id-map lookup miss.
	ErrNotFound = errors.New("vecstore: not found")
)
