// Package tombstone implements the persistent set of deleted internal
// vector ids described in spec.md §4.3, backed by bbolt - the pack's
// embedded ordered key-value store (grounded in
// _examples/cuemby-warren/pkg/storage/boltdb.go).
package tombstone

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"go.etcd.io/bbolt"
)

// ErrTombstone wraps any I/O or transaction failure from the store.
// Callers should use errors.Is(err, ErrTombstone).
var ErrTombstone = fmt.Errorf("tombstone store error")

var bucketName = []byte("tombstones")

// present is the placeholder value written for every tombstoned id; its
// content is never inspected, only its key's existence is.
var present = []byte{1}

// Store is a persistent set of internal vector ids (iids) considered
// deleted.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a tombstone store rooted at dir.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "tombstone.db")

	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %w", ErrTombstone, dbPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)

		return err
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("%w: create bucket: %w", ErrTombstone, err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeIID(iid uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, iid)

	return buf
}

// AddBatch inserts all of iids into the set in a single transaction.
// Idempotent: re-adding an already-tombstoned id is a no-op.
//
// On failure, the set is left unchanged - the whole batch is one bbolt
// write transaction, so a failure midway rolls back everything.
func (s *Store) AddBatch(iids []uint64) error {
	if len(iids) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, iid := range iids {
			if err := b.Put(encodeIID(iid), present); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: add batch: %w", ErrTombstone, err)
	}

	return nil
}

// Filter returns the subset of iids that are NOT tombstoned, preserving
// input order. Runs under a single read transaction.
func (s *Store) Filter(iids []uint64) ([]uint64, error) {
	if len(iids) == 0 {
		return nil, nil
	}

	kept := make([]uint64, 0, len(iids))

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, iid := range iids {
			if b.Get(encodeIID(iid)) == nil {
				kept = append(kept, iid)
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: filter: %w", ErrTombstone, err)
	}

	return kept, nil
}

// Contains reports whether iid is tombstoned.
func (s *Store) Contains(iid uint64) (bool, error) {
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketName).Get(encodeIID(iid)) != nil

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: contains: %w", ErrTombstone, err)
	}

	return found, nil
}
