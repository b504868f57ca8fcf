// Package idmap implements the bidirectional id-map store described in
// spec.md §4.4: a forward mapping from external id (xid) to the multiset of
// internal ids (iids) it has ever been pushed under, and an inverse
// single-valued mapping from iid back to its xid.
//
// Both directions are bbolt databases (see internal/tombstone for the same
// choice of embedded KV store), kept in separate directories per spec.md §6
// so their very different duplicate-key semantics never get confused:
//
//   - fwd allows many iids per xid. bbolt has no native DUPSORT the way
//     lmdb does (the original implementation's choice, see
//     original_source/src/vectors/index_map.rs), so each xid key owns a
//     nested bucket whose own keys are the iids. bbolt iterates a bucket's
//     keys in sorted order; because iids are assigned in strictly
//     increasing order (spec.md §3 I5), sorted order and insertion order
//     coincide for this use, matching spec.md §4.4's "all its iids in
//     insertion order" contract.
//   - inv is a flat, single-valued bucket: iid -> xid.
package idmap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"

	"go.etcd.io/bbolt"
)

// ErrIdMap wraps any I/O or transaction failure from the store.
var ErrIdMap = fmt.Errorf("idmap store error")

// ErrNotFound is returned by GetXID when no entry exists for the iid.
var ErrNotFound = errors.New("idmap: not found")

var (
	fwdBucket = []byte("fwd")
	invBucket = []byte("inv")
)

func encodeIID(iid uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, iid)

	return buf
}

func decodeIID(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// Store is the bidirectional xid <-> iid mapping.
type Store struct {
	fwd *bbolt.DB
	inv *bbolt.DB
}

// Open opens (creating if necessary) the forward store at fwdDir and the
// inverse store at invDir.
func Open(fwdDir, invDir string) (*Store, error) {
	fwd, err := bbolt.Open(filepath.Join(fwdDir, "fwd.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open forward db: %w", ErrIdMap, err)
	}

	err = fwd.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(fwdBucket)

		return err
	})
	if err != nil {
		_ = fwd.Close()

		return nil, fmt.Errorf("%w: create forward bucket: %w", ErrIdMap, err)
	}

	inv, err := bbolt.Open(filepath.Join(invDir, "inv.db"), 0o600, nil)
	if err != nil {
		_ = fwd.Close()

		return nil, fmt.Errorf("%w: open inverse db: %w", ErrIdMap, err)
	}

	err = inv.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(invBucket)

		return err
	})
	if err != nil {
		_ = fwd.Close()
		_ = inv.Close()

		return nil, fmt.Errorf("%w: create inverse bucket: %w", ErrIdMap, err)
	}

	return &Store{fwd: fwd, inv: inv}, nil
}

// Close closes both underlying database files.
func (s *Store) Close() error {
	fwdErr := s.fwd.Close()
	invErr := s.inv.Close()

	return errors.Join(fwdErr, invErr)
}

// Insert records that xid now owns iid. Both directions are written; see
// InsertBatch for the batched, same-side-atomic version used by
// Writer.PushBatch.
func (s *Store) Insert(xid []byte, iid uint64) error {
	if err := s.putForward(xid, []uint64{iid}); err != nil {
		return err
	}

	if err := s.putInverse([]uint64{iid}, [][]byte{xid}); err != nil {
		return err
	}

	return nil
}

// InsertBatch records that xids[i] now owns iids[i], for every i. xids and
// iids must have equal length. Each side commits as one bbolt transaction,
// so a failure on one side cannot leave that side half-written - see
// spec.md §4.4 on the bounded cross-side partial-write window this leaves.
func (s *Store) InsertBatch(xids [][]byte, iids []uint64) error {
	if len(xids) != len(iids) {
		return fmt.Errorf("%w: insert batch: len(xids)=%d != len(iids)=%d", ErrIdMap, len(xids), len(iids))
	}

	if len(xids) == 0 {
		return nil
	}

	if err := s.putForwardBatch(xids, iids); err != nil {
		return err
	}

	if err := s.putInverse(iids, xids); err != nil {
		return err
	}

	return nil
}

func (s *Store) putForward(xid []byte, iids []uint64) error {
	return s.putForwardBatch([][]byte{xid}, iids)
}

// putForwardBatch groups (xid, iid) pairs by xid and puts each group's iids
// into that xid's nested bucket in the order given.
func (s *Store) putForwardBatch(xids [][]byte, iids []uint64) error {
	err := s.fwd.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(fwdBucket)

		for i, xid := range xids {
			child, err := root.CreateBucketIfNotExists(xid)
			if err != nil {
				return err
			}

			if err := child.Put(encodeIID(iids[i]), []byte{1}); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: forward put: %w", ErrIdMap, err)
	}

	return nil
}

func (s *Store) putInverse(iids []uint64, xids [][]byte) error {
	err := s.inv.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(invBucket)

		for i, iid := range iids {
			if err := b.Put(encodeIID(iid), xids[i]); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: inverse put: %w", ErrIdMap, err)
	}

	return nil
}

// GetIIDs returns all iids ever inserted under xid, in ascending iid order
// (the same as insertion order when iids are inserted in increasing order,
// as the Writer assigns them).
// Returns an empty slice (not an error) when xid is absent.
func (s *Store) GetIIDs(xid []byte) ([]uint64, error) {
	var iids []uint64

	err := s.fwd.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(fwdBucket)

		child := root.Bucket(xid)
		if child == nil {
			return nil
		}

		return child.ForEach(func(k, _ []byte) error {
			iids = append(iids, decodeIID(k))

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get iids: %w", ErrIdMap, err)
	}

	return iids, nil
}

// GetXID resolves iid back to its external id. Returns [ErrNotFound] if no
// entry exists - this can legitimately happen for an iid that was pushed
// but whose inverse-map write raced with a concurrent Reader (spec.md §7);
// callers must treat that as "no longer resolvable" and filter the hit out,
// not as a fatal error.
func (s *Store) GetXID(iid uint64) ([]byte, error) {
	var xid []byte

	err := s.inv.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(invBucket).Get(encodeIID(iid))
		if v == nil {
			return ErrNotFound
		}

		xid = bytes.Clone(v)

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("%w: get xid: %w", ErrIdMap, err)
	}

	return xid, nil
}

// Delete removes xid's forward entry only. The inverse entries for iids
// that were already in fwd[xid] are left in place - see spec.md §4.4's
// documented rationale: the inverse map must still resolve iids already
// baked into a committed graph so a reader can translate a hit back to an
// xid and then reject it via the tombstone filter.
//
// A no-op success if xid has no forward entry.
func (s *Store) Delete(xid []byte) error {
	err := s.fwd.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(fwdBucket)
		if root.Bucket(xid) == nil {
			return nil
		}

		return root.DeleteBucket(xid)
	})
	if err != nil {
		return fmt.Errorf("%w: delete: %w", ErrIdMap, err)
	}

	return nil
}
