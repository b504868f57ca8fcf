package vecstore

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/catunlock/vecstore/internal/graphindex"
	"github.com/catunlock/vecstore/internal/idmap"
	"github.com/catunlock/vecstore/internal/lockfile"
	"github.com/catunlock/vecstore/internal/payload"
	"github.com/catunlock/vecstore/internal/tombstone"
	"github.com/catunlock/vecstore/pkg/fs"
)

// Reader is a non-exclusive query session over a store directory, per
// spec.md §4.6. Any number of Readers may be open concurrently on the
// same store; they do not serialize with each other, only with a
// committing Writer (via COMMIT_LOCK, on reload).
type Reader struct {
	mu sync.RWMutex

	loc  Location
	fsys fs.FS
	log  zerolog.Logger

	commitLock *lockfile.Lock

	idm   *idmap.Store
	tombs *tombstone.Store

	dims int

	payloadReader *payload.Reader
	graphIndex    *graphindex.Index
	generation    uint64

	closed bool
}

// OpenReader opens a read-only query session on an already-committed
// store at dir. Fails if elements.dat/index.dat do not yet exist - a
// Reader cannot be opened before a Writer has committed at least once.
func OpenReader(dir string, opts ...Option) (*Reader, error) {
	s := newSettings(opts)
	fsys := s.fsys
	loc := NewLocation(dir)

	pr, err := payload.Open(loc.Elements())
	if err != nil {
		return nil, fmt.Errorf("%w: open payload: %w", ErrIoError, err)
	}

	idx, err := graphindex.ReadIndex(loc.Index(), pr.Dims(), graphindex.MetricInnerProduct)
	if err != nil {
		_ = pr.Close()

		return nil, fmt.Errorf("%w: open graph index: %w", ErrIoError, err)
	}

	if err := fsys.MkdirAll(loc.IdMapForwardDir(), 0o755); err != nil {
		_ = pr.Close()
		idx.Close()

		return nil, fmt.Errorf("%w: create id-map forward dir: %w", ErrIoError, err)
	}

	if err := fsys.MkdirAll(loc.IdMapInverseDir(), 0o755); err != nil {
		_ = pr.Close()
		idx.Close()

		return nil, fmt.Errorf("%w: create id-map inverse dir: %w", ErrIoError, err)
	}

	idm, err := idmap.Open(loc.IdMapForwardDir(), loc.IdMapInverseDir())
	if err != nil {
		_ = pr.Close()
		idx.Close()

		return nil, fmt.Errorf("%w: %w", ErrIdMapError, err)
	}

	if err := fsys.MkdirAll(loc.TombstoneDir(), 0o755); err != nil {
		_ = pr.Close()
		idx.Close()
		_ = idm.Close()

		return nil, fmt.Errorf("%w: create tombstone dir: %w", ErrIoError, err)
	}

	tombs, err := tombstone.Open(loc.TombstoneDir())
	if err != nil {
		_ = pr.Close()
		idx.Close()
		_ = idm.Close()

		return nil, fmt.Errorf("%w: %w", ErrTombstoneError, err)
	}

	return &Reader{
		loc:           loc,
		fsys:          fsys,
		log:           orNop(s.logger),
		commitLock:    lockfile.New(fsys, loc.CommitLock()),
		idm:           idm,
		tombs:         tombs,
		dims:          pr.Dims(),
		payloadReader: pr,
		graphIndex:    idx,
	}, nil
}

// Len reports the number of vectors in the currently loaded payload.
// Debug accessor; not part of spec.md's core contract.
func (r *Reader) Len() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.payloadReader.Len()
}

// Generation reports how many times this Reader has reloaded its
// mappings in response to DIRTY_BIT. Debug accessor.
func (r *Reader) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.generation
}

// Search runs an approximate nearest-neighbor query with
// [DefaultQueryConfig], reloading the payload/graph first if a newer
// commit is signaled by DIRTY_BIT.
func (r *Reader) Search(query []float32) ([]Hit, error) {
	return r.SearchWithConfig(query, DefaultQueryConfig())
}

// SearchWithConfig is [Reader.Search] with an explicit [QueryConfig].
func (r *Reader) SearchWithConfig(query []float32, cfg QueryConfig) ([]Hit, error) {
	cfg = cfg.withDefaults()

	if err := r.reloadIfDirty(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	pr := r.payloadReader
	idx := r.graphIndex
	r.mu.RUnlock()

	if len(query) != pr.Dims() {
		return nil, fmt.Errorf("%w: search: query has %d dims, want %d", ErrIoError, len(query), pr.Dims())
	}

	rawHits, err := idx.Search(query, cfg.NumNeighbors, cfg.MaxSearch)
	if err != nil {
		return nil, fmt.Errorf("%w: graph search: %w", ErrIoError, err)
	}

	scoreByIID := make(map[uint64]float32, len(rawHits))
	iids := make([]uint64, len(rawHits))

	for i, h := range rawHits {
		iids[i] = h.IID
		scoreByIID[h.IID] = h.Score
	}

	kept, err := r.tombs.Filter(iids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTombstoneError, err)
	}

	results := make([]Hit, 0, len(kept))

	for _, iid := range kept {
		xid, err := r.idm.GetXID(iid)
		if err != nil {
			if errors.Is(err, idmap.ErrNotFound) {
				// Hit raced with a not-yet-visible inverse-map write (spec.md
				// §7): treat it the same as tombstoned and drop it.
				continue
			}

			return nil, fmt.Errorf("%w: %w", ErrIdMapError, err)
		}

		results = append(results, Hit{Xid: xid, Score: scoreByIID[iid]})
	}

	return results, nil
}

func (r *Reader) reloadIfDirty() error {
	dirty, err := r.fsys.Exists(r.loc.DirtyBit())
	if err != nil {
		return fmt.Errorf("%w: check dirty bit: %w", ErrIoError, err)
	}

	if !dirty {
		return nil
	}

	if err := r.commitLock.Lock(); err != nil {
		return fmt.Errorf("%w: acquire commit lock: %w", ErrIoError, err)
	}
	defer func() { _ = r.commitLock.Unlock() }()

	newPR, err := payload.Open(r.loc.Elements())
	if err != nil {
		return fmt.Errorf("%w: reload payload: %w", ErrIoError, err)
	}

	newIdx, err := graphindex.ReadIndex(r.loc.Index(), newPR.Dims(), graphindex.MetricInnerProduct)
	if err != nil {
		_ = newPR.Close()

		return fmt.Errorf("%w: reload graph index: %w", ErrIoError, err)
	}

	r.mu.Lock()
	oldPR, oldIdx := r.payloadReader, r.graphIndex
	r.payloadReader = newPR
	r.graphIndex = newIdx
	r.generation++
	r.mu.Unlock()

	_ = oldPR.Close()
	oldIdx.Close()

	r.log.Debug().Uint64("generation", r.generation).Msg("reloaded payload and graph index")

	if err := r.fsys.Remove(r.loc.DirtyBit()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: clear dirty bit: %w", ErrIoError, err)
	}

	return nil
}

// Close unmaps the payload and graph index and closes the id-map and
// tombstone stores. Safe to call more than once.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true

	prErr := r.payloadReader.Close()
	r.graphIndex.Close()
	idmErr := r.idm.Close()
	tombsErr := r.tombs.Close()

	return errors.Join(prErr, idmErr, tombsErr)
}
