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

// batchChunkSize bounds a single push_batch id-map transaction, per
// spec.md §4.5: "a failure/granularity tradeoff, not a semantic
// requirement".
const batchChunkSize = 5000

// Writer is a single-writer ingest session over a store directory, per
// spec.md §4.5. Construction fails with [ErrWriterBusy] if another writer
// already holds the directory's WRITER_LOCK.
type Writer struct {
	mu sync.Mutex

	loc  Location
	fsys fs.FS
	log  zerolog.Logger

	writerLock *lockfile.Lock
	commitLock *lockfile.Lock

	idm   *idmap.Store
	tombs *tombstone.Store

	dims    int
	vectors [][]float32

	buildCfg BuildConfig

	closed bool
}

// OpenWriter opens or creates a store at dir for vectors of the given
// dimensionality, acquiring WRITER_LOCK for the Writer's lifetime.
func OpenWriter(dir string, dims int, opts ...Option) (*Writer, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: dims must be > 0, got %d", ErrIoError, dims)
	}

	s := newSettings(opts)
	fsys := s.fsys
	loc := NewLocation(dir)

	if err := fsys.MkdirAll(loc.Root(), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create store dir %q: %w", ErrIoError, loc.Root(), err)
	}

	commitLock := lockfile.New(fsys, loc.CommitLock())
	writerLock := lockfile.New(fsys, loc.WriterLock())

	if err := writerLock.TryLock(); err != nil {
		if errors.Is(err, lockfile.ErrAlreadyHeld) {
			return nil, ErrWriterBusy
		}

		return nil, fmt.Errorf("%w: acquire writer lock: %w", ErrIoError, err)
	}

	w, err := finishOpenWriter(loc, fsys, commitLock, writerLock, dims, orNop(s.logger))
	if err != nil {
		_ = writerLock.Unlock()

		return nil, err
	}

	return w, nil
}

func finishOpenWriter(
	loc Location, fsys fs.FS, commitLock, writerLock *lockfile.Lock, dims int, log zerolog.Logger,
) (*Writer, error) {
	vectors, actualDims, err := loadExistingPayload(loc.Elements(), dims)
	if err != nil {
		return nil, err
	}

	if err := fsys.MkdirAll(loc.IdMapForwardDir(), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create id-map forward dir: %w", ErrIoError, err)
	}

	if err := fsys.MkdirAll(loc.IdMapInverseDir(), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create id-map inverse dir: %w", ErrIoError, err)
	}

	idm, err := idmap.Open(loc.IdMapForwardDir(), loc.IdMapInverseDir())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIdMapError, err)
	}

	if err := fsys.MkdirAll(loc.TombstoneDir(), 0o755); err != nil {
		_ = idm.Close()

		return nil, fmt.Errorf("%w: create tombstone dir: %w", ErrIoError, err)
	}

	tombs, err := tombstone.Open(loc.TombstoneDir())
	if err != nil {
		_ = idm.Close()

		return nil, fmt.Errorf("%w: %w", ErrTombstoneError, err)
	}

	buildCfg, err := LoadBuildConfig(loc.OptionsFile())
	if err != nil {
		_ = idm.Close()
		_ = tombs.Close()

		return nil, err
	}

	return &Writer{
		loc:        loc,
		fsys:       fsys,
		log:        log,
		writerLock: writerLock,
		commitLock: commitLock,
		idm:        idm,
		tombs:      tombs,
		dims:       actualDims,
		vectors:    vectors,
		buildCfg:   buildCfg,
	}, nil
}

// loadExistingPayload reads every vector out of an already-committed
// elements.dat, if one exists, so a reopened Writer resumes appending
// after the last committed iid instead of starting over. It returns
// wantDims unchanged when no payload file exists yet.
func loadExistingPayload(path string, wantDims int) ([][]float32, int, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, wantDims, nil
		}

		return nil, 0, fmt.Errorf("%w: stat %q: %w", ErrIoError, path, err)
	}

	r, err := payload.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open existing payload: %w", ErrIoError, err)
	}
	defer r.Close()

	if r.Dims() != wantDims {
		return nil, 0, fmt.Errorf("%w: existing payload has dims=%d, opened with dims=%d",
			ErrIoError, r.Dims(), wantDims)
	}

	vectors := make([][]float32, r.Len())

	for i := range vectors {
		v, err := r.At(uint64(i))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: read vector %d: %w", ErrIoError, i, err)
		}

		vectors[i] = append([]float32(nil), v...)
	}

	return vectors, wantDims, nil
}

// Len reports the number of vectors buffered (committed plus pushed since
// the last commit). Debug accessor; not part of spec.md's core contract.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.vectors)
}

// Push records v under xid, assigning it the next contiguous internal id.
// The id-map insert happens before the in-memory payload append: if the
// id-map insert fails, the payload is left untouched (spec.md §4.5, §9).
func (w *Writer) Push(xid []byte, v []float32) error {
	if len(v) != w.dims {
		return fmt.Errorf("%w: push: vector has %d dims, want %d", ErrIoError, len(v), w.dims)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	iid := uint64(len(w.vectors))

	if err := w.idm.Insert(xid, iid); err != nil {
		return fmt.Errorf("%w: %w", ErrIdMapError, err)
	}

	w.vectors = append(w.vectors, append([]float32(nil), v...))

	return nil
}

// PushBatch reserves a contiguous iid range for the given (xid, vector)
// pairs, inserts the id-map entries in chunks of at most batchChunkSize
// pairs, then appends all vectors. xids and vectors must have equal
// length.
func (w *Writer) PushBatch(xids [][]byte, vectors [][]float32) error {
	if len(xids) != len(vectors) {
		return fmt.Errorf("%w: push_batch: len(xids)=%d != len(vectors)=%d", ErrIoError, len(xids), len(vectors))
	}

	if len(xids) == 0 {
		return nil
	}

	for i, v := range vectors {
		if len(v) != w.dims {
			return fmt.Errorf("%w: push_batch: vector %d has %d dims, want %d", ErrIoError, i, len(v), w.dims)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	i0 := uint64(len(w.vectors))
	iids := make([]uint64, len(xids))

	for i := range iids {
		iids[i] = i0 + uint64(i)
	}

	for start := 0; start < len(xids); start += batchChunkSize {
		end := min(start+batchChunkSize, len(xids))

		if err := w.idm.InsertBatch(xids[start:end], iids[start:end]); err != nil {
			return fmt.Errorf("%w: %w", ErrIdMapError, err)
		}
	}

	for _, v := range vectors {
		w.vectors = append(w.vectors, append([]float32(nil), v...))
	}

	return nil
}

// Delete tombstones every iid currently mapped to xid. It does not modify
// the forward id-map entry (spec.md §4.4). A no-op success if xid has no
// iids.
func (w *Writer) Delete(xid []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	iids, err := w.idm.GetIIDs(xid)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIdMapError, err)
	}

	if len(iids) == 0 {
		return nil
	}

	if err := w.tombs.AddBatch(iids); err != nil {
		return fmt.Errorf("%w: %w", ErrTombstoneError, err)
	}

	return nil
}

// Commit builds a fresh graph over the current in-memory payload, writes
// both artifacts to temp files, and atomically swaps them into place
// under COMMIT_LOCK, per spec.md §4.5 step 4-7.
//
// If the second rename fails after the first succeeded, the store is left
// inconsistent and [ErrCommitTorn] is returned; this implementation backs
// up the prior elements.dat before the first rename and restores it on a
// torn commit, so at least the payload/graph pairing from before this
// commit attempt is recoverable by hand.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	snapshot := make([][]float32, len(w.vectors))
	copy(snapshot, w.vectors)

	idx, err := graphindex.Build(w.dims, graphindex.BuildConfig{
		NumNeighbors: w.buildCfg.NumNeighbors,
		MaxSearch:    w.buildCfg.MaxSearch,
		Metric:       graphindex.MetricInnerProduct,
	}, snapshot)
	if err != nil {
		return fmt.Errorf("%w: build graph: %w", ErrIoError, err)
	}
	defer idx.Close()

	tmpPayloadPath, err := writeTempPayload(w.dims, snapshot)
	if err != nil {
		return err
	}

	defer os.Remove(tmpPayloadPath)

	tmpIndexPath, err := reserveTempPath("vecstore-index-*.tmp")
	if err != nil {
		return err
	}

	defer os.Remove(tmpIndexPath)

	if err := idx.WriteIndex(tmpIndexPath); err != nil {
		return fmt.Errorf("%w: write graph: %w", ErrIoError, err)
	}

	if err := w.commitLock.Lock(); err != nil {
		return fmt.Errorf("%w: acquire commit lock: %w", ErrIoError, err)
	}
	defer func() { _ = w.commitLock.Unlock() }()

	return w.swapIntoPlace(tmpPayloadPath, tmpIndexPath)
}

func (w *Writer) swapIntoPlace(tmpPayloadPath, tmpIndexPath string) error {
	backupPath := w.loc.Elements() + ".bak"

	hadPrior, err := w.fsys.Exists(w.loc.Elements())
	if err != nil {
		return fmt.Errorf("%w: stat prior payload: %w", ErrIoError, err)
	}

	if hadPrior {
		if err := w.fsys.Rename(w.loc.Elements(), backupPath); err != nil {
			return fmt.Errorf("%w: back up prior payload: %w", ErrIoError, err)
		}
	}

	if err := w.fsys.ReplaceFile(tmpPayloadPath, w.loc.Elements()); err != nil {
		if hadPrior {
			_ = w.fsys.Rename(backupPath, w.loc.Elements())
		}

		return fmt.Errorf("%w: rename payload into place: %w", ErrIoError, err)
	}

	if err := w.fsys.ReplaceFile(tmpIndexPath, w.loc.Index()); err != nil {
		if hadPrior {
			_ = w.fsys.Rename(backupPath, w.loc.Elements())
		}

		w.log.Error().Err(err).Msg("second commit rename failed after first succeeded")

		return ErrCommitTorn
	}

	if hadPrior {
		_ = w.fsys.Remove(backupPath)
	}

	if err := w.fsys.WriteFile(w.loc.DirtyBit(), nil, 0o644); err != nil {
		return fmt.Errorf("%w: touch dirty bit: %w", ErrIoError, err)
	}

	m := manifest{
		Count:           len(w.vectors),
		NumNeighbors:    w.buildCfg.NumNeighbors,
		MaxSearch:       w.buildCfg.MaxSearch,
		LayerMultiplier: w.buildCfg.LayerMultiplier,
	}
	if err := writeManifest(w.fsys, w.loc.Manifest(), m); err != nil {
		// The commit itself already succeeded and is visible to readers;
		// losing the manifest is a diagnostics regression, not a torn commit.
		w.log.Warn().Err(err).Msg("failed to write commit manifest")
	}

	return nil
}

func writeTempPayload(dims int, vectors [][]float32) (string, error) {
	path, err := reserveTempPath("vecstore-elements-*.tmp")
	if err != nil {
		return "", err
	}

	pw, err := payload.CreateWriter(path, dims)
	if err != nil {
		os.Remove(path)

		return "", fmt.Errorf("%w: create temp payload: %w", ErrIoError, err)
	}

	for _, v := range vectors {
		if _, err := pw.Append(v); err != nil {
			_ = pw.Close()
			os.Remove(path)

			return "", fmt.Errorf("%w: write temp payload: %w", ErrIoError, err)
		}
	}

	if err := pw.Close(); err != nil {
		os.Remove(path)

		return "", fmt.Errorf("%w: finalize temp payload: %w", ErrIoError, err)
	}

	return path, nil
}

// reserveTempPath atomically reserves a unique path in the OS temp area
// without leaving a dangling open handle: the file is created then
// immediately closed so the caller's own writer (payload.CreateWriter,
// faiss's WriteIndex) can open it fresh.
func reserveTempPath(pattern string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("%w: reserve temp path: %w", ErrIoError, err)
	}

	path := f.Name()

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: close temp path: %w", ErrIoError, err)
	}

	return path, nil
}

// Close releases the writer lock and closes the id-map and tombstone
// stores. Safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	idmErr := w.idm.Close()
	tombsErr := w.tombs.Close()
	lockErr := w.writerLock.Unlock()

	return errors.Join(idmErr, tombsErr, lockErr)
}
