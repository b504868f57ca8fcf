// Package payload implements the memory-mapped, dense vector storage
// described in spec.md §4.1/§4.6: a flat file of fixed-width float32
// vectors, indexed by internal id (iid), read back via a zero-copy mmap
// instead of per-call file reads.
//
// This adapts the teacher's pkg/slotcache mmap technique (see
// pkg/slotcache/slotcache.go and open.go, which call syscall.Mmap directly)
// to golang.org/x/sys/unix, the teacher's own declared but in that package
// never-imported dependency - giving it genuine use here instead of
// dropping it.
package payload

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrPayload wraps any I/O or mmap failure from this package.
var ErrPayload = fmt.Errorf("payload store error")

const headerSize = 16 // dims uint32, count uint32, reserved uint64

// Writer appends float32 vectors of a fixed dimensionality to a payload
// file. It is not memory-mapped: writers write directly to an *os.File and
// the file is (re)mapped by readers only after it has been committed, per
// spec.md §4.5's build-in-a-temp-file-then-rename flow.
type Writer struct {
	f    *os.File
	dims int
}

// CreateWriter creates (or truncates) the payload file at path for vectors
// of the given dimensionality and writes its header.
func CreateWriter(path string, dims int) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: create %q: %w", ErrPayload, path, err)
	}

	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(dims))
	binary.LittleEndian.PutUint32(hdr[4:8], 0)

	if _, err := f.Write(hdr); err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("%w: write header: %w", ErrPayload, err)
	}

	return &Writer{f: f, dims: dims}, nil
}

// Append writes vec (must have len == dims) to the end of the file and
// returns the iid assigned to it: vectors are appended in strict order, so
// the iid is simply the 0-based index of this append among all appends
// since CreateWriter.
func (w *Writer) Append(vec []float32) (uint64, error) {
	if len(vec) != w.dims {
		return 0, fmt.Errorf("%w: append: vector has %d dims, want %d", ErrPayload, len(vec), w.dims)
	}

	offset, err := w.f.Seek(0, os.SEEK_CUR)
	if err != nil {
		return 0, fmt.Errorf("%w: seek: %w", ErrPayload, err)
	}

	iid := uint64(offset-headerSize) / uint64(w.dims*4)

	buf := make([]byte, w.dims*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(f))
	}

	if _, err := w.f.Write(buf); err != nil {
		return 0, fmt.Errorf("%w: write vector: %w", ErrPayload, err)
	}

	return iid, nil
}

// Count returns the number of vectors written so far.
func (w *Writer) Count() (uint64, error) {
	offset, err := w.f.Seek(0, os.SEEK_CUR)
	if err != nil {
		return 0, fmt.Errorf("%w: seek: %w", ErrPayload, err)
	}

	return uint64(offset-headerSize) / uint64(w.dims*4), nil
}

// Close finalizes the header's count field and closes the file. It does
// not fsync - durability is the caller's (Writer.Commit's) responsibility
// via the atomic rename described in spec.md §4.5.
func (w *Writer) Close() error {
	count, err := w.Count()
	if err != nil {
		_ = w.f.Close()

		return err
	}

	hdr := make([]byte, 4)
	binary.LittleEndian.PutUint32(hdr, uint32(count))

	if _, err := w.f.WriteAt(hdr, 4); err != nil {
		_ = w.f.Close()

		return fmt.Errorf("%w: finalize header: %w", ErrPayload, err)
	}

	if err := w.f.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrPayload, err)
	}

	return nil
}

// Reader is a read-only, memory-mapped view over a committed payload file.
// Vectors are accessed by iid with zero copies: At returns a slice backed
// directly by the mapping.
type Reader struct {
	f      *os.File
	data   []byte
	dims   int
	count  uint32
	closed bool
}

// Open memory-maps the payload file at path for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %w", ErrPayload, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("%w: stat: %w", ErrPayload, err)
	}

	size := info.Size()
	if size < headerSize {
		_ = f.Close()

		return nil, fmt.Errorf("%w: %q is too small to contain a header", ErrPayload, path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("%w: mmap %q: %w", ErrPayload, path, err)
	}

	dims := binary.LittleEndian.Uint32(data[0:4])
	count := binary.LittleEndian.Uint32(data[4:8])

	return &Reader{f: f, data: data, dims: int(dims), count: count}, nil
}

// Dims returns the vector dimensionality recorded in the file's header.
func (r *Reader) Dims() int {
	return r.dims
}

// Len returns the number of vectors recorded in the file's header.
func (r *Reader) Len() uint32 {
	return r.count
}

// At returns the vector for iid as a view directly onto the mapped memory.
// The returned slice is valid only until Close is called; callers that
// need to retain it past the Reader's lifetime must copy it.
func (r *Reader) At(iid uint64) ([]float32, error) {
	if iid >= uint64(r.count) {
		return nil, fmt.Errorf("%w: iid %d out of range [0,%d)", ErrPayload, iid, r.count)
	}

	start := headerSize + int(iid)*r.dims*4
	end := start + r.dims*4

	if end > len(r.data) {
		return nil, fmt.Errorf("%w: iid %d maps past end of mapping", ErrPayload, iid)
	}

	return bytesToFloat32Slice(r.data[start:end]), nil
}

// bytesToFloat32Slice reinterprets b (which must be 4-byte-aligned in
// length) as a []float32 without copying, assuming the host is
// little-endian - true for every platform this module targets (amd64,
// arm64). This is the zero-copy read path required by spec.md §4.6; a
// copying decode via encoding/binary would defeat the point of mmap.
func bytesToFloat32Slice(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}

	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// Close unmaps the file and closes its descriptor.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true

	err := unix.Munmap(r.data)
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return fmt.Errorf("%w: close: %w", ErrPayload, err)
	}

	return nil
}
