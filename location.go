package vecstore

import "path/filepath"

// Location is pure path algebra over a store's root directory: it resolves
// well-known relative paths and touches no filesystem state itself, per
// spec.md §4.1 and §6's fixed directory layout.
type Location struct {
	root string
}

// NewLocation binds a Location to root. It performs no I/O.
func NewLocation(root string) Location {
	return Location{root: root}
}

// Root returns the store's root directory.
func (l Location) Root() string {
	return l.root
}

// Elements is the vector payload file.
func (l Location) Elements() string {
	return filepath.Join(l.root, "elements.dat")
}

// Index is the graph index file.
func (l Location) Index() string {
	return filepath.Join(l.root, "index.dat")
}

// DirtyBit is the reload-me signal file.
func (l Location) DirtyBit() string {
	return filepath.Join(l.root, "DIRTY_BIT")
}

// CommitLock is the commit/reload critical-section lock file.
func (l Location) CommitLock() string {
	return filepath.Join(l.root, "COMMIT_LOCK")
}

// WriterLock is the single-writer lock file.
func (l Location) WriterLock() string {
	return filepath.Join(l.root, "WRITER_LOCK")
}

// TombstoneDir is the tombstone key-value store's directory.
func (l Location) TombstoneDir() string {
	return filepath.Join(l.root, "deleted.dat")
}

// IdMapForwardDir is the forward (xid -> iids) id-map store's directory.
func (l Location) IdMapForwardDir() string {
	return filepath.Join(l.root, "index_map")
}

// IdMapInverseDir is the inverse (iid -> xid) id-map store's directory.
func (l Location) IdMapInverseDir() string {
	return filepath.Join(l.root, "index_mapinverted")
}

// OptionsFile is the optional jsonc build/query configuration file.
func (l Location) OptionsFile() string {
	return filepath.Join(l.root, "options.jsonc")
}

// Manifest is the small JSON record of the most recent successful commit
// (vector count and the build config used), written durably alongside
// elements.dat/index.dat for diagnostic and recovery inspection.
func (l Location) Manifest() string {
	return filepath.Join(l.root, "manifest.json")
}
