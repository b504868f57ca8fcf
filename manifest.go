package vecstore

import (
	"fmt"

	"github.com/catunlock/vecstore/pkg/fs"
)

// manifest is the on-disk record written by [Writer.Commit] after every
// successful swap: a small, human-readable trace of what the last commit
// actually built, independent of opening the payload/graph files.
type manifest struct {
	Count           int     `json:"count"`
	NumNeighbors    int     `json:"num_neighbors"`    //nolint:tagliatelle
	MaxSearch       int     `json:"max_search"`       //nolint:tagliatelle
	LayerMultiplier float64 `json:"layer_multiplier"` //nolint:tagliatelle
}

// writeManifest durably persists m at path using [fs.AtomicWriter], the
// teacher's own write-temp-fsync-rename-fsyncdir helper - unlike
// elements.dat/index.dat this file is never read back by this package, so
// it has no corresponding temp-file-plus-COMMIT_LOCK swap of its own and
// writes straight through the writer's fsys.
func writeManifest(fsys fs.FS, path string, m manifest) error {
	w := fs.NewAtomicWriter(fsys)

	if err := w.WriteJSON(path, m, w.DefaultOptions()); err != nil {
		return fmt.Errorf("%w: write manifest %q: %w", ErrIoError, path, err)
	}

	return nil
}
