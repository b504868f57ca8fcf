// Package vecstore implements a persistent, concurrent, approximate
// nearest-neighbor vector search store: a single writer ingests vectors
// tagged with caller-chosen external ids, builds a proximity graph over
// them, and commits both atomically to disk; any number of readers
// memory-map the committed artifacts and serve k-nearest-neighbor queries
// concurrently with ongoing ingest.
//
// The store directory layout, concurrency discipline, and commit protocol
// are described in full in the package's design documents; in short: a
// Writer holds WRITER_LOCK for its lifetime, buffers pushed vectors in
// memory, and on Commit builds a fresh graph, writes both artifacts to
// temp files, and renames them into place under COMMIT_LOCK. A Reader
// holds no exclusive lock; it memory-maps the committed files and reloads
// them whenever DIRTY_BIT signals a newer commit.
package vecstore

import (
	"github.com/rs/zerolog"

	"github.com/catunlock/vecstore/pkg/fs"
)

// Option configures a Writer or Reader at construction time.
type Option func(*settings)

type settings struct {
	logger *zerolog.Logger
	fsys   fs.FS
}

func newSettings(opts []Option) settings {
	var s settings

	for _, opt := range opts {
		opt(&s)
	}

	if s.fsys == nil {
		s.fsys = fs.NewReal()
	}

	return s
}

// WithLogger injects a structured logger. A nil logger (the default when
// this option is omitted) logs nothing - see [nopLogger].
func WithLogger(l *zerolog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithFS swaps the filesystem implementation a Writer or Reader uses for
// all file I/O, e.g. [fs.Chaos] to inject faults in tests. Defaults to
// [fs.NewReal].
func WithFS(fsys fs.FS) Option {
	return func(s *settings) { s.fsys = fsys }
}

// Hit is one search result: an external id paired with its distance score
// under the store's configured metric (lower is closer).
type Hit struct {
	Xid   []byte
	Score float32
}
