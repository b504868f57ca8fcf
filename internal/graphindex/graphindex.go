// Package graphindex wraps the HNSW-style proximity graph described in
// spec.md §4.7 as a black-box external contract: this package never
// implements graph construction or traversal itself, it only builds,
// persists, loads and queries a github.com/DataIntelligenceCrew/go-faiss
// index, grounded on the usage pattern in
// _examples/other_examples/054f03b6_shibudb-org-shibudb-server__internal-storage-vector_storage.go.go.
//
// Vectors are added to the index in the same append order they are
// written to the payload file (internal/payload), so faiss's own
// sequentially-assigned internal labels coincide with iids and no
// IDMap wrapper layer is needed.
package graphindex

import (
	"fmt"
	"math"

	faiss "github.com/DataIntelligenceCrew/go-faiss"
)

// ErrGraphIndex wraps any faiss failure.
var ErrGraphIndex = fmt.Errorf("graph index error")

// Metric selects the distance function used for both construction and
// search. Spec.md §2 calls for angular/cosine distance; InnerProduct on
// L2-normalized vectors is the standard way to get that out of faiss.
type Metric int

const (
	MetricInnerProduct Metric = iota
	MetricL2
)

func (m Metric) faissMetric() int {
	if m == MetricL2 {
		return faiss.MetricL2
	}

	return faiss.MetricInnerProduct
}

// BuildConfig parameterizes HNSW graph construction, per spec.md §4.7.
// It covers every build-time knob this package's faiss binding actually
// exposes: NumNeighbors (HNSW M) and MaxSearch (efConstruction/efSearch).
// spec.md §6 also defines a LayerMultiplier build option, but
// github.com/DataIntelligenceCrew/go-faiss does not expose faiss's HNSW
// level-multiplier (it is fixed internally by libfaiss's own default level
// assignment); see vecstore.BuildConfig.LayerMultiplier and DESIGN.md for
// why it is recorded in the manifest but not passed down to this package.
type BuildConfig struct {
	// NumNeighbors is the number of graph links per node (faiss's HNSW M).
	NumNeighbors int

	// MaxSearch bounds the candidate-list size (efConstruction/efSearch) used
	// both while building and, by default, while querying.
	MaxSearch int

	// Metric selects the distance function. MetricInnerProduct vectors are
	// L2-normalized by this package before being added to or searched
	// against the index, so the resulting raw faiss score is cosine
	// similarity; Search converts that to spec.md §2's angular distance
	// (1-cosθ) before returning it in Hit.Score.
	Metric Metric
}

func (c BuildConfig) description() string {
	m := c.NumNeighbors
	if m <= 0 {
		m = 32
	}

	return fmt.Sprintf("HNSW%d", m)
}

// Index is an open, queryable graph index over a fixed set of vectors.
type Index struct {
	idx    faiss.Index
	dims   int
	metric Metric
}

// normalizeL2 returns v scaled to unit L2 norm, so that faiss inner-product
// scores over the result are cosine similarities. The zero vector has no
// meaningful direction and is returned unchanged rather than divided by zero.
func normalizeL2(v []float32) []float32 {
	var sumSq float64

	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}

	if sumSq == 0 {
		return v
	}

	norm := float32(math.Sqrt(sumSq))

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}

	return out
}

// Build constructs a new graph index over the dims-dimensional vectors,
// added in slice order so faiss label i corresponds to iid i. Under
// MetricInnerProduct every vector is L2-normalized first, per spec.md §2's
// angular-distance requirement.
func Build(dims int, cfg BuildConfig, vectors [][]float32) (*Index, error) {
	idx, err := faiss.IndexFactory(dims, cfg.description(), cfg.Metric.faissMetric())
	if err != nil {
		return nil, fmt.Errorf("%w: create index: %w", ErrGraphIndex, err)
	}

	if cfg.MaxSearch > 0 {
		if err := setEfConstruction(idx, cfg.MaxSearch); err != nil {
			idx.Delete()

			return nil, err
		}
	}

	flat := make([]float32, 0, len(vectors)*dims)
	for _, v := range vectors {
		if len(v) != dims {
			idx.Delete()

			return nil, fmt.Errorf("%w: build: vector has %d dims, want %d", ErrGraphIndex, len(v), dims)
		}

		if cfg.Metric == MetricInnerProduct {
			v = normalizeL2(v)
		}

		flat = append(flat, v...)
	}

	if len(flat) > 0 {
		if err := idx.Add(flat); err != nil {
			idx.Delete()

			return nil, fmt.Errorf("%w: add vectors: %w", ErrGraphIndex, err)
		}
	}

	return &Index{idx: idx, dims: dims, metric: cfg.Metric}, nil
}

// setEfConstruction is best-effort: not every faiss factory string produces
// an index exposing HNSW-specific parameters, so a failure here is not
// fatal to Build.
func setEfConstruction(idx faiss.Index, maxSearch int) error {
	type efSetter interface {
		SetEfConstruction(int)
		SetEfSearch(int)
	}

	if s, ok := idx.(efSetter); ok {
		s.SetEfConstruction(maxSearch)
		s.SetEfSearch(maxSearch)
	}

	return nil
}

// WriteIndex persists the index to path using faiss's own serialization
// format.
func (i *Index) WriteIndex(path string) error {
	if err := faiss.WriteIndex(i.idx, path); err != nil {
		return fmt.Errorf("%w: write %q: %w", ErrGraphIndex, path, err)
	}

	return nil
}

// ReadIndex loads a previously written graph index from path. metric must
// match the Metric the index was built with (Build persists no metric
// marker of its own inside the faiss file), so that Search knows whether
// to normalize queries and convert scores to angular distance.
func ReadIndex(path string, dims int, metric Metric) (*Index, error) {
	idx, err := faiss.ReadIndex(path, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %w", ErrGraphIndex, path, err)
	}

	return &Index{idx: idx, dims: dims, metric: metric}, nil
}

// Hit is one search result: an internal id and its distance/similarity
// score under the index's configured metric.
type Hit struct {
	IID   uint64
	Score float32
}

// Search returns up to numNeighbors nearest hits to query. maxSearch, when
// > 0, sets the index's candidate-list size before this query (spec.md
// §4.7's per-query MaxSearch override of QueryConfig); the setting stays on
// the index and also applies to later searches that pass maxSearch <= 0.
//
// Under MetricInnerProduct, query is L2-normalized before the faiss search
// (matching how Build normalized the indexed vectors) and the raw cosine
// similarity faiss returns is converted to spec.md §2's angular distance,
// 1-cosθ, so a Hit.Score of 0 means an exact directional match and smaller
// scores mean closer vectors, consistently with MetricL2's scores.
func (i *Index) Search(query []float32, numNeighbors int, maxSearch int) ([]Hit, error) {
	if len(query) != i.dims {
		return nil, fmt.Errorf("%w: search: query has %d dims, want %d", ErrGraphIndex, len(query), i.dims)
	}

	if maxSearch > 0 {
		_ = setEfConstruction(i.idx, maxSearch)
	}

	q := query
	if i.metric == MetricInnerProduct {
		q = normalizeL2(query)
	}

	distances, labels, err := i.idx.Search(q, int64(numNeighbors))
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", ErrGraphIndex, err)
	}

	hits := make([]Hit, 0, len(labels))

	for n, label := range labels {
		if label < 0 {
			continue
		}

		score := distances[n]
		if i.metric == MetricInnerProduct {
			score = 1 - score
		}

		hits = append(hits, Hit{IID: uint64(label), Score: score})
	}

	return hits, nil
}

// Len returns the number of vectors in the index.
func (i *Index) Len() uint64 {
	return uint64(i.idx.Ntotal())
}

// Close releases the index's underlying C++ resources.
func (i *Index) Close() {
	i.idx.Delete()
}
