package vecstore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// BuildConfig parameterizes graph construction at commit time, per
// spec.md §6 "Configuration (build)".
type BuildConfig struct {
	// NumNeighbors is the graph fan-out. Default 30.
	NumNeighbors int `json:"num_neighbors,omitempty"` //nolint:tagliatelle // snake_case matches on-disk options file

	// MaxSearch is the search breadth used while building. Default 200.
	MaxSearch int `json:"max_search,omitempty"` //nolint:tagliatelle

	// LayerMultiplier is spec.md §6's HNSW layer-assignment knob. Default
	// 15.0. Recorded here, persisted to the commit manifest, and honored by
	// LoadBuildConfig's override merge, but not passed down to
	// internal/graphindex: github.com/DataIntelligenceCrew/go-faiss does not
	// expose faiss's internal level-multiplier for its HNSW factory, so
	// there is nothing downstream of this field to wire it to. See
	// graphindex.BuildConfig and DESIGN.md.
	LayerMultiplier float64 `json:"layer_multiplier,omitempty"` //nolint:tagliatelle
}

// DefaultBuildConfig returns spec.md §6's documented build defaults.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		NumNeighbors:    30,
		MaxSearch:       200,
		LayerMultiplier: 15.0,
	}
}

func (c BuildConfig) withDefaults() BuildConfig {
	out := c

	if out.NumNeighbors <= 0 {
		out.NumNeighbors = 30
	}

	if out.MaxSearch <= 0 {
		out.MaxSearch = 200
	}

	if out.LayerMultiplier <= 0 {
		out.LayerMultiplier = 15.0
	}

	return out
}

// QueryConfig parameterizes a single Reader.Search call, per spec.md §4.6.
type QueryConfig struct {
	// MaxSearch is the search breadth. Default 200.
	MaxSearch int `json:"max_search,omitempty"` //nolint:tagliatelle

	// NumNeighbors is the number of results to return. Default 30.
	NumNeighbors int `json:"num_neighbors,omitempty"` //nolint:tagliatelle
}

// DefaultQueryConfig returns spec.md §6's documented query defaults.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		MaxSearch:    200,
		NumNeighbors: 30,
	}
}

func (c QueryConfig) withDefaults() QueryConfig {
	out := c

	if out.MaxSearch <= 0 {
		out.MaxSearch = 200
	}

	if out.NumNeighbors <= 0 {
		out.NumNeighbors = 30
	}

	return out
}

// LoadBuildConfig reads an optional jsonc options file at path (see
// [Location.OptionsFile]) and merges it over [DefaultBuildConfig]. A
// missing file is not an error: defaults are returned unchanged. Parsed
// with hujson so the file may contain comments and trailing commas,
// exactly as the teacher's config.go parses its own jsonc config file.
func LoadBuildConfig(path string) (BuildConfig, error) {
	cfg := DefaultBuildConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return BuildConfig{}, fmt.Errorf("%w: read options file %q: %w", ErrIoError, path, err)
	}

	std, err := hujson.Standardize(raw)
	if err != nil {
		return BuildConfig{}, fmt.Errorf("%w: parse options file %q: %w", ErrIoError, path, err)
	}

	var override BuildConfig
	if err := json.Unmarshal(std, &override); err != nil {
		return BuildConfig{}, fmt.Errorf("%w: decode options file %q: %w", ErrIoError, path, err)
	}

	if override.NumNeighbors > 0 {
		cfg.NumNeighbors = override.NumNeighbors
	}

	if override.MaxSearch > 0 {
		cfg.MaxSearch = override.MaxSearch
	}

	if override.LayerMultiplier > 0 {
		cfg.LayerMultiplier = override.LayerMultiplier
	}

	return cfg.withDefaults(), nil
}
