package orchestrator

import (
	"errors"
	"fmt"
)

// ErrConfig is returned by New when the construction parameters are invalid.
var ErrConfig = errors.New("orchestrator: invalid configuration")

// Config carries every tunable knob of the similarity index.
// Zero-valued fields are filled in from DefaultConfig by New before
// validation.
type Config struct {
	ShingleSize         int     `yaml:"shingle_size"`
	NumHashes           int     `yaml:"num_hashes"`
	NumBands            int     `yaml:"num_bands"`
	RowsPerBand         int     `yaml:"rows_per_band"`
	MinHashSeed         int64   `yaml:"minhash_seed"`
	RefineThreshold     float64 `yaml:"refine_threshold"`
	FragmentMinChars    int     `yaml:"fragment_min_chars"`
	FragmentWindowWords int     `yaml:"fragment_window_words"`
	TopK                int     `yaml:"top_k"`

	// StorePath is the SQLite file backing this index.
	StorePath string `yaml:"store_path"`

	// RefineConcurrency bounds the goroutine pool used to refine
	// multiple LSH candidates (exact Jaccard + fragment extraction)
	// concurrently during check. 0 uses a sensible default.
	RefineConcurrency int `yaml:"refine_concurrency"`

	// IngestRatePerSecond, if > 0, throttles batch ingestion so a
	// large manifest does not starve concurrent check readers. 0
	// disables throttling.
	IngestRatePerSecond float64 `yaml:"ingest_rate_per_second"`
}

// DefaultConfig returns the default knob values.
func DefaultConfig() Config {
	return Config{
		ShingleSize:         5,
		NumHashes:           128,
		NumBands:            16,
		RowsPerBand:         8,
		MinHashSeed:         42,
		RefineThreshold:     0.3,
		FragmentMinChars:    30,
		FragmentWindowWords: 5,
		TopK:                5,
		StorePath:           "data/simdex.db",
		RefineConcurrency:   8,
	}
}

// validate checks the invariants construction must hold: bands*rows
// must equal num_hashes, and every size must be positive.
func (c Config) validate() error {
	if c.NumBands <= 0 || c.RowsPerBand <= 0 || c.NumHashes <= 0 || c.ShingleSize <= 0 {
		return fmt.Errorf("%w: sizes must be positive", ErrConfig)
	}
	if c.NumBands*c.RowsPerBand != c.NumHashes {
		return fmt.Errorf("%w: num_bands*rows_per_band (%d*%d=%d) must equal num_hashes (%d)",
			ErrConfig, c.NumBands, c.RowsPerBand, c.NumBands*c.RowsPerBand, c.NumHashes)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrConfig)
	}
	return nil
}
