// Package model implements a BERT-style encoder: token/position/type
// embeddings followed by a stack of post-norm transformer layers. The
// forward pass here is the reference (eager) path; the pooled engine and
// the interchange runtime build their own representations on top of it.
package model

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

const canonicalSeed = 30522

// Config holds the encoder hyperparameters.
type Config struct {
	VocabSize        int
	HiddenSize       int
	NumLayers        int
	NumHeads         int
	IntermediateSize int
	MaxPositions     int
	Eps              float32
}

// Canonical returns the fixed test-model shape used by the benchmark,
// matching prajjwal1/bert-tiny (L=2, H=128).
func Canonical() Config {
	return Config{
		VocabSize:        30522,
		HiddenSize:       128,
		NumLayers:        2,
		NumHeads:         2,
		IntermediateSize: 512,
		MaxPositions:     512,
		Eps:              1e-12,
	}
}

func (c Config) Validate() error {
	if c.VocabSize <= 0 {
		return fmt.Errorf("invalid vocab_size: %d (must be positive)", c.VocabSize)
	}
	if c.HiddenSize <= 0 {
		return fmt.Errorf("invalid hidden_size: %d (must be positive)", c.HiddenSize)
	}
	if c.NumLayers <= 0 {
		return fmt.Errorf("invalid num_layers: %d (must be positive)", c.NumLayers)
	}
	if c.NumHeads <= 0 {
		return fmt.Errorf("invalid num_heads: %d (must be positive)", c.NumHeads)
	}
	if c.HiddenSize%c.NumHeads != 0 {
		return fmt.Errorf("hidden_size %d not divisible by num_heads %d", c.HiddenSize, c.NumHeads)
	}
	if c.IntermediateSize <= 0 {
		return fmt.Errorf("invalid intermediate_size: %d (must be positive)", c.IntermediateSize)
	}
	if c.MaxPositions <= 0 {
		return fmt.Errorf("invalid max_positions: %d (must be positive)", c.MaxPositions)
	}
	if c.Eps <= 0 {
		return fmt.Errorf("invalid eps: %g (must be positive)", c.Eps)
	}
	return nil
}

// HeadDim returns the per-head width.
func (c Config) HeadDim() int {
	return c.HiddenSize / c.NumHeads
}

// LayerWeights holds one transformer layer. All matrices are row-major
// (in x out).
type LayerWeights struct {
	Wq, Bq []float32
	Wk, Bk []float32
	Wv, Bv []float32
	Wo, Bo []float32

	AttnNormG, AttnNormB []float32

	W1, B1 []float32
	W2, B2 []float32

	FFNNormG, FFNNormB []float32
}

// Weights holds the full parameter set.
type Weights struct {
	TokenEmb []float32
	PosEmb   []float32
	TypeEmb  []float32

	EmbNormG, EmbNormB []float32

	Layers []LayerWeights
}

// Model couples a Config with its Weights.
type Model struct {
	Config  Config
	Weights Weights
}

// NewSeeded builds a model with deterministic pseudo-random weights. The
// same (config, seed) pair always yields identical parameters, which keeps
// benchmark runs reproducible without shipping a weight file.
func NewSeeded(cfg Config, seed int64) *Model {
	rng := rand.New(rand.NewSource(seed))
	d := cfg.HiddenSize
	f := cfg.IntermediateSize

	m := &Model{Config: cfg}
	w := &m.Weights
	w.TokenEmb = randWeights(rng, cfg.VocabSize*d)
	w.PosEmb = randWeights(rng, cfg.MaxPositions*d)
	w.TypeEmb = randWeights(rng, 2*d)
	w.EmbNormG = ones(d)
	w.EmbNormB = make([]float32, d)

	w.Layers = make([]LayerWeights, cfg.NumLayers)
	for i := range w.Layers {
		l := &w.Layers[i]
		l.Wq, l.Bq = randWeights(rng, d*d), make([]float32, d)
		l.Wk, l.Bk = randWeights(rng, d*d), make([]float32, d)
		l.Wv, l.Bv = randWeights(rng, d*d), make([]float32, d)
		l.Wo, l.Bo = randWeights(rng, d*d), make([]float32, d)
		l.AttnNormG, l.AttnNormB = ones(d), make([]float32, d)
		l.W1, l.B1 = randWeights(rng, d*f), make([]float32, f)
		l.W2, l.B2 = randWeights(rng, f*d), make([]float32, d)
		l.FFNNormG, l.FFNNormB = ones(d), make([]float32, d)
	}
	return m
}

// LoadCanonical returns the fixed canonical test model. The native engine
// always benchmarks this model regardless of the caller-supplied
// identifier; the discrepancy is deliberate (reproducibility over
// flexibility) and preserved from the harness's original design.
func LoadCanonical() *Model {
	return NewSeeded(Canonical(), canonicalSeed)
}

// Resolve maps a model identifier to a Model. The identifier instantiates
// the canonical shape with weights seeded from the identifier string, so
// distinct identifiers stay distinguishable while runs remain
// deterministic. Identifiers naming an on-disk Arrow artifact are handled
// by the interchange runtime before this fallback applies.
func Resolve(identifier string) (*Model, error) {
	if identifier == "" {
		return nil, fmt.Errorf("empty model identifier")
	}
	h := fnv.New64a()
	h.Write([]byte(identifier))
	return NewSeeded(Canonical(), int64(h.Sum64())), nil
}

func randWeights(rng *rand.Rand, n int) []float32 {
	w := make([]float32, n)
	for i := range w {
		w[i] = float32(rng.NormFloat64()) * 0.02
	}
	return w
}

func ones(n int) []float32 {
	w := make([]float32, n)
	for i := range w {
		w[i] = 1
	}
	return w
}
