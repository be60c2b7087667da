package model

import "fmt"

// Tensor is a named, flat view of one parameter, used by the interchange
// artifact codec.
type Tensor struct {
	Name string
	Dims []int64
	Data []float32
}

// Tensors flattens the model into named tensors in a stable order.
func (m *Model) Tensors() []Tensor {
	cfg := m.Config
	w := &m.Weights
	d := int64(cfg.HiddenSize)
	f := int64(cfg.IntermediateSize)

	out := []Tensor{
		{"embeddings.token", []int64{int64(cfg.VocabSize), d}, w.TokenEmb},
		{"embeddings.position", []int64{int64(cfg.MaxPositions), d}, w.PosEmb},
		{"embeddings.type", []int64{2, d}, w.TypeEmb},
		{"embeddings.norm.gamma", []int64{d}, w.EmbNormG},
		{"embeddings.norm.beta", []int64{d}, w.EmbNormB},
	}
	for i := range w.Layers {
		l := &w.Layers[i]
		p := func(name string) string { return fmt.Sprintf("layers.%d.%s", i, name) }
		out = append(out,
			Tensor{p("attn.wq"), []int64{d, d}, l.Wq},
			Tensor{p("attn.bq"), []int64{d}, l.Bq},
			Tensor{p("attn.wk"), []int64{d, d}, l.Wk},
			Tensor{p("attn.bk"), []int64{d}, l.Bk},
			Tensor{p("attn.wv"), []int64{d, d}, l.Wv},
			Tensor{p("attn.bv"), []int64{d}, l.Bv},
			Tensor{p("attn.wo"), []int64{d, d}, l.Wo},
			Tensor{p("attn.bo"), []int64{d}, l.Bo},
			Tensor{p("attn.norm.gamma"), []int64{d}, l.AttnNormG},
			Tensor{p("attn.norm.beta"), []int64{d}, l.AttnNormB},
			Tensor{p("ffn.w1"), []int64{d, f}, l.W1},
			Tensor{p("ffn.b1"), []int64{f}, l.B1},
			Tensor{p("ffn.w2"), []int64{f, d}, l.W2},
			Tensor{p("ffn.b2"), []int64{d}, l.B2},
			Tensor{p("ffn.norm.gamma"), []int64{d}, l.FFNNormG},
			Tensor{p("ffn.norm.beta"), []int64{d}, l.FFNNormB},
		)
	}
	return out
}

// FromTensors reassembles a model from named tensors, the inverse of
// Tensors.
func FromTensors(cfg Config, tensors map[string][]float32) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Model{Config: cfg}
	w := &m.Weights

	get := func(name string, want int) ([]float32, error) {
		t, ok := tensors[name]
		if !ok {
			return nil, fmt.Errorf("missing tensor %q", name)
		}
		if len(t) != want {
			return nil, fmt.Errorf("tensor %q: got %d elements, want %d", name, len(t), want)
		}
		return t, nil
	}

	d := cfg.HiddenSize
	f := cfg.IntermediateSize
	var err error
	if w.TokenEmb, err = get("embeddings.token", cfg.VocabSize*d); err != nil {
		return nil, err
	}
	if w.PosEmb, err = get("embeddings.position", cfg.MaxPositions*d); err != nil {
		return nil, err
	}
	if w.TypeEmb, err = get("embeddings.type", 2*d); err != nil {
		return nil, err
	}
	if w.EmbNormG, err = get("embeddings.norm.gamma", d); err != nil {
		return nil, err
	}
	if w.EmbNormB, err = get("embeddings.norm.beta", d); err != nil {
		return nil, err
	}

	w.Layers = make([]LayerWeights, cfg.NumLayers)
	for i := range w.Layers {
		l := &w.Layers[i]
		p := func(name string) string { return fmt.Sprintf("layers.%d.%s", i, name) }
		fields := []struct {
			dst  *[]float32
			name string
			want int
		}{
			{&l.Wq, p("attn.wq"), d * d}, {&l.Bq, p("attn.bq"), d},
			{&l.Wk, p("attn.wk"), d * d}, {&l.Bk, p("attn.bk"), d},
			{&l.Wv, p("attn.wv"), d * d}, {&l.Bv, p("attn.bv"), d},
			{&l.Wo, p("attn.wo"), d * d}, {&l.Bo, p("attn.bo"), d},
			{&l.AttnNormG, p("attn.norm.gamma"), d}, {&l.AttnNormB, p("attn.norm.beta"), d},
			{&l.W1, p("ffn.w1"), d * f}, {&l.B1, p("ffn.b1"), f},
			{&l.W2, p("ffn.w2"), f * d}, {&l.B2, p("ffn.b2"), d},
			{&l.FFNNormG, p("ffn.norm.gamma"), d}, {&l.FFNNormB, p("ffn.norm.beta"), d},
		}
		for _, fd := range fields {
			if *fd.dst, err = get(fd.name, fd.want); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
