package model

import (
	"math"
	"strings"
	"testing"

	"github.com/23skdu/longbow-gauge/internal/compute"
	"github.com/23skdu/longbow-gauge/internal/input"
)

// tinyConfig keeps forward passes cheap in tests while exercising every
// code path (multiple layers, multiple heads).
func tinyConfig() Config {
	return Config{
		VocabSize:        64,
		HiddenSize:       16,
		NumLayers:        2,
		NumHeads:         2,
		IntermediateSize: 32,
		MaxPositions:     32,
		Eps:              1e-12,
	}
}

func TestCanonicalConfig(t *testing.T) {
	cfg := Canonical()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("canonical config invalid: %v", err)
	}
	if cfg.VocabSize != 30522 {
		t.Errorf("VocabSize = %d, want 30522", cfg.VocabSize)
	}
	if cfg.HiddenSize != 128 || cfg.NumLayers != 2 || cfg.NumHeads != 2 {
		t.Errorf("unexpected shape: %+v", cfg)
	}
	if cfg.HeadDim() != 64 {
		t.Errorf("HeadDim = %d, want 64", cfg.HeadDim())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"zero vocab", func(c *Config) { c.VocabSize = 0 }, "vocab_size"},
		{"negative hidden", func(c *Config) { c.HiddenSize = -1 }, "hidden_size"},
		{"zero layers", func(c *Config) { c.NumLayers = 0 }, "num_layers"},
		{"zero heads", func(c *Config) { c.NumHeads = 0 }, "num_heads"},
		{"indivisible heads", func(c *Config) { c.NumHeads = 3 }, "not divisible"},
		{"zero intermediate", func(c *Config) { c.IntermediateSize = 0 }, "intermediate_size"},
		{"zero positions", func(c *Config) { c.MaxPositions = 0 }, "max_positions"},
		{"zero eps", func(c *Config) { c.Eps = 0 }, "eps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tinyConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestNewSeededDeterminism(t *testing.T) {
	a := NewSeeded(tinyConfig(), 99)
	b := NewSeeded(tinyConfig(), 99)
	c := NewSeeded(tinyConfig(), 100)

	if !equalSlices(a.Weights.TokenEmb, b.Weights.TokenEmb) {
		t.Error("same seed produced different token embeddings")
	}
	if !equalSlices(a.Weights.Layers[1].W2, b.Weights.Layers[1].W2) {
		t.Error("same seed produced different layer weights")
	}
	if equalSlices(a.Weights.TokenEmb, c.Weights.TokenEmb) {
		t.Error("different seeds produced identical token embeddings")
	}
}

func TestLoadCanonicalStable(t *testing.T) {
	a := LoadCanonical()
	b := LoadCanonical()
	if !equalSlices(a.Weights.Layers[0].Wq, b.Weights.Layers[0].Wq) {
		t.Error("canonical model not reproducible")
	}
	if a.Config != Canonical() {
		t.Errorf("config = %+v, want canonical", a.Config)
	}
}

func TestResolve(t *testing.T) {
	a, err := Resolve("bert-base-uncased")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	b, err := Resolve("bert-base-uncased")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	c, err := Resolve("bert-large-cased")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if !equalSlices(a.Weights.TokenEmb, b.Weights.TokenEmb) {
		t.Error("same identifier resolved to different weights")
	}
	if equalSlices(a.Weights.TokenEmb, c.Weights.TokenEmb) {
		t.Error("distinct identifiers resolved to identical weights")
	}

	if _, err := Resolve(""); err == nil {
		t.Error("empty identifier accepted")
	}
}

func TestForwardShape(t *testing.T) {
	m := NewSeeded(tinyConfig(), 1)
	ctx := compute.NewContext(1)
	b := input.Synthesize(3, 8, m.Config.VocabSize)

	out, err := m.Forward(ctx, b)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if len(out) != b.Rows()*m.Config.HiddenSize {
		t.Fatalf("len(out) = %d, want %d", len(out), b.Rows()*m.Config.HiddenSize)
	}
	for i, v := range out {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("out[%d] = %v", i, v)
		}
	}
}

func TestForwardDeterministic(t *testing.T) {
	m := NewSeeded(tinyConfig(), 1)
	ctx := compute.NewContext(1)
	b := input.Synthesize(2, 8, m.Config.VocabSize)

	a, err := m.Forward(ctx, b)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	c, err := m.Forward(ctx, b)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if !equalSlices(a, c) {
		t.Error("repeated forward over the same batch diverged")
	}
}

func TestForwardRejectsLongSequence(t *testing.T) {
	m := NewSeeded(tinyConfig(), 1)
	b := input.Synthesize(1, m.Config.MaxPositions+1, m.Config.VocabSize)
	if _, err := m.Forward(compute.NewContext(1), b); err == nil {
		t.Error("sequence beyond max_positions accepted")
	}
}

func TestForwardRejectsBadTokenID(t *testing.T) {
	m := NewSeeded(tinyConfig(), 1)
	b := input.Synthesize(1, 4, m.Config.VocabSize)
	b.IDs[2] = int32(m.Config.VocabSize)
	if _, err := m.Forward(compute.NewContext(1), b); err == nil {
		t.Error("out-of-range token id accepted")
	}
}

func TestTracedPlanMatchesEager(t *testing.T) {
	m := NewSeeded(tinyConfig(), 5)
	ctx := compute.NewContext(1)
	b := input.Synthesize(2, 8, m.Config.VocabSize)

	want, err := m.Forward(ctx, b)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	plan, err := m.Trace(ctx, b)
	if err != nil {
		t.Fatalf("Trace failed: %v", err)
	}
	if err := plan.Execute(b); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	got := plan.Hidden()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > 1e-5 {
			t.Fatalf("plan[%d] = %v, eager %v", i, got[i], want[i])
		}
	}
}

func TestExecuteRejectsShapeMismatch(t *testing.T) {
	m := NewSeeded(tinyConfig(), 1)
	ctx := compute.NewContext(1)
	plan, err := m.Trace(ctx, input.Synthesize(2, 8, m.Config.VocabSize))
	if err != nil {
		t.Fatalf("Trace failed: %v", err)
	}

	if err := plan.Execute(input.Synthesize(2, 16, m.Config.VocabSize)); err == nil {
		t.Error("seq_len mismatch accepted")
	}
	if err := plan.Execute(input.Synthesize(4, 8, m.Config.VocabSize)); err == nil {
		t.Error("batch_size mismatch accepted")
	}
}

func TestTraceRejectsLongSequence(t *testing.T) {
	m := NewSeeded(tinyConfig(), 1)
	b := input.Synthesize(1, m.Config.MaxPositions+1, m.Config.VocabSize)
	if _, err := m.Trace(compute.NewContext(1), b); err == nil {
		t.Error("trace accepted sequence beyond max_positions")
	}
}

func TestTensorsRoundTrip(t *testing.T) {
	m := NewSeeded(tinyConfig(), 9)

	flat := make(map[string][]float32)
	for _, tn := range m.Tensors() {
		flat[tn.Name] = tn.Data
		want := 1
		for _, dim := range tn.Dims {
			want *= int(dim)
		}
		if len(tn.Data) != want {
			t.Errorf("tensor %q: %d elements, dims say %d", tn.Name, len(tn.Data), want)
		}
	}

	back, err := FromTensors(m.Config, flat)
	if err != nil {
		t.Fatalf("FromTensors failed: %v", err)
	}

	ctx := compute.NewContext(1)
	b := input.Synthesize(1, 8, m.Config.VocabSize)
	want, err := m.Forward(ctx, b)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	got, err := back.Forward(ctx, b)
	if err != nil {
		t.Fatalf("Forward on reassembled model failed: %v", err)
	}
	if !equalSlices(got, want) {
		t.Error("reassembled model produces different output")
	}
}

func TestFromTensorsMissing(t *testing.T) {
	m := NewSeeded(tinyConfig(), 9)
	flat := make(map[string][]float32)
	for _, tn := range m.Tensors() {
		flat[tn.Name] = tn.Data
	}
	delete(flat, "layers.1.ffn.w2")

	if _, err := FromTensors(m.Config, flat); err == nil {
		t.Error("missing tensor accepted")
	}
}

func TestFromTensorsWrongSize(t *testing.T) {
	m := NewSeeded(tinyConfig(), 9)
	flat := make(map[string][]float32)
	for _, tn := range m.Tensors() {
		flat[tn.Name] = tn.Data
	}
	flat["embeddings.norm.gamma"] = flat["embeddings.norm.gamma"][:4]

	if _, err := FromTensors(m.Config, flat); err == nil {
		t.Error("truncated tensor accepted")
	}
}

func equalSlices(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
