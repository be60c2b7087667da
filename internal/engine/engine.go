// Package engine is the harness's native inference engine. It converts a
// model into an internal representation tuned for the benchmark loop:
// projection weights are stored pre-transposed so every dot product walks
// contiguous memory, and all scratch buffers come from a pooled compute
// context sized by the configured thread count.
package engine

import (
	"fmt"
	"math"

	"github.com/23skdu/longbow-gauge/internal/compute"
	"github.com/23skdu/longbow-gauge/internal/input"
	"github.com/23skdu/longbow-gauge/internal/model"
)

type layer struct {
	wqT, bq []float32
	wkT, bk []float32
	wvT, bv []float32
	woT, bo []float32

	attnNormG, attnNormB []float32

	w1T, b1 []float32
	w2T, b2 []float32

	ffnNormG, ffnNormB []float32
}

// Engine holds the converted model and its compute context.
type Engine struct {
	cfg    model.Config
	ctx    *compute.Context
	tokEmb []float32
	posEmb []float32
	typEmb []float32
	embG   []float32
	embB   []float32
	layers []layer
}

// New converts m into the engine representation. numThreads sizes the
// worker pool used by every kernel; it is fixed at construction, not read
// from process-global state.
func New(m *model.Model, numThreads int) (*Engine, error) {
	if err := m.Config.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if numThreads < 1 {
		return nil, fmt.Errorf("engine: invalid num_threads: %d (must be positive)", numThreads)
	}

	cfg := m.Config
	d := cfg.HiddenSize
	f := cfg.IntermediateSize

	e := &Engine{
		cfg:    cfg,
		ctx:    compute.NewPooledContext(numThreads),
		tokEmb: m.Weights.TokenEmb,
		posEmb: m.Weights.PosEmb,
		typEmb: m.Weights.TypeEmb,
		embG:   m.Weights.EmbNormG,
		embB:   m.Weights.EmbNormB,
		layers: make([]layer, cfg.NumLayers),
	}
	for i := range m.Weights.Layers {
		src := &m.Weights.Layers[i]
		e.layers[i] = layer{
			wqT: transpose(src.Wq, d, d), bq: src.Bq,
			wkT: transpose(src.Wk, d, d), bk: src.Bk,
			wvT: transpose(src.Wv, d, d), bv: src.Bv,
			woT: transpose(src.Wo, d, d), bo: src.Bo,
			attnNormG: src.AttnNormG, attnNormB: src.AttnNormB,
			w1T: transpose(src.W1, d, f), b1: src.B1,
			w2T: transpose(src.W2, f, d), b2: src.B2,
			ffnNormG: src.FFNNormG, ffnNormB: src.FFNNormB,
		}
	}
	return e, nil
}

// Config returns the model hyperparameters the engine was built from.
func (e *Engine) Config() model.Config {
	return e.cfg
}

// Threads returns the engine's worker count.
func (e *Engine) Threads() int {
	return e.ctx.Threads()
}

// Forward runs one encoder pass over the batch. The returned hidden state
// is owned by the engine's buffer pool and only valid until the next call.
func (e *Engine) Forward(b *input.Batch) ([]float32, error) {
	cfg := e.cfg
	if b.SeqLen > cfg.MaxPositions {
		return nil, fmt.Errorf("seq_len %d exceeds max_positions %d", b.SeqLen, cfg.MaxPositions)
	}

	ctx := e.ctx
	rows := b.Rows()
	d := cfg.HiddenSize
	f := cfg.IntermediateSize

	x := ctx.Get(rows * d)
	defer ctx.Put(x)
	e.embed(b, x)

	q := ctx.Get(rows * d)
	k := ctx.Get(rows * d)
	v := ctx.Get(rows * d)
	attnCtx := ctx.Get(rows * d)
	proj := ctx.Get(rows * d)
	ffnHid := ctx.Get(rows * f)
	defer func() {
		ctx.Put(q)
		ctx.Put(k)
		ctx.Put(v)
		ctx.Put(attnCtx)
		ctx.Put(proj)
		ctx.Put(ffnHid)
	}()

	for i := range e.layers {
		l := &e.layers[i]

		ctx.MatMulT(x, rows, d, l.wqT, d, q)
		ctx.AddBias(q, rows, d, l.bq)
		ctx.MatMulT(x, rows, d, l.wkT, d, k)
		ctx.AddBias(k, rows, d, l.bk)
		ctx.MatMulT(x, rows, d, l.wvT, d, v)
		ctx.AddBias(v, rows, d, l.bv)

		e.attention(q, k, v, b.BatchSize, b.SeqLen, attnCtx)

		ctx.MatMulT(attnCtx, rows, d, l.woT, d, proj)
		ctx.AddBias(proj, rows, d, l.bo)
		ctx.Add(x, proj)
		ctx.LayerNorm(x, rows, d, l.attnNormG, l.attnNormB, cfg.Eps, x)

		ctx.MatMulT(x, rows, d, l.w1T, f, ffnHid)
		ctx.AddBias(ffnHid, rows, f, l.b1)
		ctx.GeLU(ffnHid, ffnHid)
		ctx.MatMulT(ffnHid, rows, f, l.w2T, d, proj)
		ctx.AddBias(proj, rows, d, l.b2)
		ctx.Add(x, proj)
		ctx.LayerNorm(x, rows, d, l.ffnNormG, l.ffnNormB, cfg.Eps, x)
	}
	return x, nil
}

func (e *Engine) embed(b *input.Batch, x []float32) {
	d := e.cfg.HiddenSize
	e.ctx.Embedding(e.tokEmb, d, b.IDs, x)
	for bi := 0; bi < b.BatchSize; bi++ {
		for s := 0; s < b.SeqLen; s++ {
			off := (bi*b.SeqLen + s) * d
			posOff := s * d
			for j := 0; j < d; j++ {
				x[off+j] += e.posEmb[posOff+j] + e.typEmb[j]
			}
		}
	}
	e.ctx.LayerNorm(x, b.Rows(), d, e.embG, e.embB, e.cfg.Eps, x)
}

// attention fans the (batch x head) pairs out over the worker pool; the
// runner drives iterations sequentially, so all parallelism inside one
// invocation belongs to the engine.
func (e *Engine) attention(q, k, v []float32, batch, seq int, out []float32) {
	heads := e.cfg.NumHeads
	headDim := e.cfg.HeadDim()
	d := heads * headDim
	scale := float32(1.0 / math.Sqrt(float64(headDim)))

	type task struct{ bi, h int }
	tasks := make([]task, 0, batch*heads)
	for bi := 0; bi < batch; bi++ {
		for h := 0; h < heads; h++ {
			tasks = append(tasks, task{bi, h})
		}
	}

	run := func(start, end int) {
		scores := e.ctx.Get(seq * seq)
		defer e.ctx.Put(scores)
		for ti := start; ti < end; ti++ {
			base := tasks[ti].bi * seq
			hOff := tasks[ti].h * headDim
			for i := 0; i < seq; i++ {
				qOff := (base+i)*d + hOff
				for j := 0; j < seq; j++ {
					kOff := (base+j)*d + hOff
					var sum float32
					for t := 0; t < headDim; t++ {
						sum += q[qOff+t] * k[kOff+t]
					}
					scores[i*seq+j] = sum * scale
				}
				compute.Softmax(scores[i*seq : (i+1)*seq])
			}
			for i := 0; i < seq; i++ {
				oOff := (base+i)*d + hOff
				for t := 0; t < headDim; t++ {
					out[oOff+t] = 0
				}
				for j := 0; j < seq; j++ {
					p := scores[i*seq+j]
					vOff := (base+j)*d + hOff
					for t := 0; t < headDim; t++ {
						out[oOff+t] += p * v[vOff+t]
					}
				}
			}
		}
	}
	compute.ParallelChunks(e.ctx.Threads(), len(tasks), run)
}

// transpose converts a row-major (rows x cols) matrix into (cols x rows).
func transpose(m []float32, rows, cols int) []float32 {
	out := make([]float32, len(m))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[c*rows+r] = m[r*cols+c]
		}
	}
	return out
}
