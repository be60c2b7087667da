package model

import (
	"fmt"
	"math"

	"github.com/23skdu/longbow-gauge/internal/compute"
	"github.com/23skdu/longbow-gauge/internal/input"
)

// Forward runs one encoder pass over the batch and returns the last hidden
// state, shape (batch*seq, hidden). This is the eager path: every
// intermediate is allocated fresh on each call.
func (m *Model) Forward(ctx *compute.Context, b *input.Batch) ([]float32, error) {
	if b.SeqLen > m.Config.MaxPositions {
		return nil, fmt.Errorf("seq_len %d exceeds max_positions %d", b.SeqLen, m.Config.MaxPositions)
	}
	for _, id := range b.IDs {
		if int(id) < 0 || int(id) >= m.Config.VocabSize {
			return nil, fmt.Errorf("token id %d out of range [0, %d)", id, m.Config.VocabSize)
		}
	}

	cfg := m.Config
	w := &m.Weights
	rows := b.Rows()
	d := cfg.HiddenSize

	x := make([]float32, rows*d)
	m.embed(ctx, b, x)

	scratch := forwardScratch{
		q:       make([]float32, rows*d),
		k:       make([]float32, rows*d),
		v:       make([]float32, rows*d),
		attnCtx: make([]float32, rows*d),
		proj:    make([]float32, rows*d),
		scores:  make([]float32, b.SeqLen*b.SeqLen),
		ffnHid:  make([]float32, rows*cfg.IntermediateSize),
	}

	for i := range w.Layers {
		m.layerForward(ctx, &w.Layers[i], x, b, &scratch)
	}
	return x, nil
}

type forwardScratch struct {
	q, k, v []float32
	attnCtx []float32
	proj    []float32
	scores  []float32
	ffnHid  []float32
}

// embed fills x with token + position + type embeddings followed by the
// embedding LayerNorm.
func (m *Model) embed(ctx *compute.Context, b *input.Batch, x []float32) {
	cfg := m.Config
	w := &m.Weights
	d := cfg.HiddenSize

	ctx.Embedding(w.TokenEmb, d, b.IDs, x)
	for bi := 0; bi < b.BatchSize; bi++ {
		for s := 0; s < b.SeqLen; s++ {
			off := (bi*b.SeqLen + s) * d
			posOff := s * d
			for j := 0; j < d; j++ {
				// Type embedding is always segment 0 for synthesized input.
				x[off+j] += w.PosEmb[posOff+j] + w.TypeEmb[j]
			}
		}
	}
	ctx.LayerNorm(x, b.Rows(), d, w.EmbNormG, w.EmbNormB, cfg.Eps, x)
}

func (m *Model) layerForward(ctx *compute.Context, l *LayerWeights, x []float32, b *input.Batch, s *forwardScratch) {
	cfg := m.Config
	rows := b.Rows()
	d := cfg.HiddenSize
	f := cfg.IntermediateSize

	ctx.MatMul(x, rows, d, l.Wq, d, s.q)
	ctx.AddBias(s.q, rows, d, l.Bq)
	ctx.MatMul(x, rows, d, l.Wk, d, s.k)
	ctx.AddBias(s.k, rows, d, l.Bk)
	ctx.MatMul(x, rows, d, l.Wv, d, s.v)
	ctx.AddBias(s.v, rows, d, l.Bv)

	attention(s.q, s.k, s.v, b.BatchSize, b.SeqLen, cfg.NumHeads, cfg.HeadDim(), s.scores, s.attnCtx)

	ctx.MatMul(s.attnCtx, rows, d, l.Wo, d, s.proj)
	ctx.AddBias(s.proj, rows, d, l.Bo)
	ctx.Add(x, s.proj)
	ctx.LayerNorm(x, rows, d, l.AttnNormG, l.AttnNormB, cfg.Eps, x)

	ctx.MatMul(x, rows, d, l.W1, f, s.ffnHid)
	ctx.AddBias(s.ffnHid, rows, f, l.B1)
	ctx.GeLU(s.ffnHid, s.ffnHid)
	ctx.MatMul(s.ffnHid, rows, f, l.W2, d, s.proj)
	ctx.AddBias(s.proj, rows, d, l.B2)
	ctx.Add(x, s.proj)
	ctx.LayerNorm(x, rows, d, l.FFNNormG, l.FFNNormB, cfg.Eps, x)
}

// attention computes full bidirectional scaled-dot-product attention per
// (batch, head), writing the context vectors into out. scores is an
// (seq x seq) scratch buffer reused across heads; q, k, v and out are
// (batch*seq, heads*headDim) row-major.
func attention(q, k, v []float32, batch, seq, heads, headDim int, scores, out []float32) {
	d := heads * headDim
	scale := float32(1.0 / math.Sqrt(float64(headDim)))

	for bi := 0; bi < batch; bi++ {
		base := bi * seq
		for h := 0; h < heads; h++ {
			hOff := h * headDim
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
			}
			for i := 0; i < seq; i++ {
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
}
