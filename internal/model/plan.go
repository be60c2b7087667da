package model

import (
	"fmt"

	"github.com/23skdu/longbow-gauge/internal/compute"
	"github.com/23skdu/longbow-gauge/internal/input"
)

// ExecutionPlan is the graph-form callable produced by tracing the model
// against one sample batch. Shapes are frozen at trace time and every
// scratch buffer is preallocated, so Execute performs no allocation.
// Tracing happens once, before any warm-up or timing, because plan
// construction is a one-time cost not representative of steady state.
type ExecutionPlan struct {
	model *Model
	ctx   *compute.Context

	batchSize int
	seqLen    int

	x       []float32
	scratch forwardScratch
}

// Trace compiles an ExecutionPlan for the sample batch's shape.
func (m *Model) Trace(ctx *compute.Context, sample *input.Batch) (*ExecutionPlan, error) {
	if sample.SeqLen > m.Config.MaxPositions {
		return nil, fmt.Errorf("seq_len %d exceeds max_positions %d", sample.SeqLen, m.Config.MaxPositions)
	}
	rows := sample.Rows()
	d := m.Config.HiddenSize
	p := &ExecutionPlan{
		model:     m,
		ctx:       ctx,
		batchSize: sample.BatchSize,
		seqLen:    sample.SeqLen,
		x:         make([]float32, rows*d),
		scratch: forwardScratch{
			q:       make([]float32, rows*d),
			k:       make([]float32, rows*d),
			v:       make([]float32, rows*d),
			attnCtx: make([]float32, rows*d),
			proj:    make([]float32, rows*d),
			scores:  make([]float32, sample.SeqLen*sample.SeqLen),
			ffnHid:  make([]float32, rows*m.Config.IntermediateSize),
		},
	}
	// One tracing pass validates the sample against the frozen graph.
	if err := p.Execute(sample); err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	return p, nil
}

// Execute runs the traced graph over a batch of the traced shape and
// returns an error for any shape mismatch.
func (p *ExecutionPlan) Execute(b *input.Batch) error {
	if b.BatchSize != p.batchSize || b.SeqLen != p.seqLen {
		return fmt.Errorf("batch shape (%d, %d) does not match traced shape (%d, %d)",
			b.BatchSize, b.SeqLen, p.batchSize, p.seqLen)
	}
	m := p.model
	m.embed(p.ctx, b, p.x)
	for i := range m.Weights.Layers {
		m.layerForward(p.ctx, &m.Weights.Layers[i], p.x, b, &p.scratch)
	}
	return nil
}

// Hidden returns the last hidden state produced by the most recent Execute.
func (p *ExecutionPlan) Hidden() []float32 {
	return p.x
}
