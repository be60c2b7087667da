package backend

import (
	"github.com/23skdu/longbow-gauge/internal/bench"
	"github.com/23skdu/longbow-gauge/internal/compute"
	"github.com/23skdu/longbow-gauge/internal/input"
	"github.com/23skdu/longbow-gauge/internal/model"
)

// EagerAdapter benchmarks the reference forward pass: no pre-transposed
// weights, no buffer pooling, every intermediate allocated per call. There
// is no gradient bookkeeping to disable in this implementation; inference
// is the only mode, which keeps the comparison with graph-building
// backends fair by construction.
type EagerAdapter struct{}

func (*EagerAdapter) Label() string {
	return "eager"
}

func (*EagerAdapter) Setup(cfg bench.Config) (bench.Handle, error) {
	ctx := compute.NewContext(cfg.NumThreads)
	m := model.LoadCanonical()
	batch := input.Synthesize(cfg.BatchSize, cfg.SeqLen, m.Config.VocabSize)
	return invokeFunc(func() error {
		_, err := m.Forward(ctx, batch)
		return err
	}), nil
}
