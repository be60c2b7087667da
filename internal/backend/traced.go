package backend

import (
	"fmt"

	"github.com/23skdu/longbow-gauge/internal/bench"
	"github.com/23skdu/longbow-gauge/internal/compute"
	"github.com/23skdu/longbow-gauge/internal/input"
	"github.com/23skdu/longbow-gauge/internal/model"
)

// TracedAdapter benchmarks the graph-form callable: the model is traced
// once against a sample batch to freeze shapes and preallocate scratch,
// and every timed invocation runs through the resulting plan. Tracing
// happens during setup because plan compilation is a one-time cost not
// representative of steady-state latency.
type TracedAdapter struct{}

func (*TracedAdapter) Label() string {
	return "traced"
}

func (*TracedAdapter) Setup(cfg bench.Config) (bench.Handle, error) {
	m, err := model.Resolve(cfg.Model)
	if err != nil {
		return nil, err
	}
	ctx := compute.NewContext(cfg.NumThreads)
	batch := input.Synthesize(cfg.BatchSize, cfg.SeqLen, m.Config.VocabSize)

	plan, err := m.Trace(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("trace model %q: %w", cfg.Model, err)
	}
	return invokeFunc(func() error {
		return plan.Execute(batch)
	}), nil
}
