package backend

import (
	"github.com/23skdu/longbow-gauge/internal/bench"
	"github.com/23skdu/longbow-gauge/internal/engine"
	"github.com/23skdu/longbow-gauge/internal/input"
	"github.com/23skdu/longbow-gauge/internal/logger"
	"github.com/23skdu/longbow-gauge/internal/model"
	"github.com/23skdu/longbow-gauge/internal/profile"
)

// NativeAdapter benchmarks the harness's own engine. It always loads the
// canonical test model and ignores the caller-supplied identifier: the
// native engine is the baseline every other backend is compared against,
// and a fixed model keeps that baseline reproducible. This differs from
// the other backends, which honor the identifier.
type NativeAdapter struct{}

func (*NativeAdapter) Label() string {
	return "longbow_gauge"
}

func (a *NativeAdapter) Setup(cfg bench.Config) (bench.Handle, error) {
	m := model.LoadCanonical()
	eng, err := engine.New(m, cfg.NumThreads)
	if err != nil {
		return nil, err
	}

	batch := input.Synthesize(cfg.BatchSize, cfg.SeqLen, m.Config.VocabSize)
	handle := invokeFunc(func() error {
		_, err := eng.Forward(batch)
		return err
	})

	if cfg.Profile {
		if err := a.profilingPasses(cfg, handle); err != nil {
			return nil, err
		}
	}
	return handle, nil
}

// profilingPasses writes the CPU-profile and execution-trace artifacts,
// each around exactly one extra forward call. Both run during setup,
// before the runner's warm-up and timed loop.
func (a *NativeAdapter) profilingPasses(cfg bench.Config, handle bench.Handle) error {
	cpuName := profile.ArtifactName(a.Label(), cfg.BatchSize, cfg.SeqLen, cfg.NumThreads, "pprof")
	if err := profile.CPUProfile(cpuName, handle.Invoke); err != nil {
		return err
	}
	traceName := profile.ArtifactName(a.Label(), cfg.BatchSize, cfg.SeqLen, cfg.NumThreads, "trace")
	if err := profile.ExecutionTrace(traceName, handle.Invoke); err != nil {
		return err
	}
	logger.Log.Info("profiling artifacts written",
		"cpu_profile", cpuName, "trace", traceName)
	return nil
}
