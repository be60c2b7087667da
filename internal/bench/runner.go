package bench

import (
	"fmt"

	"github.com/23skdu/longbow-gauge/internal/logger"
	"github.com/23skdu/longbow-gauge/internal/metrics"
)

// Handle is a ready-to-call model over an adapter-owned input batch.
type Handle interface {
	Invoke() error
}

// Adapter owns backend-specific model construction, thread configuration,
// and the forward-call invocation. Setup returns a handle whose Invoke
// runs one forward pass over the batch synthesized during setup.
type Adapter interface {
	// Label is the canonical framework label reported in the result, not
	// necessarily the requested name.
	Label() string
	Setup(cfg Config) (Handle, error)
}

// Runner drives one benchmark run end to end on a single logical thread.
// Parallelism, where it exists, belongs to the backend under test.
type Runner struct {
	adapters map[string]Adapter
}

// NewRunner builds a runner over an adapter registry keyed by requested
// framework name.
func NewRunner(adapters map[string]Adapter) *Runner {
	return &Runner{adapters: adapters}
}

// Run executes the benchmark described by cfg: adapter setup, one untimed
// warm-up invocation, then exactly cfg.Iterations timed invocations. Every
// failure propagates unchanged and aborts the run; a QPS computed from a
// fraction of the intended iterations would not be meaningful.
func (r *Runner) Run(cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	adapter, ok := r.adapters[cfg.Framework]
	if !ok {
		return nil, &UnknownFrameworkError{Name: cfg.Framework}
	}

	logger.Log.Info("setting up backend",
		"framework", cfg.Framework,
		"model", cfg.Model,
		"seq_len", cfg.SeqLen,
		"batch_size", cfg.BatchSize,
		"num_threads", cfg.NumThreads)

	handle, err := adapter.Setup(cfg)
	if err != nil {
		return nil, fmt.Errorf("setup %s: %w", cfg.Framework, err)
	}

	// First invocations carry allocation and compilation costs that are
	// not representative of steady state.
	if err := handle.Invoke(); err != nil {
		return nil, fmt.Errorf("warm-up %s: %w", cfg.Framework, err)
	}

	elapsed, err := Measure(handle.Invoke, cfg.Iterations)
	if err != nil {
		return nil, fmt.Errorf("timed loop %s: %w", cfg.Framework, err)
	}

	seconds := elapsed.Seconds()
	res := &Result{
		QPS:        float64(cfg.Iterations) / seconds,
		Elapsed:    seconds,
		N:          cfg.Iterations,
		BatchSize:  cfg.BatchSize,
		SeqLen:     cfg.SeqLen,
		Framework:  adapter.Label(),
		NumThreads: cfg.NumThreads,
	}
	metrics.RecordRun(res.Framework, seconds, cfg.Iterations)
	logger.Log.Info("benchmark complete",
		"framework", res.Framework,
		"qps", res.QPS,
		"elapsed", res.Elapsed)
	return res, nil
}
