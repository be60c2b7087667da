// Package bench is the benchmark orchestration core: the configuration
// contract shared by every backend, the setup/warm-up/measure protocol,
// and the timing and reporting contract that makes results comparable
// across backends.
package bench

import "fmt"

// Config fully determines a single benchmark run. It is passed by value
// and never mutated after validation.
type Config struct {
	// Model is the caller-supplied model identifier. The native engine
	// deliberately ignores it and benchmarks the canonical test model.
	Model      string
	SeqLen     int
	BatchSize  int
	Iterations int
	NumThreads int
	// Framework is the requested backend name, one of the registry keys.
	Framework string
	// Profile enables the native engine's untimed profiling passes.
	Profile bool
}

// Validate checks the numeric invariants. Framework membership is checked
// by the Runner against its adapter registry.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model identifier is required", ErrInvalidConfig)
	}
	if c.SeqLen < 1 {
		return fmt.Errorf("%w: invalid seq_len: %d (must be positive)", ErrInvalidConfig, c.SeqLen)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: invalid batch_size: %d (must be positive)", ErrInvalidConfig, c.BatchSize)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("%w: invalid iterations: %d (must be positive)", ErrInvalidConfig, c.Iterations)
	}
	if c.NumThreads < 1 {
		return fmt.Errorf("%w: invalid num_threads: %d (must be positive)", ErrInvalidConfig, c.NumThreads)
	}
	return nil
}
