// Package profile writes the native engine's optional profiling artifacts.
// Each profiling scope wraps exactly one extra forward call, outside the
// timed region, so profiling can never influence the reported QPS.
package profile

import (
	"fmt"
	"os"
	"runtime/pprof"
	"runtime/trace"
)

// ArtifactName encodes the run parameters into a profiling artifact
// filename, e.g. "longbow_gauge_1_16_4.pprof".
func ArtifactName(label string, batchSize, seqLen, numThreads int, ext string) string {
	return fmt.Sprintf("%s_%d_%d_%d.%s", label, batchSize, seqLen, numThreads, ext)
}

// CPUProfile runs body once under the CPU profiler and writes the profile
// to name in the current working directory.
func CPUProfile(name string, body func() error) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create cpu profile %s: %w", name, err)
	}
	defer f.Close()

	if err := pprof.StartCPUProfile(f); err != nil {
		return fmt.Errorf("start cpu profile: %w", err)
	}
	bodyErr := body()
	pprof.StopCPUProfile()
	if bodyErr != nil {
		return bodyErr
	}
	return nil
}

// ExecutionTrace runs body once under the execution tracer and writes the
// trace to name in the current working directory.
func ExecutionTrace(name string, body func() error) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create trace %s: %w", name, err)
	}
	defer f.Close()

	if err := trace.Start(f); err != nil {
		return fmt.Errorf("start trace: %w", err)
	}
	bodyErr := body()
	trace.Stop()
	if bodyErr != nil {
		return bodyErr
	}
	return nil
}
