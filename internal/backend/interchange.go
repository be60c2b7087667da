package backend

import (
	"fmt"
	"os"
	"strconv"

	"github.com/23skdu/longbow-gauge/internal/arrowrt"
	"github.com/23skdu/longbow-gauge/internal/bench"
	"github.com/23skdu/longbow-gauge/internal/export"
	"github.com/23skdu/longbow-gauge/internal/input"
)

// UnsupportedDeviceError reports an interchange device profile missing
// from the installed runtime. Not retryable: the runtime has to be rebuilt
// with the profile enabled.
type UnsupportedDeviceError struct {
	Device string
}

func (e *UnsupportedDeviceError) Error() string {
	return fmt.Sprintf("interchange runtime does not support device %q, rebuild it", e.Device)
}

// Session is a prepared interchange execution handle.
type Session interface {
	Run(b *input.Batch) error
}

// Runtime is the slice of the interchange runtime the adapter needs;
// tests substitute stubs.
type Runtime interface {
	SupportsDevice(device string) bool
	Prepare(path, device string, batchSize, seqLen int) (Session, error)
}

// arrowRuntime adapts *arrowrt.Runtime to the Runtime interface.
type arrowRuntime struct {
	rt *arrowrt.Runtime
}

func (a arrowRuntime) SupportsDevice(device string) bool {
	return a.rt.SupportsDevice(device)
}

func (a arrowRuntime) Prepare(path, device string, batchSize, seqLen int) (Session, error) {
	return a.rt.Prepare(path, device, batchSize, seqLen)
}

// InterchangeAdapter benchmarks the interchange runtime on one device
// profile. The model is first exported to the interchange artifact by a
// subordinate process, so export-time state never contaminates the
// measuring process.
type InterchangeAdapter struct {
	device   string
	runtime  Runtime
	exporter *export.Exporter
}

// NewInterchangeAdapter builds the adapter for a device profile
// ("cpu" or "optimized-cpu").
func NewInterchangeAdapter(device string) *InterchangeAdapter {
	return &InterchangeAdapter{
		device:   device,
		runtime:  arrowRuntime{rt: arrowrt.NewRuntime()},
		exporter: &export.Exporter{},
	}
}

func (a *InterchangeAdapter) Label() string {
	return "arrow_rt_" + a.device
}

func (a *InterchangeAdapter) Setup(cfg bench.Config) (bench.Handle, error) {
	artifact, vocabSize, err := a.exporter.Export(cfg.Model, cfg.SeqLen, cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	if !a.runtime.SupportsDevice(a.device) {
		return nil, &UnsupportedDeviceError{Device: a.device}
	}

	// The runtime has no in-process thread API; thread count travels
	// through the environment and is read back at prepare time.
	threads := strconv.Itoa(cfg.NumThreads)
	if err := os.Setenv(arrowrt.EnvNumThreads, threads); err != nil {
		return nil, err
	}
	if err := os.Setenv(arrowrt.EnvMKLNumThreads, threads); err != nil {
		return nil, err
	}

	session, err := a.runtime.Prepare(artifact, a.device, cfg.BatchSize, cfg.SeqLen)
	if err != nil {
		return nil, fmt.Errorf("prepare %s session: %w", a.device, err)
	}

	batch := input.Synthesize(cfg.BatchSize, cfg.SeqLen, vocabSize)
	return invokeFunc(func() error {
		return session.Run(batch)
	}), nil
}
