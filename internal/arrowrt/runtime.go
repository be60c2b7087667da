package arrowrt

import (
	"fmt"
	"os"
	"strconv"

	"github.com/23skdu/longbow-gauge/internal/compute"
	"github.com/23skdu/longbow-gauge/internal/engine"
	"github.com/23skdu/longbow-gauge/internal/input"
	"github.com/23skdu/longbow-gauge/internal/model"
)

// Device profiles supported by this runtime build.
const (
	DeviceCPU          = "cpu"
	DeviceOptimizedCPU = "optimized-cpu"
)

// Environment variables consulted for the worker count. This runtime has
// no in-process thread-count API: callers configure threading through the
// process environment before Prepare, as they would for an external
// runtime library.
const (
	EnvNumThreads    = "OMP_NUM_THREADS"
	EnvMKLNumThreads = "MKL_NUM_THREADS"
)

// Runtime loads exported model artifacts and prepares execution sessions.
type Runtime struct{}

func NewRuntime() *Runtime {
	return &Runtime{}
}

// SupportsDevice reports whether the device profile is available in this
// runtime build.
func (*Runtime) SupportsDevice(device string) bool {
	return device == DeviceCPU || device == DeviceOptimizedCPU
}

// Session is a ready-to-call execution handle over a loaded artifact.
type Session struct {
	device  string
	threads int

	m   *model.Model
	ctx *compute.Context
	eng *engine.Engine
}

// Prepare loads the artifact at path and builds an execution-optimized
// session for the device profile. The requested input shape must match the
// shape the artifact was exported with; the interchange graph is fixed.
func (r *Runtime) Prepare(path, device string, batchSize, seqLen int) (*Session, error) {
	if !r.SupportsDevice(device) {
		return nil, fmt.Errorf("device %q not supported by this runtime", device)
	}

	m, exportBatch, exportSeq, err := ReadModel(path)
	if err != nil {
		return nil, err
	}
	if exportBatch != batchSize || exportSeq != seqLen {
		return nil, fmt.Errorf("artifact exported for shape (%d, %d), requested (%d, %d)",
			exportBatch, exportSeq, batchSize, seqLen)
	}

	s := &Session{
		device:  device,
		threads: threadsFromEnv(),
		m:       m,
	}
	switch device {
	case DeviceOptimizedCPU:
		eng, err := engine.New(m, s.threads)
		if err != nil {
			return nil, err
		}
		s.eng = eng
	default:
		s.ctx = compute.NewContext(s.threads)
	}
	return s, nil
}

// Run executes one forward pass over the batch.
func (s *Session) Run(b *input.Batch) error {
	if s.eng != nil {
		_, err := s.eng.Forward(b)
		return err
	}
	_, err := s.m.Forward(s.ctx, b)
	return err
}

// Device returns the profile the session was prepared for.
func (s *Session) Device() string {
	return s.device
}

// Threads returns the worker count resolved from the environment at
// prepare time.
func (s *Session) Threads() int {
	return s.threads
}

func threadsFromEnv() int {
	for _, key := range []string{EnvNumThreads, EnvMKLNumThreads} {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 1 {
				return n
			}
		}
	}
	return 1
}
