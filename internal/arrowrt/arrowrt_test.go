package arrowrt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-gauge/internal/compute"
	"github.com/23skdu/longbow-gauge/internal/input"
	"github.com/23skdu/longbow-gauge/internal/model"
)

func tinyModel(seed int64) *model.Model {
	return model.NewSeeded(model.Config{
		VocabSize:        64,
		HiddenSize:       16,
		NumLayers:        2,
		NumHeads:         2,
		IntermediateSize: 32,
		MaxPositions:     32,
		Eps:              1e-12,
	}, seed)
}

func writeTiny(t *testing.T, seed int64, batch, seq int) (string, *model.Model) {
	t.Helper()
	m := tinyModel(seed)
	path := filepath.Join(t.TempDir(), "model.arrow")
	require.NoError(t, WriteModel(path, m, batch, seq))
	return path, m
}

func TestArtifactRoundTrip(t *testing.T) {
	path, m := writeTiny(t, 7, 2, 8)

	got, exportBatch, exportSeq, err := ReadModel(path)
	require.NoError(t, err)
	assert.Equal(t, m.Config, got.Config)
	assert.Equal(t, 2, exportBatch)
	assert.Equal(t, 8, exportSeq)

	assert.Equal(t, m.Weights.TokenEmb, got.Weights.TokenEmb)
	assert.Equal(t, m.Weights.Layers[1].W2, got.Weights.Layers[1].W2)
	assert.Equal(t, m.Weights.Layers[0].AttnNormG, got.Weights.Layers[0].AttnNormG)

	// The reloaded model must compute the same function.
	b := input.Synthesize(2, 8, m.Config.VocabSize)
	ctx := compute.NewContext(1)
	want, err := m.Forward(ctx, b)
	require.NoError(t, err)
	out, err := got.Forward(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

func TestReadModelMissingFile(t *testing.T) {
	_, _, _, err := ReadModel(filepath.Join(t.TempDir(), "absent.arrow"))
	require.Error(t, err)
}

func TestReadModelNotAnArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.arrow")
	require.NoError(t, os.WriteFile(path, []byte("not an arrow file"), 0o644))
	_, _, _, err := ReadModel(path)
	require.Error(t, err)
}

func TestRuntimeSupportsDevice(t *testing.T) {
	rt := NewRuntime()
	assert.True(t, rt.SupportsDevice(DeviceCPU))
	assert.True(t, rt.SupportsDevice(DeviceOptimizedCPU))
	assert.False(t, rt.SupportsDevice("cuda"))
	assert.False(t, rt.SupportsDevice(""))
}

func TestPrepareAndRun(t *testing.T) {
	path, m := writeTiny(t, 3, 1, 8)
	rt := NewRuntime()

	for _, device := range []string{DeviceCPU, DeviceOptimizedCPU} {
		s, err := rt.Prepare(path, device, 1, 8)
		require.NoError(t, err, device)
		assert.Equal(t, device, s.Device())

		b := input.Synthesize(1, 8, m.Config.VocabSize)
		require.NoError(t, s.Run(b), device)
	}
}

func TestPrepareShapeMismatch(t *testing.T) {
	path, _ := writeTiny(t, 3, 1, 8)
	rt := NewRuntime()

	_, err := rt.Prepare(path, DeviceCPU, 1, 16)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exported for shape")

	_, err = rt.Prepare(path, DeviceCPU, 2, 8)
	require.Error(t, err)
}

func TestPrepareUnsupportedDevice(t *testing.T) {
	path, _ := writeTiny(t, 3, 1, 8)
	_, err := NewRuntime().Prepare(path, "cuda", 1, 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestThreadsFromEnv(t *testing.T) {
	t.Setenv(EnvNumThreads, "")
	t.Setenv(EnvMKLNumThreads, "")
	assert.Equal(t, 1, threadsFromEnv())

	t.Setenv(EnvNumThreads, "4")
	assert.Equal(t, 4, threadsFromEnv())

	// MKL variable is the fallback.
	t.Setenv(EnvNumThreads, "")
	t.Setenv(EnvMKLNumThreads, "2")
	assert.Equal(t, 2, threadsFromEnv())

	t.Setenv(EnvNumThreads, "garbage")
	assert.Equal(t, 2, threadsFromEnv())

	t.Setenv(EnvNumThreads, "0")
	assert.Equal(t, 2, threadsFromEnv())
}

func TestPrepareReadsThreadsFromEnv(t *testing.T) {
	path, _ := writeTiny(t, 3, 1, 8)
	t.Setenv(EnvNumThreads, "3")
	t.Setenv(EnvMKLNumThreads, "3")

	s, err := NewRuntime().Prepare(path, DeviceOptimizedCPU, 1, 8)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Threads())
}
