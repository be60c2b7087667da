// Package export produces the interchange model artifact in a disposable
// subordinate process. Export runs out-of-process because artifact
// serialization churns through allocator and library state that must not
// leak into the measuring process; the only channels back are the artifact
// file and one JSON line on the worker's stdout.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/23skdu/longbow-gauge/internal/arrowrt"
	"github.com/23skdu/longbow-gauge/internal/logger"
	"github.com/23skdu/longbow-gauge/internal/metrics"
	"github.com/23skdu/longbow-gauge/internal/model"
)

// WorkerCommand is the hidden CLI subcommand that runs the export inside
// the subordinate process.
const WorkerCommand = "export-worker"

// DefaultArtifactPath is the fixed well-known location the artifact is
// written to and overwritten on every interchange run. Concurrent runs
// against this path are not supported.
func DefaultArtifactPath() string {
	return filepath.Join(os.TempDir(), "gauge_export.arrow")
}

// Error wraps a failed export with the worker's stderr. A corrupted export
// cannot safely produce a trustworthy number, so there is no retry.
type Error struct {
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("export failed: %v\nstderr: %s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("export failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Exporter launches the single-use worker process.
type Exporter struct {
	// WorkerPath is the binary to exec; empty means re-exec the current
	// executable with WorkerCommand.
	WorkerPath string
	// ArtifactPath overrides the artifact location; empty means
	// DefaultArtifactPath.
	ArtifactPath string
}

type workerOutput struct {
	VocabSize int `json:"vocab_size"`
}

// Export runs the worker synchronously and waits for completion; the call
// is blocking and non-cancellable. It returns the artifact path and the
// vocabulary size reported by the worker.
func (e *Exporter) Export(modelID string, seqLen, batchSize int) (string, int, error) {
	worker := e.WorkerPath
	if worker == "" {
		self, err := os.Executable()
		if err != nil {
			return "", 0, fmt.Errorf("resolve worker binary: %w", err)
		}
		worker = self
	}
	path := e.ArtifactPath
	if path == "" {
		path = DefaultArtifactPath()
	}

	cmd := exec.Command(worker, WorkerCommand,
		"--model", modelID,
		"--seq-len", strconv.Itoa(seqLen),
		"--batch-size", strconv.Itoa(batchSize),
		"--out", path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Log.Info("starting export worker",
		"model", modelID, "artifact", path,
		"seq_len", seqLen, "batch_size", batchSize)

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return "", 0, &Error{Stderr: stderr.String(), Err: err}
	}
	metrics.RecordExport(time.Since(start).Seconds())

	var out workerOutput
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &out); err != nil {
		return "", 0, &Error{
			Stderr: stderr.String(),
			Err:    fmt.Errorf("parse worker output %q: %w", stdout.String(), err),
		}
	}
	if out.VocabSize <= 0 {
		return "", 0, &Error{
			Stderr: stderr.String(),
			Err:    fmt.Errorf("worker reported invalid vocab_size %d", out.VocabSize),
		}
	}

	logger.Log.Info("export worker finished",
		"vocab_size", out.VocabSize,
		"elapsed", time.Since(start).Seconds())
	return path, out.VocabSize, nil
}

// RunWorker is the worker-side entry point: it resolves the model, writes
// the artifact, and emits the vocab size as one JSON line on out. It runs
// inside the subordinate process, never in the measuring process.
func RunWorker(out io.Writer, modelID string, seqLen, batchSize int, artifactPath string) error {
	m, err := model.Resolve(modelID)
	if err != nil {
		return err
	}
	if err := arrowrt.WriteModel(artifactPath, m, batchSize, seqLen); err != nil {
		return err
	}
	return json.NewEncoder(out).Encode(workerOutput{VocabSize: m.Config.VocabSize})
}
