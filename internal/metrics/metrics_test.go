package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(BenchmarkRunsTotal.WithLabelValues("test_fw"))
	RecordRun("test_fw", 1.5, 1000)
	after := testutil.ToFloat64(BenchmarkRunsTotal.WithLabelValues("test_fw"))
	if after != before+1 {
		t.Errorf("runs counter %v -> %v, want +1", before, after)
	}
}

func TestRecordRunZeroIterations(t *testing.T) {
	// Guard against division by zero in the latency observation.
	RecordRun("test_fw_zero", 1.0, 0)
}

func TestRecordExport(t *testing.T) {
	RecordExport(0.25)
	RecordExport(0.5)
}
