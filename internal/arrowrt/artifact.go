// Package arrowrt is the interchange runtime: it defines the Arrow IPC
// model artifact format and prepares execution-optimized handles for a
// device profile. The artifact is the only coupling between the export
// process and the measuring process.
package arrowrt

import (
	"fmt"
	"os"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-gauge/internal/model"
)

// Schema metadata keys. Hyperparameters travel in the schema so a reader
// can reconstruct the model without a side channel.
const (
	metaVocabSize        = "vocab_size"
	metaHiddenSize       = "hidden_size"
	metaNumLayers        = "num_layers"
	metaNumHeads         = "num_heads"
	metaIntermediateSize = "intermediate_size"
	metaMaxPositions     = "max_positions"
	metaEps              = "eps"
	metaExportBatchSize  = "export_batch_size"
	metaExportSeqLen     = "export_seq_len"
)

func artifactSchema(cfg model.Config, exportBatch, exportSeq int) *arrow.Schema {
	md := arrow.NewMetadata(
		[]string{
			metaVocabSize, metaHiddenSize, metaNumLayers, metaNumHeads,
			metaIntermediateSize, metaMaxPositions, metaEps,
			metaExportBatchSize, metaExportSeqLen,
		},
		[]string{
			strconv.Itoa(cfg.VocabSize),
			strconv.Itoa(cfg.HiddenSize),
			strconv.Itoa(cfg.NumLayers),
			strconv.Itoa(cfg.NumHeads),
			strconv.Itoa(cfg.IntermediateSize),
			strconv.Itoa(cfg.MaxPositions),
			strconv.FormatFloat(float64(cfg.Eps), 'g', -1, 32),
			strconv.Itoa(exportBatch),
			strconv.Itoa(exportSeq),
		},
	)
	return arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "dims", Type: arrow.ListOf(arrow.PrimitiveTypes.Int64)},
		{Name: "data", Type: arrow.ListOf(arrow.PrimitiveTypes.Float32)},
	}, &md)
}

// WriteModel serializes m into an Arrow IPC file at path: one record
// batch, one row per tensor. The export input shape is recorded so the
// runtime can reject shape-mismatched loads.
func WriteModel(path string, m *model.Model, exportBatch, exportSeq int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer f.Close()

	schema := artifactSchema(m.Config, exportBatch, exportSeq)
	pool := memory.DefaultAllocator

	bldr := array.NewRecordBuilder(pool, schema)
	defer bldr.Release()

	nameB := bldr.Field(0).(*array.StringBuilder)
	dimsB := bldr.Field(1).(*array.ListBuilder)
	dimsV := dimsB.ValueBuilder().(*array.Int64Builder)
	dataB := bldr.Field(2).(*array.ListBuilder)
	dataV := dataB.ValueBuilder().(*array.Float32Builder)

	for _, t := range m.Tensors() {
		nameB.Append(t.Name)
		dimsB.Append(true)
		dimsV.AppendValues(t.Dims, nil)
		dataB.Append(true)
		dataV.AppendValues(t.Data, nil)
	}

	rec := bldr.NewRecord()
	defer rec.Release()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err != nil {
		return fmt.Errorf("open ipc writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("write record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close ipc writer: %w", err)
	}
	return f.Sync()
}

// ReadModel loads an artifact back into a Model plus the input shape it
// was exported with.
func ReadModel(path string) (*model.Model, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	rdr, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open ipc reader: %w", err)
	}
	defer rdr.Close()

	md := rdr.Schema().Metadata()
	cfg := model.Config{}
	var exportBatch, exportSeq int
	intFields := []struct {
		key string
		dst *int
	}{
		{metaVocabSize, &cfg.VocabSize},
		{metaHiddenSize, &cfg.HiddenSize},
		{metaNumLayers, &cfg.NumLayers},
		{metaNumHeads, &cfg.NumHeads},
		{metaIntermediateSize, &cfg.IntermediateSize},
		{metaMaxPositions, &cfg.MaxPositions},
		{metaExportBatchSize, &exportBatch},
		{metaExportSeqLen, &exportSeq},
	}
	for _, fld := range intFields {
		v, err := metaInt(md, fld.key)
		if err != nil {
			return nil, 0, 0, err
		}
		*fld.dst = v
	}
	eps, err := metaFloat(md, metaEps)
	if err != nil {
		return nil, 0, 0, err
	}
	cfg.Eps = eps

	tensors := make(map[string][]float32)
	for {
		rec, err := rdr.Read()
		if err != nil {
			break
		}
		names := rec.Column(0).(*array.String)
		data := rec.Column(2).(*array.List)
		values := data.ListValues().(*array.Float32).Float32Values()
		for i := 0; i < int(rec.NumRows()); i++ {
			start, end := data.ValueOffsets(i)
			buf := make([]float32, end-start)
			copy(buf, values[start:end])
			tensors[names.Value(i)] = buf
		}
	}

	m, err := model.FromTensors(cfg, tensors)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("artifact %s: %w", path, err)
	}
	return m, exportBatch, exportSeq, nil
}

func metaInt(md arrow.Metadata, key string) (int, error) {
	idx := md.FindKey(key)
	if idx < 0 {
		return 0, fmt.Errorf("artifact metadata missing %q", key)
	}
	v, err := strconv.Atoi(md.Values()[idx])
	if err != nil {
		return 0, fmt.Errorf("artifact metadata %q: %w", key, err)
	}
	return v, nil
}

func metaFloat(md arrow.Metadata, key string) (float32, error) {
	idx := md.FindKey(key)
	if idx < 0 {
		return 0, fmt.Errorf("artifact metadata missing %q", key)
	}
	v, err := strconv.ParseFloat(md.Values()[idx], 32)
	if err != nil {
		return 0, fmt.Errorf("artifact metadata %q: %w", key, err)
	}
	return float32(v), nil
}
