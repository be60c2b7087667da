// Package input synthesizes token-id batches for benchmark runs. A batch is
// generated once per run and reused across every iteration of the timed
// loop, so input generation never contributes to measured latency.
package input

import (
	"math/rand"
)

// Batch is a row-major (BatchSize x SeqLen) array of token ids.
type Batch struct {
	IDs       []int32
	BatchSize int
	SeqLen    int
}

// Synthesize builds a batch of ids drawn uniformly from [0, vocabSize).
func Synthesize(batchSize, seqLen, vocabSize int) *Batch {
	ids := make([]int32, batchSize*seqLen)
	for i := range ids {
		ids[i] = int32(rand.Intn(vocabSize))
	}
	return &Batch{
		IDs:       ids,
		BatchSize: batchSize,
		SeqLen:    seqLen,
	}
}

// Rows returns the number of token positions in the batch.
func (b *Batch) Rows() int {
	return b.BatchSize * b.SeqLen
}
