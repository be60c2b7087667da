package bench

// Result is the record produced by exactly one benchmark run, and the
// harness's sole externally consumed output. JSON field names are the wire
// contract; downstream comparison tooling keys on them.
type Result struct {
	QPS        float64 `json:"QPS"`
	Elapsed    float64 `json:"elapsed"`
	N          int     `json:"n"`
	BatchSize  int     `json:"batch_size"`
	SeqLen     int     `json:"seq_len"`
	Framework  string  `json:"framework"`
	NumThreads int     `json:"n_threads"`
}
