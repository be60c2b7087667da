package bench

import (
	"encoding/json"
	"io"
)

// Reporter serializes results, one self-describing JSON line each. No
// buffering across runs and no file output.
type Reporter struct {
	w io.Writer
}

func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Emit writes the record followed by a newline.
func (r *Reporter) Emit(res *Result) error {
	return json.NewEncoder(r.w).Encode(res)
}
