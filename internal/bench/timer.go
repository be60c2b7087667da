package bench

import "time"

// Measure invokes body n times sequentially and returns the wall-clock
// time the whole loop took. Wall clock, not CPU time: the benchmark's
// subject is end-to-end latency including backend-internal threading. The
// loop lives here so every adapter is measured with identical looping
// overhead. Any body failure aborts measurement; partial timings are never
// reported.
func Measure(body func() error, n int) (time.Duration, error) {
	start := time.Now()
	for i := 0; i < n; i++ {
		if err := body(); err != nil {
			return 0, err
		}
	}
	return time.Since(start), nil
}
