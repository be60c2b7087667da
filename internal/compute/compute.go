package compute

import (
	"math"
	"sync"
)

// Context carries the worker count used by the parallel kernels and an
// optional buffer pool. Thread count is explicit per-context configuration,
// never a package-level global, so independent runs cannot interfere.
type Context struct {
	numThreads int

	mu     sync.Mutex
	pool   map[int][][]float32
	pooled bool
}

// NewContext returns a context whose kernels fan out over numThreads
// workers. Buffers are allocated fresh on every Get.
func NewContext(numThreads int) *Context {
	if numThreads < 1 {
		numThreads = 1
	}
	return &Context{numThreads: numThreads}
}

// NewPooledContext returns a context that additionally recycles scratch
// buffers between calls, keyed by length.
func NewPooledContext(numThreads int) *Context {
	c := NewContext(numThreads)
	c.pool = make(map[int][][]float32)
	c.pooled = true
	return c
}

func (c *Context) Threads() int {
	return c.numThreads
}

// Get returns a zeroed float32 buffer of length n, reusing a pooled buffer
// when available.
func (c *Context) Get(n int) []float32 {
	if !c.pooled {
		return make([]float32, n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	bufs := c.pool[n]
	if len(bufs) > 0 {
		buf := bufs[len(bufs)-1]
		c.pool[n] = bufs[:len(bufs)-1]
		for i := range buf {
			buf[i] = 0
		}
		return buf
	}
	return make([]float32, n)
}

// Put returns a buffer to the pool. No-op for non-pooled contexts.
func (c *Context) Put(buf []float32) {
	if !c.pooled || buf == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(buf)
	c.pool[n] = append(c.pool[n], buf)
}

// ParallelChunks splits [0, n) into contiguous chunks, one per worker.
// With one thread the body runs inline, so serial execution has no
// goroutine overhead.
func ParallelChunks(threads, n int, body func(start, end int)) {
	if threads <= 1 || n <= 1 {
		body(0, n)
		return
	}
	chunk := (n + threads - 1) / threads
	var wg sync.WaitGroup
	for i := 0; i < n; i += chunk {
		end := i + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			body(start, end)
		}(i, end)
	}
	wg.Wait()
}

func (c *Context) parallelRows(rows int, body func(start, end int)) {
	ParallelChunks(c.numThreads, rows, body)
}

// MatMul computes out = a·b where a is (rows x inner), b is (inner x cols),
// out is (rows x cols), all row-major.
func (c *Context) MatMul(a []float32, rows, inner int, b []float32, cols int, out []float32) {
	c.parallelRows(rows, func(start, end int) {
		for r := start; r < end; r++ {
			aOff := r * inner
			oOff := r * cols
			for j := 0; j < cols; j++ {
				var sum float32
				for k := 0; k < inner; k++ {
					sum += a[aOff+k] * b[k*cols+j]
				}
				out[oOff+j] = sum
			}
		}
	})
}

// MatMulT computes out = a·bᵀ where a is (rows x inner), b is
// (bRows x inner), out is (rows x bRows). The transposed operand keeps both
// inner loops contiguous, which is why the engine stores weights
// pre-transposed.
func (c *Context) MatMulT(a []float32, rows, inner int, b []float32, bRows int, out []float32) {
	c.parallelRows(rows, func(start, end int) {
		for r := start; r < end; r++ {
			aRow := a[r*inner : (r+1)*inner]
			oOff := r * bRows
			for j := 0; j < bRows; j++ {
				bRow := b[j*inner : (j+1)*inner]
				var sum float32
				for k := 0; k < inner; k++ {
					sum += aRow[k] * bRow[k]
				}
				out[oOff+j] = sum
			}
		}
	})
}

// AddBias adds bias (length cols) to every row of x (rows x cols).
func (c *Context) AddBias(x []float32, rows, cols int, bias []float32) {
	c.parallelRows(rows, func(start, end int) {
		for r := start; r < end; r++ {
			off := r * cols
			for j := 0; j < cols; j++ {
				x[off+j] += bias[j]
			}
		}
	})
}

// Add accumulates b into a elementwise.
func (c *Context) Add(a, b []float32) {
	for i := range a {
		a[i] += b[i]
	}
}

// LayerNorm normalizes each row of x to zero mean and unit variance, then
// applies the affine parameters gamma and beta. Writes into out, which may
// alias x.
func (c *Context) LayerNorm(x []float32, rows, cols int, gamma, beta []float32, eps float32, out []float32) {
	c.parallelRows(rows, func(start, end int) {
		for r := start; r < end; r++ {
			off := r * cols
			var mean float32
			for j := 0; j < cols; j++ {
				mean += x[off+j]
			}
			mean /= float32(cols)
			var variance float32
			for j := 0; j < cols; j++ {
				d := x[off+j] - mean
				variance += d * d
			}
			variance /= float32(cols)
			inv := float32(1.0 / math.Sqrt(float64(variance)+float64(eps)))
			for j := 0; j < cols; j++ {
				out[off+j] = (x[off+j]-mean)*inv*gamma[j] + beta[j]
			}
		}
	})
}

// GeLU applies the tanh-approximated Gaussian error linear unit to in,
// writing to out. in and out may alias.
func (c *Context) GeLU(in, out []float32) {
	c.parallelRows(len(in), func(start, end int) {
		for i := start; i < end; i++ {
			x := in[i]
			inner := x * float32(0.7978845608) * (1.0 + 0.044715*x*x)
			out[i] = 0.5 * x * (1.0 + float32(math.Tanh(float64(inner))))
		}
	})
}

// Softmax normalizes x in place with max subtraction for stability.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	max := x[0]
	for _, v := range x {
		if v > max {
			max = v
		}
	}
	var sum float32
	for i := range x {
		x[i] = float32(math.Exp(float64(x[i] - max)))
		sum += x[i]
	}
	if sum > 0 {
		inv := 1.0 / sum
		for i := range x {
			x[i] *= inv
		}
	}
}

// SoftmaxRows applies Softmax to each row of x (rows x cols) in place.
func (c *Context) SoftmaxRows(x []float32, rows, cols int) {
	c.parallelRows(rows, func(start, end int) {
		for r := start; r < end; r++ {
			Softmax(x[r*cols : (r+1)*cols])
		}
	})
}

// Embedding gathers rows of table (vocab x dim) by id into out.
func (c *Context) Embedding(table []float32, dim int, ids []int32, out []float32) {
	for i, id := range ids {
		copy(out[i*dim:(i+1)*dim], table[int(id)*dim:(int(id)+1)*dim])
	}
}
