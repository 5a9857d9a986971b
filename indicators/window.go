package indicators

// window is a fixed size ring of samples with a running sum and sum of
// squared deviations (m2), so mean and variance are O(1) per update.
// Both are recomputed from the ring every len(buf) pushes, and whenever
// an eviction cancels more than half of m2, so rounding never accumulates.
type window struct {
	buf   []float64
	next  int
	n     int
	since int
	sum   float64
	m2    float64
}

func newWindow(size int) *window {
	return &window{buf: make([]float64, size)}
}

func (w *window) push(v float64) {
	stale := false
	prev := w.mean()
	if w.n < len(w.buf) {
		w.n++
		w.sum += v
		w.m2 += (v - prev) * (v - w.mean())
	} else {
		old := w.buf[w.next]
		prevM2 := w.m2
		w.sum += v - old
		w.m2 += (v - old) * (v - w.mean() + old - prev)
		stale = w.m2 < prevM2/2
	}
	w.buf[w.next] = v
	w.next = (w.next + 1) % len(w.buf)

	w.since++
	if stale || w.since >= len(w.buf) {
		w.resync()
	}
}

// resync recomputes sum and m2 exactly from the held samples. Until the
// ring is full they occupy buf[:n].
func (w *window) resync() {
	held := w.buf[:w.n]
	sum := 0.0
	for _, x := range held {
		sum += x
	}
	m := sum / float64(w.n)
	m2 := 0.0
	for _, x := range held {
		d := x - m
		m2 += d * d
	}
	w.sum, w.m2, w.since = sum, m2, 0
}

func (w *window) full() bool {
	return w.n == len(w.buf)
}

func (w *window) mean() float64 {
	if w.n == 0 {
		return 0
	}
	return w.sum / float64(w.n)
}

// variance is the population variance of the samples held.
func (w *window) variance() float64 {
	if w.n == 0 || w.m2 < 0 {
		return 0
	}
	return w.m2 / float64(w.n)
}

func (w *window) reset() {
	for i := range w.buf {
		w.buf[i] = 0
	}
	w.next, w.n, w.since = 0, 0, 0
	w.sum, w.m2 = 0, 0
}
