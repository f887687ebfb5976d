// Package rollavg provides a fixed-size rolling average window.
package rollavg

type Window struct {
	vals []float64
	next int
	size int
	full bool
}

func New(size int) *Window {
	if size <= 0 {
		size = 1
	}
	return &Window{vals: make([]float64, size), size: size}
}

func (w *Window) Add(v float64) {
	w.vals[w.next] = v
	w.next++
	if w.next == w.size {
		w.next = 0
		w.full = true
	}
}

// Len is the number of samples currently in the window.
func (w *Window) Len() int {
	if w.full {
		return w.size
	}
	return w.next
}

// Ready reports whether at least one sample has been added.
func (w *Window) Ready() bool { return w.Len() > 0 }

// Mean returns the average over the window, 0 when empty.
func (w *Window) Mean() float64 {
	n := w.Len()
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.vals[:n] {
		sum += v
	}
	return sum / float64(n)
}
