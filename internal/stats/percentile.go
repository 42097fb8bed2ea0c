// Package stats keeps small rolling summaries for runtime reporting.
package stats

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Percentiles calculates multiple percentiles (0-100) at once
func Percentiles(values []float64, ps []float64) []float64 {
	results := make([]float64, len(ps))
	if len(values) == 0 {
		return results
	}

	// Sort once for efficiency
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	for i, p := range ps {
		results[i] = quantileSorted(sorted, clamp(p, 0, 100)/100.0)
	}
	return results
}

func quantileSorted(sorted []float64, q float64) float64 {
	q = clamp(q, 0, 1)
	index := q * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LatencyWindow holds the most recent request durations
type LatencyWindow struct {
	mu      sync.Mutex
	samples []float64 // milliseconds, ring buffer
	next    int
	full    bool
}

// NewLatencyWindow creates a window holding up to size samples
func NewLatencyWindow(size int) *LatencyWindow {
	if size <= 0 {
		size = 1
	}
	return &LatencyWindow{samples: make([]float64, size)}
}

// Observe records one duration
func (w *LatencyWindow) Observe(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.next] = float64(d) / float64(time.Millisecond)
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

// Summary returns the p50 and p95 latency in milliseconds. Both are zero
// when nothing has been observed.
func (w *LatencyWindow) Summary() (p50, p95 float64) {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	values := append([]float64(nil), w.samples[:n]...)
	w.mu.Unlock()

	ps := Percentiles(values, []float64{50, 95})
	return ps[0], ps[1]
}
