package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

// CallLatency summarizes recent latencies of one judge call.
type CallLatency struct {
	Call     string  `json:"call"`
	Samples  int     `json:"samples"`
	Failures int     `json:"failures"`
	LastMS   float64 `json:"last_ms"`
	AvgMS    float64 `json:"avg_ms"`
	P50MS    float64 `json:"p50_ms"`
	P95MS    float64 `json:"p95_ms"`
}

type LatencySnapshot struct {
	GeneratedAt time.Time     `json:"generated_at"`
	WindowSize  int           `json:"window_size"`
	Calls       []CallLatency `json:"calls"`
}

// LatencyWindow keeps the last N successful latencies per call in a ring.
type LatencyWindow struct {
	mu       sync.Mutex
	size     int
	rings    map[string]*ring
	failures map[string]int
}

type ring struct {
	values []float64
	next   int
	full   bool
	last   float64
}

func NewLatencyWindow(size int) *LatencyWindow {
	if size <= 0 {
		size = 128
	}
	return &LatencyWindow{
		size:     size,
		rings:    make(map[string]*ring),
		failures: make(map[string]int),
	}
}

func (w *LatencyWindow) Observe(call string, d time.Duration) {
	if call == "" || d < 0 {
		return
	}
	ms := float64(d) / float64(time.Millisecond)
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.rings[call]
	if !ok {
		r = &ring{values: make([]float64, w.size)}
		w.rings[call] = r
	}
	r.values[r.next] = ms
	r.last = ms
	r.next = (r.next + 1) % len(r.values)
	if r.next == 0 {
		r.full = true
	}
}

func (w *LatencyWindow) ObserveFailure(call string) {
	if call == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures[call]++
}

func (w *LatencyWindow) Snapshot() LatencySnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	names := make(map[string]struct{}, len(w.rings)+len(w.failures))
	for name := range w.rings {
		names[name] = struct{}{}
	}
	for name := range w.failures {
		names[name] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	out := LatencySnapshot{GeneratedAt: time.Now().UTC(), WindowSize: w.size, Calls: make([]CallLatency, 0, len(sorted))}
	for _, name := range sorted {
		c := CallLatency{Call: name, Failures: w.failures[name]}
		if r := w.rings[name]; r != nil {
			n := r.next
			if r.full {
				n = len(r.values)
			}
			samples := append([]float64(nil), r.values[:n]...)
			sort.Float64s(samples)
			sum := 0.0
			for _, v := range samples {
				sum += v
			}
			c.Samples = n
			c.LastMS = round2(r.last)
			if n > 0 {
				c.AvgMS = round2(sum / float64(n))
			}
			c.P50MS = round2(quantile(samples, 0.50))
			c.P95MS = round2(quantile(samples, 0.95))
		}
		out.Calls = append(out.Calls, c)
	}
	return out
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := q * float64(len(sorted)-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
