// Package benchmark keeps a bounded rolling window of inference latencies
// and derives an average and a stability heuristic from it.
package benchmark

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MaxSamples is the size of the sliding window
const MaxSamples = 20

// StabilityThreshold is the maximum (max-min)/average spread of a stable window
const StabilityThreshold = 0.25

// Benchmark is a FIFO window of at most MaxSamples latency samples in
// milliseconds. The zero value is an empty window. Copies are independent.
type Benchmark struct {
	ring  [MaxSamples]float64
	start int
	count int
}

// New creates a window holding the most recent MaxSamples of samples
func New(samples ...float64) Benchmark {
	var b Benchmark
	for _, s := range samples {
		b.Record(s)
	}
	return b
}

// Record appends a sample, evicting the oldest once the window is full
func (b *Benchmark) Record(durationMs float64) {
	if b.count < MaxSamples {
		b.ring[(b.start+b.count)%MaxSamples] = durationMs
		b.count++
		return
	}
	b.ring[b.start] = durationMs
	b.start = (b.start + 1) % MaxSamples
}

// SampleCount returns the number of samples in the window
func (b Benchmark) SampleCount() int {
	return b.count
}

// Samples returns the window in chronological order
func (b Benchmark) Samples() []float64 {
	out := make([]float64, b.count)
	for i := range out {
		out[i] = b.ring[(b.start+i)%MaxSamples]
	}
	return out
}

// LastSample returns the most recent sample
func (b Benchmark) LastSample() (float64, bool) {
	if b.count == 0 {
		return 0, false
	}
	return b.ring[(b.start+b.count-1)%MaxSamples], true
}

// Average returns the arithmetic mean, or false when the window is empty
func (b Benchmark) Average() (float64, bool) {
	if b.count == 0 {
		return 0, false
	}
	return stat.Mean(b.Samples(), nil), true
}

// IsStable reports whether at least three samples exist, the average is
// positive and the spread relative to the average is below 25%
func (b Benchmark) IsStable() bool {
	if b.count < 3 {
		return false
	}
	avg, _ := b.Average()
	if avg <= 0 {
		return false
	}
	samples := b.Samples()
	spread := (floats.Max(samples) - floats.Min(samples)) / avg
	return spread < StabilityThreshold
}

// FormatSummary renders average, last sample and stability
func (b Benchmark) FormatSummary() string {
	avg, ok := b.Average()
	if !ok {
		return "no benchmark yet"
	}
	stability := "warming up"
	if b.IsStable() {
		stability = "stable"
	}
	last, _ := b.LastSample()
	return fmt.Sprintf("Avg %.1f ms · Last %.1f ms · %s", avg, last, stability)
}

// Equal reports whether two windows hold the same samples in the same order
func (b Benchmark) Equal(o Benchmark) bool {
	return floats.Equal(b.Samples(), o.Samples())
}

// Report is a serializable snapshot of a window
type Report struct {
	Samples   []float64 `json:"samples"`
	Count     int       `json:"count"`
	AverageMs *float64  `json:"average_ms,omitempty"`
	LastMs    *float64  `json:"last_ms,omitempty"`
	Stable    bool      `json:"stable"`
	Summary   string    `json:"summary"`
}

// Report builds a serializable snapshot
func (b Benchmark) Report() Report {
	r := Report{
		Samples: b.Samples(),
		Count:   b.count,
		Stable:  b.IsStable(),
		Summary: b.FormatSummary(),
	}
	if avg, ok := b.Average(); ok {
		r.AverageMs = &avg
	}
	if last, ok := b.LastSample(); ok {
		r.LastMs = &last
	}
	return r
}

// Tracker serializes writers to a Benchmark
type Tracker struct {
	mu sync.Mutex
	b  Benchmark
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record appends a sample
func (t *Tracker) Record(durationMs float64) {
	t.mu.Lock()
	t.b.Record(durationMs)
	t.mu.Unlock()
}

// Snapshot returns a copy of the current window
func (t *Tracker) Snapshot() Benchmark {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.b
}
