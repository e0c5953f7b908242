package engine

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/menta2k/leafscan/pkg/benchmark"
	"github.com/menta2k/leafscan/pkg/types"
)

// MockLabels are the labels MockEngine chooses from
var MockLabels = []string{"healthy", "disease", "unknown"}

const (
	// MockConfidence is the confidence of every MockEngine result
	MockConfidence = 0.8
	// DefaultMockPrepareDelay simulates model loading
	DefaultMockPrepareDelay = 50 * time.Millisecond
)

// MockEngine maps input bytes to one of MockLabels by hash, without a model.
// The same bytes always produce the same label.
type MockEngine struct {
	PrepareDelay time.Duration

	prepared atomic.Bool
	tracker  *benchmark.Tracker
}

var _ Engine = (*MockEngine)(nil)

// NewMockEngine creates a MockEngine with the default prepare delay
func NewMockEngine() *MockEngine {
	return &MockEngine{
		PrepareDelay: DefaultMockPrepareDelay,
		tracker:      benchmark.NewTracker(),
	}
}

// Prepare sleeps for PrepareDelay the first time it is called
func (m *MockEngine) Prepare(ctx context.Context) error {
	if m.prepared.Load() {
		return nil
	}
	if m.PrepareDelay > 0 {
		timer := time.NewTimer(m.PrepareDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.prepared.Store(true)
	return nil
}

// RunInference returns MockLabels[fnv32a(data) % len(MockLabels)]
func (m *MockEngine) RunInference(_ context.Context, data []byte) (types.InferenceResult, error) {
	if !m.prepared.Load() {
		return types.InferenceResult{}, ErrModelNotPrepared
	}

	start := time.Now()
	index := MockIndex(data)
	label := MockLabels[index]
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	meta := map[string]string{
		types.MetaSource:          "mock",
		types.MetaRawLabel:        strconv.Itoa(index),
		types.MetaMappedLabel:     label,
		types.MetaInferenceTimeMs: strconv.FormatFloat(elapsed, 'f', 2, 64),
	}
	m.tracker.Record(elapsed)
	return types.NewInferenceResult(label, MockConfidence, meta, &elapsed), nil
}

// BenchmarkMetrics returns a snapshot of the recorded latencies
func (m *MockEngine) BenchmarkMetrics() benchmark.Benchmark {
	return m.tracker.Snapshot()
}

// Close is a no-op
func (m *MockEngine) Close() error { return nil }

// MockIndex returns the MockLabels index chosen for data
func MockIndex(data []byte) int {
	h := fnv.New32a()
	h.Write(data)
	return int(h.Sum32() % uint32(len(MockLabels)))
}
