package types

import "maps"

// Metadata keys attached to every InferenceResult produced by the engine
const (
	MetaRawLabel        = "rawLabel"
	MetaMappedLabel     = "mappedLabel"
	MetaClassIndex      = "classIndex"
	MetaInferenceTimeMs = "inferenceTimeMs"
	MetaSource          = "source"
)

// InferenceResult is the decoded outcome of a single inference.
// Values are built once by NewInferenceResult and never mutated afterwards.
type InferenceResult struct {
	Summary            string            `json:"summary"`
	Confidence         float64           `json:"confidence"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	TimingMilliseconds *float64          `json:"timing_ms,omitempty"`
}

// NewInferenceResult creates a result, taking a private copy of metadata
func NewInferenceResult(summary string, confidence float64, metadata map[string]string, timingMs *float64) InferenceResult {
	var timing *float64
	if timingMs != nil {
		v := *timingMs
		timing = &v
	}
	return InferenceResult{
		Summary:            summary,
		Confidence:         confidence,
		Metadata:           maps.Clone(metadata),
		TimingMilliseconds: timing,
	}
}

// Timing returns the recorded timing and whether one was set
func (r InferenceResult) Timing() (float64, bool) {
	if r.TimingMilliseconds == nil {
		return 0, false
	}
	return *r.TimingMilliseconds, true
}

// Meta returns a metadata value, or "" when absent
func (r InferenceResult) Meta(key string) string {
	return r.Metadata[key]
}

// Equal reports whether two results carry the same values.
// Nil and empty metadata maps compare equal.
func (r InferenceResult) Equal(o InferenceResult) bool {
	if r.Summary != o.Summary || r.Confidence != o.Confidence {
		return false
	}
	if !maps.Equal(r.Metadata, o.Metadata) {
		return false
	}
	rt, rok := r.Timing()
	ot, ook := o.Timing()
	return rok == ook && rt == ot
}
