package engine

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/menta2k/leafscan/pkg/labels"
	"github.com/menta2k/leafscan/pkg/model"
	"github.com/menta2k/leafscan/pkg/types"
)

// decode turns a model output into a result. Every model.Output variant
// must have a case here.
func decode(out model.Output, mapper *labels.Mapper, elapsedMs float64) (types.InferenceResult, error) {
	timing := strconv.FormatFloat(elapsedMs, 'f', 2, 64)

	switch o := out.(type) {
	case model.Classifications:
		if len(o) == 0 {
			return types.InferenceResult{}, unexpectedOutput()
		}
		top := o[0]
		raw := top.Identifier
		mapped := raw
		if index, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			mapped = mapper.LabelFor(index)
		}

		meta := map[string]string{
			types.MetaRawLabel:        raw,
			types.MetaMappedLabel:     mapped,
			types.MetaInferenceTimeMs: timing,
		}
		return types.NewInferenceResult(summary(mapped, raw), top.Score, meta, &elapsedMs), nil

	case model.ScoreArray:
		if len(o) == 0 {
			return types.InferenceResult{}, unexpectedOutput()
		}
		index, score := argmax(o)
		raw := strconv.Itoa(index)
		mapped := mapper.LabelFor(index)

		meta := map[string]string{
			types.MetaClassIndex:      raw,
			types.MetaRawLabel:        raw,
			types.MetaMappedLabel:     mapped,
			types.MetaInferenceTimeMs: timing,
		}
		return types.NewInferenceResult(summary(mapped, raw), score, meta, &elapsedMs), nil

	default:
		return types.InferenceResult{}, unexpectedOutput()
	}
}

// argmax returns the index of the largest score; ties go to the lowest index
func argmax(scores model.ScoreArray) (int, float64) {
	values := make([]float64, len(scores))
	for i, v := range scores {
		values[i] = float64(v)
	}
	index := floats.MaxIdx(values)
	return index, values[index]
}

func summary(mapped, raw string) string {
	if mapped != "" {
		return mapped
	}
	return raw
}
