// Package model defines the boundary between the inference engine and a
// concrete model runtime (ONNX Runtime, TensorFlow Lite, a vision LLM).
package model

import (
	"context"
	"errors"
	"image"

	"github.com/menta2k/leafscan/pkg/preprocess"
)

// ErrNotFound is returned by a Resolver when a model name has no artifact
var ErrNotFound = errors.New("model resource not found")

// Output is the raw result of a model evaluation. It is a closed union:
// Classifications or ScoreArray.
type Output interface {
	isOutput()
}

// Classification is one ranked (identifier, score) pair
type Classification struct {
	Identifier string  `json:"identifier"`
	Score      float64 `json:"score"`
}

// Classifications is a ranked list, best first
type Classifications []Classification

// ScoreArray is a flat score vector indexed by class
type ScoreArray []float32

func (Classifications) isOutput() {}
func (ScoreArray) isOutput()      {}

// Model is a loaded, ready-to-evaluate model
type Model interface {
	// Evaluate runs the model on a preprocessed tensor
	Evaluate(ctx context.Context, input *preprocess.Tensor) (Output, error)
	// InputSize returns the expected input dimensions, or the zero point
	// when the model does not constrain them
	InputSize() image.Point
	Close() error
}

// Loader turns a resolved artifact location into a Model
type Loader interface {
	Load(ctx context.Context, location string) (Model, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(ctx context.Context, location string) (Model, error)

// Load calls f
func (f LoaderFunc) Load(ctx context.Context, location string) (Model, error) {
	return f(ctx, location)
}

// Resolver maps a model name to an artifact location
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface
type ResolverFunc func(ctx context.Context, name string) (string, error)

// Resolve calls f
func (f ResolverFunc) Resolve(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}
