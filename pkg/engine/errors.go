package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotFound is returned by Prepare when the model name cannot be resolved
	ErrModelNotFound = errors.New("model not found")
	// ErrModelNotPrepared is returned by RunInference before a successful Prepare
	ErrModelNotPrepared = errors.New("model not prepared")
)

// reasonUnexpectedOutput is the InferenceError reason for output the engine cannot decode
const reasonUnexpectedOutput = "unexpected model output"

// PreprocessingError wraps a failure to turn input bytes into a tensor
type PreprocessingError struct {
	Reason string
	Err    error
}

func (e *PreprocessingError) Error() string {
	return fmt.Sprintf("preprocessing failed: %s", e.Reason)
}

func (e *PreprocessingError) Unwrap() error { return e.Err }

// InferenceError reports a model load or evaluation failure. Reason is
// suitable for display to a user.
type InferenceError struct {
	Reason string
	Err    error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %s", e.Reason)
}

func (e *InferenceError) Unwrap() error { return e.Err }

func unexpectedOutput() error {
	return &InferenceError{Reason: reasonUnexpectedOutput}
}
