//go:build tflite

package tflite

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/mattn/go-tflite"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/leafscan/pkg/model"
	"github.com/menta2k/leafscan/pkg/preprocess"
)

// Load builds an interpreter for location and allocates its tensors
func (l *Loader) Load(_ context.Context, location string) (model.Model, error) {
	m := tflite.NewModelFromFile(location)
	if m == nil {
		return nil, fmt.Errorf("cannot load model %s", location)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(l.config.Threads)
	options.SetErrorReporter(func(msg string, _ interface{}) {
		l.log.WithField("model", location).Warn(msg)
	}, nil)
	defer options.Delete()

	interpreter := tflite.NewInterpreter(m, options)
	if interpreter == nil {
		m.Delete()
		return nil, fmt.Errorf("cannot create interpreter for %s", location)
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		m.Delete()
		return nil, fmt.Errorf("allocate tensors: status %d", status)
	}

	input := interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 || input.Dim(3) != 3 {
		interpreter.Delete()
		m.Delete()
		return nil, errors.New("expected a 1xHxWx3 image input")
	}
	if t := input.Type(); t != tflite.UInt8 && t != tflite.Float32 {
		interpreter.Delete()
		m.Delete()
		return nil, fmt.Errorf("unsupported input type %v", t)
	}

	size := image.Pt(input.Dim(2), input.Dim(1))
	l.log.WithFields(logrus.Fields{
		"model":      location,
		"input_type": input.Type().String(),
		"input_size": fmt.Sprintf("%dx%d", size.X, size.Y),
	}).Debug("TFLite interpreter ready")

	return &Model{model: m, interpreter: interpreter, size: size}, nil
}

// Model is a TFLite interpreter. Interpreters are single-threaded, so the
// engine's default single evaluation slot must be kept.
type Model struct {
	model       *tflite.Model
	interpreter *tflite.Interpreter
	size        image.Point
}

var _ model.Model = (*Model)(nil)

// InputSize returns the spatial size declared by the model
func (m *Model) InputSize() image.Point { return m.size }

// Evaluate copies the tensor into the interpreter input and invokes it
func (m *Model) Evaluate(_ context.Context, in *preprocess.Tensor) (model.Output, error) {
	if m.interpreter == nil {
		return nil, errors.New("interpreter closed")
	}
	if in.Size() != m.size {
		return nil, fmt.Errorf("input is %v, model expects %v", in.Size(), m.size)
	}

	input := m.interpreter.GetInputTensor(0)
	var status tflite.Status
	switch input.Type() {
	case tflite.UInt8:
		status = input.CopyFromBuffer(in.RGB())
	case tflite.Float32:
		status = input.CopyFromBuffer(in.Float32HWC())
	default:
		return nil, fmt.Errorf("unsupported input type %v", input.Type())
	}
	if status != tflite.OK {
		return nil, fmt.Errorf("copy input: status %d", status)
	}

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("invoke: status %d", status)
	}

	output := m.interpreter.GetOutputTensor(0)
	switch output.Type() {
	case tflite.UInt8:
		q := output.QuantizationParams()
		return dequantize(output.UInt8s(), q.Scale, q.ZeroPoint), nil
	case tflite.Float32:
		raw := output.Float32s()
		scores := make(model.ScoreArray, len(raw))
		copy(scores, raw)
		return scores, nil
	default:
		return nil, fmt.Errorf("unsupported output type %v", output.Type())
	}
}

// Close deletes the interpreter and the model
func (m *Model) Close() error {
	if m.interpreter != nil {
		m.interpreter.Delete()
		m.interpreter = nil
	}
	if m.model != nil {
		m.model.Delete()
		m.model = nil
	}
	return nil
}
