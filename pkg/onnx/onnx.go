// Package onnx evaluates classification models with ONNX Runtime.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/menta2k/leafscan/pkg/model"
	"github.com/menta2k/leafscan/pkg/preprocess"
)

// Extension is the file extension of ONNX model artifacts
const Extension = ".onnx"

// Layout is the memory order of a 4-D image input
type Layout int

const (
	// NCHW is batch, channels, height, width
	NCHW Layout = iota
	// NHWC is batch, height, width, channels
	NHWC
)

func (l Layout) String() string {
	if l == NHWC {
		return "NHWC"
	}
	return "NCHW"
}

// Config holds configuration for the ONNX backend
type Config struct {
	// LibraryPath of the onnxruntime shared library; empty uses the default lookup
	LibraryPath string
	// IntraOpThreads is passed to the session options when positive
	IntraOpThreads int
	// Softmax converts raw logits to probabilities before decoding
	Softmax bool
	Logger  logrus.FieldLogger
}

var (
	envMu   sync.Mutex
	envPath string
)

// initEnvironment initializes the process-wide ONNX Runtime environment once
func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		if libraryPath != "" && libraryPath != envPath {
			return fmt.Errorf("onnx environment already initialized with %q", envPath)
		}
		return nil
	}
	if libraryPath != "" {
		if _, err := os.Stat(libraryPath); err != nil {
			return fmt.Errorf("onnx lib path: %w", err)
		}
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx: %w", err)
	}
	envPath = libraryPath
	return nil
}

// Loader creates ONNX sessions from model files
type Loader struct {
	config Config
	log    logrus.FieldLogger
}

var _ model.Loader = (*Loader)(nil)

// NewLoader creates a Loader
func NewLoader(config Config) *Loader {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	return &Loader{
		config: config,
		log:    config.Logger.WithFields(logrus.Fields{"component": "onnx", "backend": "onnx"}),
	}
}

// NewResolver finds <name>.onnx in dirs
func NewResolver(dirs []string) *model.DirResolver {
	return model.NewDirResolver(dirs, Extension)
}

// Load opens location as a single-input, single-output image classifier
func (l *Loader) Load(_ context.Context, location string) (model.Model, error) {
	if err := initEnvironment(l.config.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(location)
	if err != nil {
		return nil, fmt.Errorf("io info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("unexpected io (in:%d out:%d)", len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]

	layout, size, err := inspectInput(in.Dimensions)
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session opts: %w", err)
	}
	defer opts.Destroy()
	if l.config.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(l.config.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("session opts: %w", err)
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(location, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"model":  location,
		"input":  in.Name,
		"output": out.Name,
		"layout": layout.String(),
	}).Debug("ONNX session created")

	return &Model{session: sess, layout: layout, size: size, softmax: l.config.Softmax}, nil
}

// inspectInput validates a 4-D image input with three channels and returns
// its layout and spatial size. Dynamic dimensions yield a zero size.
func inspectInput(dims ort.Shape) (Layout, image.Point, error) {
	if len(dims) != 4 {
		return NCHW, image.Point{}, fmt.Errorf("expected 4D input, got %dD", len(dims))
	}

	var layout Layout
	var h, w int64
	switch {
	case dims[1] == 3:
		layout, h, w = NCHW, dims[2], dims[3]
	case dims[3] == 3:
		layout, h, w = NHWC, dims[1], dims[2]
	default:
		return NCHW, image.Point{}, fmt.Errorf("cannot find a 3-channel axis in input shape %v", dims)
	}

	if h <= 0 || w <= 0 {
		return layout, image.Point{}, nil
	}
	return layout, image.Pt(int(w), int(h)), nil
}

// Model is a loaded ONNX session. Sessions are not safe for concurrent Run
// calls, so the engine's default single evaluation slot must be kept.
type Model struct {
	session *ort.DynamicAdvancedSession
	layout  Layout
	size    image.Point
	softmax bool
}

var _ model.Model = (*Model)(nil)

// InputSize returns the spatial size declared by the model
func (m *Model) InputSize() image.Point { return m.size }

// Layout returns the detected input layout
func (m *Model) Layout() Layout { return m.layout }

// Evaluate runs the session and returns the flattened float32 output
func (m *Model) Evaluate(_ context.Context, input *preprocess.Tensor) (model.Output, error) {
	if m.session == nil {
		return nil, errors.New("session closed")
	}

	data, shape := inputData(input, m.layout)
	tensor, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, fmt.Errorf("tensor: %w", err)
	}
	defer tensor.Destroy()

	outputs := []ort.Value{nil}
	if err := m.session.Run([]ort.Value{tensor}, outputs); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}

	scores := make(model.ScoreArray, len(t.GetData()))
	copy(scores, t.GetData())
	if m.softmax {
		softmax(scores)
	}
	return scores, nil
}

// Close destroys the session
func (m *Model) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}

func inputData(t *preprocess.Tensor, layout Layout) ([]float32, []int64) {
	h, w := int64(t.Height), int64(t.Width)
	if layout == NHWC {
		return t.Float32HWC(), []int64{1, h, w, 3}
	}
	return t.Float32CHW(), []int64{1, 3, h, w}
}

// softmax converts logits to probabilities in place
func softmax(v []float32) {
	if len(v) == 0 {
		return
	}
	maxLogit := v[0]
	for _, x := range v[1:] {
		if x > maxLogit {
			maxLogit = x
		}
	}
	var sum float64
	exps := make([]float64, len(v))
	for i, x := range v {
		exps[i] = math.Exp(float64(x - maxLogit))
		sum += exps[i]
	}
	for i := range v {
		v[i] = float32(exps[i] / sum)
	}
}
