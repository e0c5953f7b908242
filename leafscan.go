// Package leafscan classifies plant leaf photos on the local machine.
//
// An image goes through a fixed pipeline: decode with EXIF orientation
// applied, center crop to a square, resize, render to a 4-channel tensor,
// normalize, evaluate the model, decode the output into a label with a
// confidence. Every successful run records its latency in a rolling
// benchmark of the last 20 samples.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		"github.com/menta2k/leafscan"
//	)
//
//	func main() {
//		opts := leafscan.DefaultOptions()
//		opts.Model = "leaf_classifier"
//		opts.ModelDirs = []string{"./models"}
//
//		classifier, err := leafscan.New(opts)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer classifier.Close()
//
//		ctx := context.Background()
//		if err := classifier.Prepare(ctx); err != nil {
//			log.Fatal(err)
//		}
//
//		result, err := classifier.ClassifyFile(ctx, "leaf.jpg", true)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("%s (%.0f%%)\n", result.Summary, result.Confidence*100)
//		fmt.Println(classifier.Benchmark().FormatSummary())
//	}
//
// Backends:
//
//   - onnx: ONNX Runtime sessions over <model>.onnx files
//   - tflite: TensorFlow Lite interpreters over <model>.tflite files (build tag tflite)
//   - ollama: a vision language model served by a local Ollama instance
//   - llamacpp: a vision language model behind llama-server's OpenAI-compatible API
//   - mock: deterministic labels derived from a hash of the input, no model
package leafscan

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/leafscan/internal/utils"
	"github.com/menta2k/leafscan/pkg/benchmark"
	"github.com/menta2k/leafscan/pkg/client"
	"github.com/menta2k/leafscan/pkg/detail"
	"github.com/menta2k/leafscan/pkg/detection"
	"github.com/menta2k/leafscan/pkg/engine"
	"github.com/menta2k/leafscan/pkg/history"
	"github.com/menta2k/leafscan/pkg/labels"
	"github.com/menta2k/leafscan/pkg/llamacpp"
	"github.com/menta2k/leafscan/pkg/model"
	"github.com/menta2k/leafscan/pkg/ollama"
	"github.com/menta2k/leafscan/pkg/onnx"
	"github.com/menta2k/leafscan/pkg/preprocess"
	"github.com/menta2k/leafscan/pkg/repository"
	"github.com/menta2k/leafscan/pkg/tflite"
	"github.com/menta2k/leafscan/pkg/types"
)

// Version of the leafscan library
const Version = "1.0.0"

// Backend names
const (
	BackendONNX     = "onnx"
	BackendTFLite   = "tflite"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	BackendMock     = "mock"
)

// Options configures a Classifier
type Options struct {
	Backend   string
	Model     string
	ModelDirs []string
	// LabelsPath is a JSON array of labels; empty uses the built-in table
	LabelsPath string
	// InputSize forces a square model input; 0 uses the model's own size
	InputSize     int
	Normalize     bool
	MaxConcurrent int

	Filter       string
	ChannelOrder string
	MaxPixels    int

	ONNXLibraryPath string
	ONNXThreads     int
	Softmax         bool
	TFLiteThreads   int
	OllamaURL       string
	LlamaCppURL     string
	JPEGQuality     int

	// History receives saved results; nil uses an in-memory store
	History history.Store
	Logger  logrus.FieldLogger
}

// DefaultOptions returns options for the ONNX backend with default preprocessing
func DefaultOptions() Options {
	return Options{
		Backend:       BackendONNX,
		ModelDirs:     []string{"./models"},
		Normalize:     true,
		MaxConcurrent: 1,
		Filter:        preprocess.DefaultFilter,
		ChannelOrder:  preprocess.BGRA.String(),
		MaxPixels:     preprocess.DefaultMaxPixels,
		OllamaURL:     "http://localhost:11434",
		LlamaCppURL:   llamacpp.DefaultURL,
		JPEGQuality:   90,
	}
}

// Classifier is the high-level entry point
type Classifier struct {
	backend string
	engine  engine.Engine
	repo    *repository.Repository
	labels  *labels.Mapper
	log     logrus.FieldLogger
}

// New builds a Classifier for opts.Backend. The model is not loaded until Prepare.
func New(opts Options) (*Classifier, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("backend", opts.Backend)

	mapper := labels.New()
	if opts.LabelsPath != "" {
		mapper = labels.NewFromFile(opts.LabelsPath)
	}

	var e engine.Engine
	if opts.Backend == BackendMock {
		e = engine.NewMockEngine()
	} else {
		pre, err := newPreprocessor(opts)
		if err != nil {
			return nil, err
		}
		resolver, loader, err := newBackend(opts, mapper, logger)
		if err != nil {
			return nil, err
		}
		e = engine.New(engine.Config{
			ModelName:     opts.Model,
			InputSize:     image.Pt(opts.InputSize, opts.InputSize),
			Normalize:     opts.Normalize,
			MaxConcurrent: opts.MaxConcurrent,
			Logger:        logger,
		}, resolver, loader, mapper, pre)
	}

	log.WithField("labels", mapper.Len()).Debug("Classifier created")

	return &Classifier{
		backend: opts.Backend,
		engine:  e,
		repo:    repository.New(e, opts.History, logger),
		labels:  mapper,
		log:     log,
	}, nil
}

func newPreprocessor(opts Options) (*preprocess.Preprocessor, error) {
	resampler, err := preprocess.ResamplerByName(opts.Filter)
	if err != nil {
		return nil, err
	}
	order, err := preprocess.ParseChannelOrder(opts.ChannelOrder)
	if err != nil {
		return nil, err
	}
	return preprocess.NewWithConfig(preprocess.Config{
		Resampler: resampler,
		Order:     order,
		MaxPixels: opts.MaxPixels,
	}), nil
}

func newBackend(opts Options, mapper *labels.Mapper, logger logrus.FieldLogger) (model.Resolver, model.Loader, error) {
	switch opts.Backend {
	case BackendONNX:
		loader := onnx.NewLoader(onnx.Config{
			LibraryPath:    opts.ONNXLibraryPath,
			IntraOpThreads: opts.ONNXThreads,
			Softmax:        opts.Softmax,
			Logger:         logger,
		})
		return onnx.NewResolver(opts.ModelDirs), loader, nil

	case BackendTFLite:
		loader := tflite.NewLoader(tflite.Config{Threads: opts.TFLiteThreads, Logger: logger})
		return tflite.NewResolver(opts.ModelDirs), loader, nil

	case BackendOllama, BackendLlamaCpp:
		var vc client.VisionClient
		var err error
		if opts.Backend == BackendOllama {
			vc, err = ollama.NewClient(opts.OllamaURL)
		} else {
			vc, err = llamacpp.NewClient(opts.LlamaCppURL)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s client: %w", opts.Backend, err)
		}
		size := image.Point{}
		if opts.InputSize > 0 {
			size = image.Pt(opts.InputSize, opts.InputSize)
		}
		loader := detection.NewLoader(vc, detection.Config{
			Labels:      mapper.Labels(),
			InputSize:   size,
			JPEGQuality: opts.JPEGQuality,
			Backend:     opts.Backend,
			Logger:      logger,
		})
		return detection.NewResolver(vc), loader, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend: %s (use onnx, tflite, ollama, llamacpp or mock)", opts.Backend)
	}
}

// Backend returns the backend name the Classifier was built with
func (c *Classifier) Backend() string { return c.backend }

// Engine returns the underlying engine
func (c *Classifier) Engine() engine.Engine { return c.engine }

// Prepare loads the model; later calls return immediately
func (c *Classifier) Prepare(ctx context.Context) error {
	return c.repo.Prepare(ctx)
}

// ClassifyBytes classifies an encoded image, optionally saving it to history
func (c *Classifier) ClassifyBytes(ctx context.Context, data []byte, save bool) (types.InferenceResult, error) {
	return c.repo.RunInference(ctx, data, save)
}

// ClassifyFile reads and classifies an image file
func (c *Classifier) ClassifyFile(ctx context.Context, path string, save bool) (types.InferenceResult, error) {
	data, err := utils.ReadImageFile(path)
	if err != nil {
		return types.InferenceResult{}, err
	}
	return c.ClassifyBytes(ctx, data, save)
}

// Benchmark returns the latency snapshot
func (c *Classifier) Benchmark() benchmark.Benchmark {
	return c.repo.BenchmarkMetrics()
}

// History returns saved results, newest first
func (c *Classifier) History(ctx context.Context) ([]history.Entry, error) {
	return c.repo.FetchHistory(ctx)
}

// Repository exposes favorites and explicit saves
func (c *Classifier) Repository() *repository.Repository {
	return c.repo
}

// Labels returns the label table in use
func (c *Classifier) Labels() *labels.Mapper {
	return c.labels
}

// Detail describes a result's label
func (c *Classifier) Detail(result types.InferenceResult) detail.Detail {
	return detail.For(result.Summary)
}

// Close releases the model
func (c *Classifier) Close() error {
	if closer, ok := c.engine.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
