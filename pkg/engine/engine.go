// Package engine owns the model lifecycle and the preprocess, evaluate,
// decode pipeline.
//
// A Service moves from unprepared to prepared exactly once. Loading runs on
// its own goroutine and concurrent Prepare calls share the same in-flight
// load. After that the model handle is read without locking. Evaluations
// are bounded by a semaphore whose size is Config.MaxConcurrent; the default
// of 1 serializes them, which is what ONNX Runtime sessions and TFLite
// interpreters require unless configured otherwise.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/leafscan/pkg/benchmark"
	"github.com/menta2k/leafscan/pkg/future"
	"github.com/menta2k/leafscan/pkg/labels"
	"github.com/menta2k/leafscan/pkg/model"
	"github.com/menta2k/leafscan/pkg/preprocess"
	"github.com/menta2k/leafscan/pkg/types"
)

// Engine is the contract shared by the real engine and MockEngine
type Engine interface {
	Prepare(ctx context.Context) error
	RunInference(ctx context.Context, data []byte) (types.InferenceResult, error)
	BenchmarkMetrics() benchmark.Benchmark
}

// Config holds configuration for a Service
type Config struct {
	// ModelName is passed to the Resolver
	ModelName string
	// InputSize overrides the size reported by the model when non-zero
	InputSize image.Point
	// Normalize applies the colour normalization during preprocessing
	Normalize bool
	// MaxConcurrent bounds simultaneous evaluations; values below 1 mean 1
	MaxConcurrent int
	Logger        logrus.FieldLogger
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		Normalize:     true,
		MaxConcurrent: 1,
	}
}

type loadedModel struct {
	model    model.Model
	location string
	size     image.Point
}

// Service is the production Engine
type Service struct {
	config       Config
	resolver     model.Resolver
	loader       model.Loader
	labels       *labels.Mapper
	preprocessor *preprocess.Preprocessor
	log          logrus.FieldLogger

	loaded  atomic.Pointer[loadedModel]
	mu      sync.Mutex
	pending *future.Future[*loadedModel]

	slots   chan struct{}
	tracker *benchmark.Tracker
}

var _ Engine = (*Service)(nil)

// New creates a Service. A nil mapper uses the embedded label table and a
// nil preprocessor uses the default configuration.
func New(config Config, resolver model.Resolver, loader model.Loader, mapper *labels.Mapper, pre *preprocess.Preprocessor) *Service {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	if mapper == nil {
		mapper = labels.New()
	}
	if pre == nil {
		pre = preprocess.New()
	}

	return &Service{
		config:       config,
		resolver:     resolver,
		loader:       loader,
		labels:       mapper,
		preprocessor: pre,
		log:          config.Logger.WithFields(logrus.Fields{"component": "engine", "model": config.ModelName}),
		slots:        make(chan struct{}, config.MaxConcurrent),
		tracker:      benchmark.NewTracker(),
	}
}

// Prepare resolves and loads the model once. ctx bounds only the wait: an
// abandoned load keeps running and its result is kept. A failed load leaves
// the Service unprepared so that Prepare can be called again.
func (s *Service) Prepare(ctx context.Context) error {
	if s.loaded.Load() != nil {
		return nil
	}

	s.mu.Lock()
	if s.loaded.Load() != nil {
		s.mu.Unlock()
		return nil
	}
	pending := s.pending
	if pending == nil {
		loadCtx := context.WithoutCancel(ctx)
		pending = future.Go(func() (*loadedModel, error) {
			lm, err := s.load(loadCtx)

			s.mu.Lock()
			defer s.mu.Unlock()
			if err == nil {
				s.loaded.Store(lm)
			}
			s.pending = nil
			return lm, err
		})
		s.pending = pending
	}
	s.mu.Unlock()

	_, err := pending.Wait(ctx)
	return err
}

func (s *Service) load(ctx context.Context) (*loadedModel, error) {
	start := time.Now()

	location, err := s.resolver.Resolve(ctx, s.config.ModelName)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrModelNotFound, err)
		}
		return nil, &InferenceError{Reason: fmt.Sprintf("resolve model %q: %v", s.config.ModelName, err), Err: err}
	}

	m, err := s.loader.Load(ctx, location)
	if err != nil {
		s.log.WithError(err).WithField("location", location).Warn("Model load failed")
		return nil, &InferenceError{Reason: fmt.Sprintf("load model %s: %v", location, err), Err: err}
	}

	size := s.config.InputSize
	if size.X <= 0 || size.Y <= 0 {
		size = m.InputSize()
	}
	if size.X <= 0 || size.Y <= 0 {
		size = preprocess.DefaultInputSize
	}

	s.log.WithFields(logrus.Fields{
		"location":   location,
		"input_size": fmt.Sprintf("%dx%d", size.X, size.Y),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("Model prepared")

	return &loadedModel{model: m, location: location, size: size}, nil
}

// Prepared reports whether a model is loaded
func (s *Service) Prepared() bool {
	return s.loaded.Load() != nil
}

// InputSize returns the tensor size used for inference, or the zero point
// before preparation
func (s *Service) InputSize() image.Point {
	if lm := s.loaded.Load(); lm != nil {
		return lm.size
	}
	return image.Point{}
}

// RunInference preprocesses data, evaluates the model and decodes the output.
// Evaluation runs to completion even if ctx is done first; the caller just
// stops waiting for it.
func (s *Service) RunInference(ctx context.Context, data []byte) (types.InferenceResult, error) {
	lm := s.loaded.Load()
	if lm == nil {
		return types.InferenceResult{}, ErrModelNotPrepared
	}

	start := time.Now()

	tensor, err := s.preprocessor.PixelBuffer(data, lm.size, s.config.Normalize)
	if err != nil {
		return types.InferenceResult{}, &PreprocessingError{Reason: err.Error(), Err: err}
	}

	evalCtx := context.WithoutCancel(ctx)
	result := future.Go(func() (types.InferenceResult, error) {
		s.slots <- struct{}{}
		defer func() { <-s.slots }()

		// Close may have run while this evaluation waited for a slot
		if s.loaded.Load() != lm {
			return types.InferenceResult{}, ErrModelNotPrepared
		}

		out, err := lm.model.Evaluate(evalCtx, tensor)
		if err != nil {
			return types.InferenceResult{}, &InferenceError{Reason: err.Error(), Err: err}
		}

		elapsed := float64(time.Since(start).Microseconds()) / 1000
		res, err := decode(out, s.labels, elapsed)
		if err != nil {
			return types.InferenceResult{}, err
		}

		s.tracker.Record(elapsed)
		return res, nil
	})

	return result.Wait(ctx)
}

// BenchmarkMetrics returns a snapshot of the recorded latencies
func (s *Service) BenchmarkMetrics() benchmark.Benchmark {
	return s.tracker.Snapshot()
}

// Close waits for running evaluations and releases the model. The Service
// is unprepared afterwards.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lm := s.loaded.Swap(nil)
	if lm == nil {
		return nil
	}

	for i := 0; i < cap(s.slots); i++ {
		s.slots <- struct{}{}
	}
	defer func() {
		for i := 0; i < cap(s.slots); i++ {
			<-s.slots
		}
	}()

	if err := lm.model.Close(); err != nil {
		return fmt.Errorf("failed to close model: %w", err)
	}
	return nil
}
