// Package tflite evaluates classification models with TensorFlow Lite.
//
// The interpreter needs the TensorFlow Lite C library, so the real backend
// is only compiled with the "tflite" build tag. Without it, Load returns
// ErrUnavailable.
package tflite

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/leafscan/pkg/model"
)

// Extension is the file extension of TFLite model artifacts
const Extension = ".tflite"

// ErrUnavailable is returned when the binary was built without TFLite support
var ErrUnavailable = errors.New("tflite backend not compiled in (build with -tags tflite)")

// Config holds configuration for the TFLite backend
type Config struct {
	// Threads is the interpreter thread count; values below 1 mean 1
	Threads int
	Logger  logrus.FieldLogger
}

// Loader creates TFLite interpreters from model files
type Loader struct {
	config Config
	log    logrus.FieldLogger
}

var _ model.Loader = (*Loader)(nil)

// NewLoader creates a Loader
func NewLoader(config Config) *Loader {
	if config.Threads < 1 {
		config.Threads = 1
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	return &Loader{
		config: config,
		log:    config.Logger.WithFields(logrus.Fields{"component": "tflite", "backend": "tflite"}),
	}
}

// NewResolver finds <name>.tflite in dirs
func NewResolver(dirs []string) *model.DirResolver {
	return model.NewDirResolver(dirs, Extension)
}

// dequantize maps quantized uint8 scores to real values
func dequantize(raw []uint8, scale float64, zeroPoint int) model.ScoreArray {
	scores := make(model.ScoreArray, len(raw))
	if scale == 0 {
		scale = 1.0 / 255
	}
	for i, v := range raw {
		scores[i] = float32(scale * float64(int(v)-zeroPoint))
	}
	return scores
}
