package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/leafscan"
	"github.com/menta2k/leafscan/internal/config"
	"github.com/menta2k/leafscan/internal/logging"
	"github.com/menta2k/leafscan/internal/utils"
	"github.com/menta2k/leafscan/pkg/types"
)

type flags struct {
	in         string
	configPath string
	backend    string
	model      string
	models     string
	labels     string
	size       int
	filter     string
	normalize  bool
	repeat     int
	save       bool
	history    bool
	logLevel   string
	jsonOut    bool
}

// output is one line of -json output
type output struct {
	File   string                `json:"file"`
	Run    int                   `json:"run,omitempty"`
	Result types.InferenceResult `json:"result"`
	Name   string                `json:"name,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func main() {
	var f flags
	flag.StringVar(&f.in, "in", "", "input image file or directory")
	flag.StringVar(&f.configPath, "config", "", "config file (default "+config.GetConfigPath()+" if present)")
	flag.StringVar(&f.backend, "backend", "", "backend: onnx|tflite|ollama|llamacpp|mock")
	flag.StringVar(&f.model, "model", "", "model name (file stem for onnx/tflite, model tag for ollama)")
	flag.StringVar(&f.models, "models", "", "model directories, "+string(filepath.ListSeparator)+"-separated")
	flag.StringVar(&f.labels, "labels", "", "labels JSON file (default: built-in table)")
	flag.IntVar(&f.size, "size", 0, "square model input size, 0 = model default")
	flag.StringVar(&f.filter, "filter", "", "resample filter")
	flag.BoolVar(&f.normalize, "normalize", true, "normalize colour channels")
	flag.IntVar(&f.repeat, "repeat", 1, "classify each image this many times (benchmarking)")
	flag.BoolVar(&f.save, "save", false, "save results to history")
	flag.BoolVar(&f.history, "history", false, "print saved history at the end")
	flag.StringVar(&f.logLevel, "log-level", "", "log level: debug|info|warn|error")
	flag.BoolVar(&f.jsonOut, "json", false, "print one JSON object per result")
	flag.Parse()

	if f.in == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -in leaf.jpg|dir [-backend onnx|tflite|ollama|mock] [-model name] [-models dir] [-repeat n] [-json]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		logrus.Fatal(err)
	}

	closeLog, err := logging.Setup(logrus.StandardLogger(), logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		logrus.Fatal(err)
	}
	defer closeLog()

	if err := run(f, cfg); err != nil {
		logrus.Fatal(err)
	}
}

// loadConfig merges defaults, the config file, the environment and flags, in that order
func loadConfig(f flags) (*config.Config, error) {
	cfg := config.Default()
	path := f.configPath
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv(nil)

	set := map[string]bool{}
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if set["backend"] {
		cfg.Engine.Backend = f.backend
	}
	if set["model"] {
		cfg.Engine.Model = f.model
	}
	if set["models"] {
		cfg.Engine.ModelDirs = filepath.SplitList(f.models)
	}
	if set["labels"] {
		cfg.Labels.Path = f.labels
	}
	if set["size"] {
		cfg.Engine.InputSize = f.size
	}
	if set["filter"] {
		cfg.Preprocess.Filter = f.filter
	}
	if set["normalize"] {
		cfg.Preprocess.Normalize = f.normalize
	}
	if set["log-level"] {
		cfg.Log.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func optionsFromConfig(cfg *config.Config) leafscan.Options {
	return leafscan.Options{
		Backend:         cfg.Engine.Backend,
		Model:           cfg.Engine.Model,
		ModelDirs:       cfg.Engine.ModelDirs,
		LabelsPath:      cfg.Labels.Path,
		InputSize:       cfg.Engine.InputSize,
		Normalize:       cfg.Preprocess.Normalize,
		MaxConcurrent:   cfg.Engine.MaxConcurrent,
		Filter:          cfg.Preprocess.Filter,
		ChannelOrder:    cfg.Preprocess.ChannelOrder,
		MaxPixels:       cfg.Preprocess.MaxPixels,
		ONNXLibraryPath: cfg.ONNX.LibraryPath,
		ONNXThreads:     cfg.ONNX.IntraOpThreads,
		Softmax:         cfg.ONNX.Softmax,
		TFLiteThreads:   cfg.TFLite.Threads,
		OllamaURL:       cfg.Ollama.URL,
		LlamaCppURL:     cfg.LlamaCpp.URL,
		JPEGQuality:     cfg.Ollama.JPEGQuality,
	}
}

func run(f flags, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	files, err := inputFiles(f.in)
	if err != nil {
		return err
	}

	classifier, err := leafscan.New(optionsFromConfig(cfg))
	if err != nil {
		return err
	}
	defer classifier.Close()

	log := logrus.WithFields(logrus.Fields{"backend": cfg.Engine.Backend, "model": cfg.Engine.Model})

	start := time.Now()
	if err := classifier.Prepare(ctx); err != nil {
		return fmt.Errorf("failed to prepare model: %w", err)
	}
	log.WithField("elapsed_ms", time.Since(start).Milliseconds()).Info("Model ready")

	repeat := f.repeat
	if repeat < 1 {
		repeat = 1
	}

	var bar *pb.ProgressBar
	if len(files) > 1 || repeat > 1 {
		bar = pb.StartNew(len(files) * repeat)
	}

	enc := json.NewEncoder(os.Stdout)
	failures := 0
	for _, path := range files {
		for i := 1; i <= repeat; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			out := output{File: path}
			if repeat > 1 {
				out.Run = i
			}
			res, err := classifier.ClassifyFile(ctx, path, f.save && i == 1)
			if err != nil {
				failures++
				out.Error = err.Error()
				log.WithError(err).WithField("file", path).Warn("Classification failed")
			} else {
				out.Result = res
				out.Name = classifier.Detail(res).Name
			}

			if bar != nil {
				bar.Increment()
			}
			if f.jsonOut {
				enc.Encode(out)
			} else if err == nil && i == 1 {
				fmt.Printf("%s: %s (%.1f%%) %s\n", path, res.Summary, res.Confidence*100, out.Name)
			}
		}
	}
	if bar != nil {
		bar.Finish()
	}

	fmt.Fprintln(os.Stderr, classifier.Benchmark().FormatSummary())

	if f.history {
		entries, err := classifier.History(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch history: %w", err)
		}
		for _, e := range entries {
			fmt.Printf("%s %s %s %.2f\n", e.Timestamp.Format(time.RFC3339), e.ID, e.Result.Summary, e.Result.Confidence)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d classifications failed", failures, len(files)*repeat)
	}
	return nil
}

func inputFiles(in string) ([]string, error) {
	if utils.DirExists(in) {
		files, err := utils.ListImageFiles(in)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no images found in %s", in)
		}
		return files, nil
	}
	if !utils.FileExists(in) {
		return nil, fmt.Errorf("input not found: %s", in)
	}
	return []string{in}, nil
}
