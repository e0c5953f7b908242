package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/leafscan/pkg/preprocess"
)

// Backends accepted in engine.backend
var Backends = []string{"onnx", "tflite", "ollama", "llamacpp", "mock"}

// Config holds the application configuration
type Config struct {
	Engine     EngineConfig     `json:"engine"`
	Preprocess PreprocessConfig `json:"preprocess"`
	Labels     LabelsConfig     `json:"labels"`
	ONNX       ONNXConfig       `json:"onnx"`
	TFLite     TFLiteConfig     `json:"tflite"`
	Ollama     OllamaConfig     `json:"ollama"`
	LlamaCpp   LlamaCppConfig   `json:"llamacpp"`
	Log        LogConfig        `json:"log"`
}

// EngineConfig selects the backend and model
type EngineConfig struct {
	Backend       string   `json:"backend"`
	Model         string   `json:"model"`
	ModelDirs     []string `json:"model_dirs"`
	InputSize     int      `json:"input_size"`
	MaxConcurrent int      `json:"max_concurrent"`
}

// PreprocessConfig holds configuration for image preprocessing
type PreprocessConfig struct {
	Filter       string `json:"filter"`
	ChannelOrder string `json:"channel_order"`
	Normalize    bool   `json:"normalize"`
	MaxPixels    int    `json:"max_pixels"`
}

// LabelsConfig points at a label table; empty uses the built-in one
type LabelsConfig struct {
	Path string `json:"path"`
}

// ONNXConfig holds configuration for the ONNX Runtime backend
type ONNXConfig struct {
	LibraryPath    string `json:"library_path"`
	IntraOpThreads int    `json:"intra_op_threads"`
	Softmax        bool   `json:"softmax"`
}

// TFLiteConfig holds configuration for the TensorFlow Lite backend
type TFLiteConfig struct {
	Threads int `json:"threads"`
}

// OllamaConfig holds configuration for the vision-model backend
type OllamaConfig struct {
	URL         string `json:"url"`
	JPEGQuality int    `json:"jpeg_quality"`
}

// LlamaCppConfig points at a llama.cpp server; JPEG quality is shared with Ollama
type LlamaCppConfig struct {
	URL string `json:"url"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Backend:       "onnx",
			Model:         "leaf_classifier",
			ModelDirs:     []string{"./models"},
			InputSize:     0,
			MaxConcurrent: 1,
		},
		Preprocess: PreprocessConfig{
			Filter:       preprocess.DefaultFilter,
			ChannelOrder: preprocess.BGRA.String(),
			Normalize:    true,
			MaxPixels:    preprocess.DefaultMaxPixels,
		},
		ONNX: ONNXConfig{
			IntraOpThreads: 1,
		},
		TFLite: TFLiteConfig{
			Threads: 1,
		},
		Ollama: OllamaConfig{
			URL:         "http://localhost:11434",
			JPEGQuality: 90,
		},
		LlamaCpp: LlamaCppConfig{
			URL: "http://localhost:8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from LEAFSCAN_* environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup("LEAFSCAN_BACKEND"); ok && v != "" {
		c.Engine.Backend = v
	}
	if v, ok := lookup("LEAFSCAN_MODEL"); ok && v != "" {
		c.Engine.Model = v
	}
	if v, ok := lookup("LEAFSCAN_MODEL_DIR"); ok && v != "" {
		c.Engine.ModelDirs = filepath.SplitList(v)
	}
	if v, ok := lookup("LEAFSCAN_LABELS"); ok && v != "" {
		c.Labels.Path = v
	}
	if v, ok := lookup("LEAFSCAN_OLLAMA_URL"); ok && v != "" {
		c.Ollama.URL = v
	}
	if v, ok := lookup("LEAFSCAN_LLAMACPP_URL"); ok && v != "" {
		c.LlamaCpp.URL = v
	}
	if v, ok := lookup("LEAFSCAN_ONNX_LIB"); ok && v != "" {
		c.ONNX.LibraryPath = v
	}
	if v, ok := lookup("LEAFSCAN_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !contains(Backends, c.Engine.Backend) {
		return fmt.Errorf("engine.backend must be one of %s", strings.Join(Backends, ", "))
	}

	if c.Engine.Backend != "mock" && strings.TrimSpace(c.Engine.Model) == "" {
		return fmt.Errorf("engine.model cannot be empty")
	}

	if (c.Engine.Backend == "onnx" || c.Engine.Backend == "tflite") && len(c.Engine.ModelDirs) == 0 {
		return fmt.Errorf("engine.model_dirs cannot be empty for the %s backend", c.Engine.Backend)
	}

	if c.Engine.InputSize < 0 || c.Engine.InputSize > 4096 {
		return fmt.Errorf("engine.input_size must be between 0 and 4096")
	}

	if c.Engine.MaxConcurrent < 1 {
		return fmt.Errorf("engine.max_concurrent must be positive")
	}

	if _, err := preprocess.ResamplerByName(c.Preprocess.Filter); err != nil {
		return fmt.Errorf("preprocess.filter: %w", err)
	}

	if _, err := preprocess.ParseChannelOrder(c.Preprocess.ChannelOrder); err != nil {
		return fmt.Errorf("preprocess.channel_order: %w", err)
	}

	if c.Preprocess.MaxPixels < 0 {
		return fmt.Errorf("preprocess.max_pixels cannot be negative")
	}

	if c.Ollama.JPEGQuality < 1 || c.Ollama.JPEGQuality > 100 {
		return fmt.Errorf("ollama.jpeg_quality must be between 1 and 100")
	}

	if c.Engine.Backend == "ollama" && c.Ollama.URL == "" {
		return fmt.Errorf("ollama.url cannot be empty for the ollama backend")
	}

	if c.Engine.Backend == "llamacpp" && c.LlamaCpp.URL == "" {
		return fmt.Errorf("llamacpp.url cannot be empty for the llamacpp backend")
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json")
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "leafscan", "config.json")
}
