package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/bist/internal/model"
)

// Config holds all bist configuration.
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Backend BackendConfig `yaml:"backend"`
	Train   TrainConfig   `yaml:"train"`
	Eval    EvalConfig    `yaml:"eval"`
	Log     LogConfig     `yaml:"log"`
}

// ModelConfig holds the network hyperparameters stored in params.json.
type ModelConfig struct {
	Activation string `yaml:"activation"`
	LSTMLayers int    `yaml:"lstm_layers"`
	LSTMDims   int    `yaml:"lstm_dims"`
	POSDims    int    `yaml:"pos_dims"`
}

// BackendConfig selects and sizes the parser backend.
type BackendConfig struct {
	Name        string `yaml:"name"`
	Workers     int    `yaml:"workers"`
	CacheBytes  int    `yaml:"cache_bytes"`
	LibraryPath string `yaml:"library_path"` // onnxruntime shared library
}

// TrainConfig holds training loop settings.
type TrainConfig struct {
	Epochs int `yaml:"epochs"`
}

// EvalConfig selects the evaluator. An empty Script uses the native scorer.
type EvalConfig struct {
	Script       string `yaml:"script"`
	ExcludePunct bool   `yaml:"exclude_punct"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Model: ModelConfig{
			Activation: getenv("BIST_ACTIVATION", "tanh"),
			LSTMLayers: getenvInt("BIST_LSTM_LAYERS", 2),
			LSTMDims:   getenvInt("BIST_LSTM_DIMS", 125),
			POSDims:    getenvInt("BIST_POS_DIMS", 25),
		},
		Backend: BackendConfig{
			Name:        getenv("BIST_BACKEND", "perceptron"),
			Workers:     getenvInt("BIST_WORKERS", defaultWorkers()),
			CacheBytes:  getenvInt("BIST_CACHE_BYTES", 64<<20),
			LibraryPath: os.Getenv("BIST_ORT_LIBRARY"),
		},
		Train: TrainConfig{
			Epochs: getenvInt("BIST_EPOCHS", 10),
		},
		Eval: EvalConfig{
			Script:       os.Getenv("BIST_EVAL_SCRIPT"),
			ExcludePunct: getenvBool("BIST_EVAL_EXCLUDE_PUNCT", false),
		},
		Log: LogConfig{
			Level: getenv("BIST_LOG_LEVEL", "info"),
			JSON:  getenvBool("BIST_LOG_JSON", false),
		},
	}
}

// LoadFile reads the environment configuration and overlays the YAML file at
// path. Keys absent from the file keep their environment or default value.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks all fields and reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(model.Activations, c.Model.Activation) {
		errs = append(errs, fmt.Errorf("activation %q must be one of %s", c.Model.Activation, strings.Join(model.Activations, ", ")))
	}
	if c.Model.LSTMLayers <= 0 {
		errs = append(errs, fmt.Errorf("lstm layers must be positive, got %d", c.Model.LSTMLayers))
	}
	if c.Model.LSTMDims <= 0 {
		errs = append(errs, fmt.Errorf("lstm dims must be positive, got %d", c.Model.LSTMDims))
	}
	if c.Model.POSDims <= 0 {
		errs = append(errs, fmt.Errorf("pos dims must be positive, got %d", c.Model.POSDims))
	}
	if c.Backend.Name == "" {
		errs = append(errs, errors.New("backend name is required (BIST_BACKEND)"))
	}
	if c.Backend.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Backend.Workers))
	}
	if c.Backend.CacheBytes < 0 {
		errs = append(errs, fmt.Errorf("cache bytes must not be negative, got %d", c.Backend.CacheBytes))
	}
	if c.Train.Epochs < 0 {
		errs = append(errs, fmt.Errorf("epochs must not be negative, got %d", c.Train.Epochs))
	}
	return errors.Join(errs...)
}

func defaultWorkers() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
